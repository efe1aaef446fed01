package seq

import (
	"fmt"
	"sync"
	"time"

	"github.com/dudk/synth"
	"github.com/dudk/synth/log"
)

const (
	defaultLookahead = 75 * time.Millisecond
	defaultTick      = 25 * time.Millisecond
)

type (
	// Scheduler plays tracks by arming voice windows a lookahead ahead of
	// the engine clock. Jitter is bounded by the lookahead because windows
	// carry exact precomputed times, the scheduler itself never sleeps on
	// note boundaries.
	Scheduler struct {
		logger    log.Logger
		clock     synth.Clock
		registry  *Registry
		lookahead time.Duration
		tick      time.Duration

		mu      sync.Mutex
		running bool
		stopc   chan struct{}
	}

	// SchedulerOption provides a way to set scheduler parameters.
	SchedulerOption func(s *Scheduler)
)

// WithLookahead overrides how far ahead of the clock windows are armed.
func WithLookahead(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.lookahead = d
	}
}

// WithTick overrides the polling period.
func WithTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.tick = d
	}
}

// NewScheduler returns a scheduler playing against the registry.
func NewScheduler(clock synth.Clock, r *Registry, options ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		logger:    log.GetLogger(),
		clock:     clock,
		registry:  r,
		lookahead: defaultLookahead,
		tick:      defaultTick,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Run plays the tracks in parallel from the current engine time and blocks
// until every track is exhausted and every voice drained, or until Stop.
// Only one Run may be in flight.
func (s *Scheduler) Run(tracks ...*Track) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running: %w", synth.ErrInvalidState)
	}
	s.running = true
	stopc := make(chan struct{})
	s.stopc = stopc
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopc = nil
		s.mu.Unlock()
	}()

	base := s.clock()
	live := make([]*Track, 0, len(tracks))
	for _, t := range tracks {
		t.Rewind(base)
		live = append(live, t)
	}
	s.logger.Debug("scheduler running ", len(live), " tracks")
	var firstErr error
	for len(live) > 0 {
		horizon := s.clock() + int64(s.lookahead)
		next := live[:0]
		for _, t := range live {
			more, err := t.Run(horizon)
			if err != nil {
				// a broken track is dropped, the others keep playing
				s.logger.Error("track dropped: ", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if more {
				next = append(next, t)
			}
		}
		live = next
		if len(live) == 0 {
			break
		}
		select {
		case <-stopc:
			s.logger.Debug("scheduler stopped, winding voices down")
			s.registry.StopAll()
			s.registry.Drain()
			return firstErr
		case <-time.After(s.tick):
		}
	}
	s.registry.Drain()
	return firstErr
}

// Stop interrupts a running schedule. Sounding voices wind down gracefully
// before Run returns. Safe from any goroutine, stopping an idle scheduler
// is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopc != nil {
		close(s.stopc)
		s.stopc = nil
	}
}
