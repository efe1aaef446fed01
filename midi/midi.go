// Package midi routes live MIDI input into the registry: note events become
// voice windows, control changes drive bound parameter callbacks.
package midi

import (
	"sync"
	"time"

	"github.com/rakyll/portmidi"

	"github.com/dudk/synth/log"
	"github.com/dudk/synth/seq"
)

const (
	statusMask    = 0xf0
	noteOn        = 0x90
	noteOff       = 0x80
	controlChange = 0xb0

	streamBuffer = 1024
	pollInterval = 10 * time.Millisecond
)

type (
	// Controller owns one input stream and the poll goroutine feeding the
	// registry.
	Controller struct {
		logger     log.Logger
		registry   *seq.Registry
		instrument string
		stream     *portmidi.Stream

		mu    sync.Mutex
		binds map[int64]func(float64)
		stopc chan struct{}
		donec chan struct{}
	}

	// Option provides a way to set controller parameters.
	Option func(c *Controller)

	// Device describes an available input device.
	Device struct {
		ID   portmidi.DeviceID
		Name string
	}
)

// WithInstrument routes notes to a named instrument instead of the registry
// default.
func WithInstrument(name string) Option {
	return func(c *Controller) {
		c.instrument = name
	}
}

// Devices initializes the portmidi api and enumerates the input devices.
func Devices() ([]Device, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, err
	}
	var devices []Device
	for i := 0; i < portmidi.CountDevices(); i++ {
		id := portmidi.DeviceID(i)
		if info := portmidi.Info(id); info != nil && info.IsInputAvailable {
			devices = append(devices, Device{ID: id, Name: info.Name})
		}
	}
	return devices, nil
}

// DefaultDevice returns the system default input device.
func DefaultDevice() (portmidi.DeviceID, error) {
	if err := portmidi.Initialize(); err != nil {
		return 0, err
	}
	return portmidi.DefaultInputDeviceID(), nil
}

// Open connects the controller to the device and starts routing events.
func Open(id portmidi.DeviceID, r *seq.Registry, options ...Option) (*Controller, error) {
	if err := portmidi.Initialize(); err != nil {
		return nil, err
	}
	stream, err := portmidi.NewInputStream(id, streamBuffer)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		logger:   log.GetLogger(),
		registry: r,
		stream:   stream,
		binds:    make(map[int64]func(float64)),
		stopc:    make(chan struct{}),
		donec:    make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	go c.poll()
	return c, nil
}

// BindControl registers a callback for a control change number. The value
// arrives scaled to [0, 1]. Callbacks run on the poll goroutine, so
// parameter changes belong in automation events, never in direct writes.
func (c *Controller) BindControl(cc int64, f func(float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.binds[cc] = f
}

// Close stops the poll goroutine, releases the stream and terminates the
// portmidi api. Close must be called exactly once. Sounding notes are not
// stopped, voices belong to the registry.
func (c *Controller) Close() error {
	close(c.stopc)
	<-c.donec
	err := c.stream.Close()
	if terr := portmidi.Terminate(); err == nil {
		err = terr
	}
	return err
}

// poll reads the stream until Close. The stream read is a non-blocking
// cgo call, the ticker keeps the polling from spinning.
func (c *Controller) poll() {
	defer close(c.donec)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopc:
			return
		case <-ticker.C:
		}
		events, err := c.stream.Read(streamBuffer)
		if err != nil {
			c.logger.Debug("midi read: ", err)
			continue
		}
		for _, e := range events {
			c.handle(e)
		}
	}
}

func (c *Controller) handle(e portmidi.Event) {
	switch status := e.Status & statusMask; status {
	case noteOn, noteOff:
		p := seq.PitchFromMIDI(int(e.Data1))
		// note on with zero velocity is a release
		if status == noteOff || e.Data2 == 0 {
			if err := c.registry.NoteOff(p, c.instrument); err != nil {
				c.logger.Warn("midi note off: ", err)
			}
			return
		}
		if err := c.registry.NoteOn(p, float64(e.Data2)/127, c.instrument); err != nil {
			c.logger.Warn("midi note on: ", err)
		}
	case controlChange:
		c.mu.Lock()
		f := c.binds[e.Data1]
		c.mu.Unlock()
		if f == nil {
			c.logger.Debug("unbound control change ", e.Data1)
			return
		}
		f(float64(e.Data2) / 127)
	default:
		c.logger.Debug("unhandled midi status ", e.Status)
	}
}
