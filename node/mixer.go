package node

import (
	"sync"

	"github.com/dudk/synth"
)

// Mixer sums up multiple upstream nodes into a single sample stream. It is a
// node itself, so chains can fan in at any depth, and it also serves as the
// engine-level master mixer of the delivery layer.
type Mixer struct {
	mu      sync.RWMutex
	ctx     *Context
	members []Node
}

// compile-time contract check
var _ Node = (*Mixer)(nil)

// NewMixer returns an empty mixer.
func NewMixer() *Mixer {
	return &Mixer{}
}

// Add registers a member. Safe to call mid-stream, the member joins the next
// pull. Duplicate adds are allowed.
func (m *Mixer) Add(n Node) {
	m.mu.Lock()
	m.members = append(m.members, n)
	m.mu.Unlock()
}

// Remove deregisters the first occurrence of a member. Removing an absent
// member is a no-op.
func (m *Mixer) Remove(n Node) {
	m.mu.Lock()
	for i := range m.members {
		if m.members[i] == n {
			m.members = append(m.members[:i], m.members[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
}

// Members returns a snapshot of the current membership.
func (m *Mixer) Members() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := make([]Node, len(m.members))
	copy(members, m.members)
	return members
}

// Len returns the number of members.
func (m *Mixer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members)
}

// NextSample returns 0 for an empty mixer, otherwise the arithmetic mean of
// one pull per member, clamped to [-1, 1]. Membership is snapshotted per
// pull, so mid-stream mutation never corrupts a cycle.
func (m *Mixer) NextSample() float64 {
	members := m.Members()
	if len(members) == 0 {
		return 0
	}
	var sum float64
	for _, n := range members {
		sum += n.NextSample()
	}
	return synth.Clamp(sum/float64(len(members)), -1, 1)
}

// Start restarts every member.
func (m *Mixer) Start() {
	for _, n := range m.Members() {
		n.Start()
	}
}

// RequestFinish forwards the finish request to every member.
func (m *Mixer) RequestFinish() {
	for _, n := range m.Members() {
		n.RequestFinish()
	}
}

// IsDone reports whether every member is done. An empty mixer is done.
func (m *Mixer) IsDone() bool {
	for _, n := range m.Members() {
		if !n.IsDone() {
			return false
		}
	}
	return true
}

// Context returns the mixer context.
func (m *Mixer) Context() *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx
}

// SetContext replaces the context and propagates it to every member.
func (m *Mixer) SetContext(ctx *Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
	for _, n := range m.Members() {
		n.SetContext(ctx)
	}
}

// Clone returns a mixer with every member cloned into the provided context.
func (m *Mixer) Clone(ctx *Context) Node {
	clone := NewMixer()
	clone.ctx = ctx
	for _, n := range m.Members() {
		clone.members = append(clone.members, n.Clone(ctx))
	}
	return clone
}
