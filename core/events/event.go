package events

import (
	"sync"

	"scavenger/core/types"
)

// Event represents a structured state change emitted by the custody module.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, archives).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Convert returns the generic representation of evt. Events without a typed
// payload are reported by type only.
func Convert(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		if out := typed.Event(); out != nil {
			return out
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Fanout forwards every event to each registered emitter in order.
type Fanout struct {
	mu       sync.RWMutex
	emitters []Emitter
}

// NewFanout constructs a fan-out emitter. Nil emitters are skipped.
func NewFanout(emitters ...Emitter) *Fanout {
	f := &Fanout{}
	for _, e := range emitters {
		f.Add(e)
	}
	return f
}

// Add registers an additional downstream emitter.
func (f *Fanout) Add(e Emitter) {
	if e == nil {
		return
	}
	f.mu.Lock()
	f.emitters = append(f.emitters, e)
	f.mu.Unlock()
}

// Emit implements the Emitter interface.
func (f *Fanout) Emit(evt Event) {
	f.mu.RLock()
	targets := append([]Emitter(nil), f.emitters...)
	f.mu.RUnlock()
	for _, e := range targets {
		e.Emit(evt)
	}
}

// Buffer collects events until they are flushed or discarded. The runtime
// uses it to hold back events of a call until its state is committed.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []Event {
	out := b.pending
	b.pending = nil
	return out
}

// Discard drops every buffered event.
func (b *Buffer) Discard() {
	b.pending = nil
}
