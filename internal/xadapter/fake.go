package xadapter

import "sync"

// Fake is an in-memory Source+Sink, used by tests and as the placeholder
// adapter `run` wires in: Push feeds synthetic XEvents into Events(), and
// Send records every XRequest for later assertion.
type Fake struct {
	events chan XEvent

	mu       sync.Mutex
	requests []XRequest
}

// NewFake returns a Fake with a reasonably buffered event channel.
func NewFake() *Fake {
	return &Fake{events: make(chan XEvent, 64)}
}

// Push enqueues e for a subsequent Events() receive.
func (f *Fake) Push(e XEvent) {
	f.events <- e
}

// Events implements Source.
func (f *Fake) Events() <-chan XEvent {
	return f.events
}

// Send implements Sink, recording r instead of delivering it anywhere.
func (f *Fake) Send(r XRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	return nil
}

// Requests returns every XRequest recorded so far.
func (f *Fake) Requests() []XRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]XRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
