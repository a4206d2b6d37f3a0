// Package xadapter specifies the display-server adapter's interface to the
// core, per spec section 6: the adapter itself (a window-server client that
// observes visibility/focus/input and posts grab requests) is an external
// collaborator and out of scope — only the XEvent/XRequest shapes and the
// stream/sink contract the Event Loop depends on live here.
package xadapter

import "github.com/arcnmx/screenstub-go/internal/inputevent"

// EventKind tags an XEvent variant.
type EventKind int

const (
	EventVisible EventKind = iota
	EventFocus
	EventClose
	EventInput
)

// XEvent is one event from the display-server adapter:
// { Visible(bool), Focus(bool), Close, Input(InputEvent) }.
type XEvent struct {
	Kind    EventKind
	Visible bool
	Focused bool
	Input   inputevent.InputEvent
}

// RequestKind tags an XRequest variant.
type RequestKind int

const (
	RequestQuit RequestKind = iota
	RequestUnstickHost
	RequestGrab
	RequestUngrab
)

// GrabParams is the Grab variant's payload.
type GrabParams struct {
	XCore   bool
	Confine bool
	Motion  bool
	Devices []string
}

// XRequest is a request posted back to the display-server adapter:
// { Quit, UnstickHost, Grab{xcore, confine, motion, devices}, Ungrab }.
type XRequest struct {
	Kind RequestKind
	Grab GrabParams
}

// Source is the adapter's event stream.
type Source interface {
	Events() <-chan XEvent
}

// Sink is the adapter's request channel.
type Sink interface {
	Send(XRequest) error
}
