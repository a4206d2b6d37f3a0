// Package process implements the Event Loop and its Process coordinator: the
// glue between hotkeys, grabs, the Source Switcher, and the Device Lifecycle
// Coordinator that the rest of the engine is built around.
package process

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/device"
	"github.com/arcnmx/screenstub-go/internal/display"
	"github.com/arcnmx/screenstub-go/internal/evdevgrab"
	"github.com/arcnmx/screenstub-go/internal/filter"
	"github.com/arcnmx/screenstub-go/internal/hotkey"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/logger"
	"github.com/arcnmx/screenstub-go/internal/qemu"
	"github.com/arcnmx/screenstub-go/internal/remap"
	"github.com/arcnmx/screenstub-go/internal/route"
	"github.com/arcnmx/screenstub-go/internal/xadapter"
)

// uinputBusVirtual is the kernel's BUS_VIRTUAL id, used for the named
// per-grab devices this package creates via route.NewForGrab.
const uinputBusVirtual = 0x06

// chanSink adapts a plain InputEvent channel into an evdevgrab.Sink,
// applying a remap table (nil for a pass-through named device, whose events
// go straight to the guest untouched) and respecting ctx cancellation on
// send so a full or abandoned downstream channel can't wedge the grabber.
type chanSink struct {
	ctx   context.Context
	ch    chan<- inputevent.InputEvent
	remap remap.Table
}

func (s *chanSink) Send(e inputevent.InputEvent) error {
	select {
	case s.ch <- s.remap.Apply(e):
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// GrabHandle is the bookkeeping kept per active grab session: enough to tear
// it down later (cancel its goroutines, close its devices, unset its filter,
// and reset the device slot it claimed).
type GrabHandle struct {
	cancel  context.CancelFunc
	grabber *evdevgrab.Grabber
	xFilter []inputevent.Kind
	isMouse bool
}

// Process is one screen's coordinator: it owns the grab table, the X input
// filter, and the wiring between the Source Switcher, the Device Lifecycle
// Coordinator, and whichever Transport currently routes events to the guest.
type Process struct {
	routing                                config.Routing
	driverKeyboard, driverRelative, driverAbsolute config.Driver
	exitEvents                              []config.Event
	uinputBus                               string

	qemu    *qemu.Qemu
	sources *display.Sources
	devices *device.Coordinator

	grabsMu sync.Mutex
	grabs   map[config.GrabMode]*GrabHandle

	xFilter *filter.Filter
	xreq    xadapter.Sink

	deviceEvents chan<- inputevent.InputEvent
	remap        remap.Table
	matcher      *hotkey.Matcher
}

// SetMatcher attaches the Hotkey Matcher whose pressed-key state
// EventUnstickGuest releases. runScreen (cmd/run.go) calls this once after
// building both the Process and the Matcher for a screen.
func (p *Process) SetMatcher(m *hotkey.Matcher) {
	p.matcher = m
}

// New builds a Process for one screen. deviceEvents is the sink of the
// screen's standing Router (its Route.Spawn result); events reaching the
// grab table with no new_device_name are forwarded there.
func New(
	routing config.Routing,
	driverKeyboard, driverRelative, driverAbsolute config.Driver,
	exitEvents []config.Event,
	uinputBus string,
	q *qemu.Qemu,
	sources *display.Sources,
	xreq xadapter.Sink,
	deviceEvents chan<- inputevent.InputEvent,
	remapTable remap.Table,
) *Process {
	return &Process{
		routing:         routing,
		driverKeyboard:  driverKeyboard,
		driverRelative:  driverRelative,
		driverAbsolute:  driverAbsolute,
		exitEvents:      exitEvents,
		uinputBus:       uinputBus,
		qemu:            q,
		sources:         sources,
		devices:         device.New(q, routing),
		grabs:           make(map[config.GrabMode]*GrabHandle),
		xFilter:         filter.New(0),
		xreq:            xreq,
		deviceEvents:    deviceEvents,
		remap:           remapTable,
	}
}

// XFilter returns the shared input-kind filter the display-server adapter
// consults to decide which kinds it should stop forwarding to X core once an
// evdev grab has claimed them exclusively.
func (p *Process) XFilter() *filter.Filter {
	return p.xFilter
}

// DevicesInit performs the Device Lifecycle Coordinator's startup step: make
// sure a keyboard peripheral exists on the configured driver.
func (p *Process) DevicesInit(ctx context.Context) error {
	return p.devices.InitKeyboard(ctx, p.driverKeyboard)
}

// IsMouse reports whether any currently active grab is a mouse (relative)
// grab. Mirrors the original's caveat: no grabs doesn't necessarily mean
// absolute mode, it's just the best available signal.
func (p *Process) IsMouse() bool {
	p.grabsMu.Lock()
	defer p.grabsMu.Unlock()
	for _, g := range p.grabs {
		if g.isMouse {
			return true
		}
	}
	return false
}

// Grab installs a grab session for g, keyed by g.ModeOf().
func (p *Process) Grab(ctx context.Context, g *config.Grab) error {
	switch g.ModeOf() {
	case config.GrabModeXCore:
		return p.grabXCore()
	case config.GrabModeEvdev:
		return p.grabEvdev(ctx, g)
	default:
		return fmt.Errorf("process: grab mode %q unimplemented", g.ModeOf())
	}
}

func (p *Process) grabXCore() error {
	p.grabsMu.Lock()
	p.grabs[config.GrabModeXCore] = &GrabHandle{}
	p.grabsMu.Unlock()

	return p.xreq.Send(xadapter.XRequest{
		Kind: xadapter.RequestGrab,
		Grab: xadapter.GrabParams{XCore: true},
	})
}

func (p *Process) grabEvdev(ctx context.Context, g *config.Grab) error {
	grabber, err := evdevgrab.New(g.Devices, g.EvdevIgnore...)
	if err != nil {
		return fmt.Errorf("process: opening grab devices: %w", err)
	}

	sink, sinkCtx, cancel, err := p.grabSink(ctx, g, grabber)
	if err != nil {
		grabber.Close()
		cancel()
		return err
	}

	if g.Exclusive {
		if err := grabber.Grab(true); err != nil {
			grabber.Close()
			cancel()
			return fmt.Errorf("process: exclusive grab: %w", err)
		}
	}

	isMouse, err := anyDeviceIsRelative(grabber)
	if err != nil {
		grabber.Close()
		cancel()
		return fmt.Errorf("process: querying device capabilities: %w", err)
	}

	grabber.Spawn(sinkCtx, sink, newLoggingErrorSink())

	p.xFilter.Insert(g.XCoreIgnore...)

	p.grabsMu.Lock()
	p.grabs[config.GrabModeEvdev] = &GrabHandle{
		cancel:  cancel,
		grabber: grabber,
		xFilter: g.XCoreIgnore,
		isMouse: isMouse,
	}
	p.grabsMu.Unlock()

	return p.devices.SetIsMouse(ctx, isMouse, p.driverRelative, p.driverAbsolute)
}

// grabSink resolves the downstream sink for an evdev grab: either a named
// per-grab virtual-input device mirroring the grabbed evdevs' capabilities,
// or the screen's own standing device channel.
func (p *Process) grabSink(ctx context.Context, g *config.Grab, grabber *evdevgrab.Grabber) (evdevgrab.Sink, context.Context, context.CancelFunc, error) {
	sinkCtx, cancel := context.WithCancel(ctx)

	if g.NewDeviceName == "" {
		return &chanSink{ctx: sinkCtx, ch: p.deviceEvents, remap: p.remap}, sinkCtx, cancel, nil
	}

	id := "screenstub-uinput-" + g.NewDeviceName
	r, err := route.NewForGrab(p.routing, p.qemu, id, p.uinputBus, false)
	if err != nil {
		return nil, sinkCtx, cancel, err
	}

	if b := r.Builder(); b != nil {
		b.SetIdentity(g.NewDeviceName, uinputBusVirtual, 0x16c0, 0x05df, 1)
		for _, dev := range grabber.Devices() {
			caps, err := dev.Capabilities()
			if err != nil {
				return nil, sinkCtx, cancel, fmt.Errorf("mirroring capabilities from %s: %w", dev.Path(), err)
			}
			b.FromEvdev(caps)
		}
	}

	errCh := make(chan error, 4)
	go func() {
		for err := range errCh {
			logger.Errorf("grab device %q: %v", g.NewDeviceName, err)
		}
	}()
	events := r.Spawn(sinkCtx, errCh)

	return &chanSink{ctx: sinkCtx, ch: events, remap: nil}, sinkCtx, cancel, nil
}

func anyDeviceIsRelative(grabber *evdevgrab.Grabber) (bool, error) {
	for _, dev := range grabber.Devices() {
		caps, err := dev.Capabilities()
		if err != nil {
			return false, err
		}
		for _, axis := range caps.RelBits {
			if axis == uint16(inputevent.RelX) || axis == uint16(inputevent.RelY) {
				return true, nil
			}
		}
	}
	return false, nil
}

// newLoggingErrorSink returns an error channel whose contents are drained and
// logged for the lifetime of the process; grab tasks post to it and keep
// running (per-session errors don't stop other sessions).
func newLoggingErrorSink() chan<- error {
	ch := make(chan error, 16)
	go func() {
		for err := range ch {
			logger.Errorf("grab task: %v", err)
		}
	}()
	return ch
}

// Ungrab tears down the grab session for mode, if one exists.
func (p *Process) Ungrab(ctx context.Context, mode config.GrabMode) error {
	switch mode {
	case config.GrabModeXCore:
		p.grabsMu.Lock()
		delete(p.grabs, mode)
		p.grabsMu.Unlock()
		return p.xreq.Send(xadapter.XRequest{Kind: xadapter.RequestUngrab})

	case config.GrabModeEvdev:
		p.grabsMu.Lock()
		handle, ok := p.grabs[mode]
		delete(p.grabs, mode)
		p.grabsMu.Unlock()

		if !ok {
			logger.Info("requested non-existent grab")
			return nil
		}

		p.xFilter.Remove(handle.xFilter...)
		if handle.cancel != nil {
			handle.cancel()
		}
		if handle.grabber != nil {
			handle.grabber.Close()
		}

		if handle.isMouse {
			return p.devices.SetIsMouse(ctx, false, p.driverRelative, p.driverAbsolute)
		}
		return nil

	default:
		return fmt.Errorf("process: ungrab mode %q unimplemented", mode)
	}
}
