package route

import (
	"context"
	"fmt"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/qemu"
	"github.com/arcnmx/screenstub-go/internal/uinputdev"
)

// EventBuffer bounds the channel callers feed into Route.Spawn, giving the
// routing goroutine room to batch without unbounded buildup if QMP stalls.
const EventBuffer = 256

// Route is the Router Facade: one uniform "give me an event sink for this
// routing" constructor over the three transports (qmp, input-linux,
// virtio-host), hiding which one is actually in play from callers.
type Route struct {
	routing config.Routing
	qmp     *RouteQmp
	uinput  *RouteUInput
}

// New builds the Route for the given config.Routing. id names the
// QOM object/device QEMU will create; class picks the uinput capability
// preset for uinput-backed routings; bus is only used by virtio-host.
func New(routing config.Routing, q *qemu.Qemu, id string, class DeviceClass, bus string, repeat bool) (*Route, error) {
	switch routing {
	case config.RoutingQmp:
		return &Route{routing: routing, qmp: NewRouteQmp(q)}, nil
	case config.RoutingInputLinux:
		return &Route{routing: routing, uinput: NewInputLinux(q, id, newBuilderForClass(id, class), repeat)}, nil
	case config.RoutingVirtioHost:
		return &Route{routing: routing, uinput: NewVirtioHost(q, id, newBuilderForClass(id, class), bus)}, nil
	default:
		return nil, fmt.Errorf("route: unknown routing %q", routing)
	}
}

// NewForGrab builds a Route for a named per-grab pass-through device: unlike
// New, the uinput builder (when the routing is uinput-backed) starts empty
// rather than preset to a device class, since its capabilities are mirrored
// directly from the grabbed evdev sources via Builder().FromEvdev before
// Spawn. Callers should also call Builder().SetIdentity to give the device
// its own name distinct from id (the QOM object/device id QEMU attaches to).
func NewForGrab(routing config.Routing, q *qemu.Qemu, id string, bus string, repeat bool) (*Route, error) {
	switch routing {
	case config.RoutingQmp:
		return &Route{routing: routing, qmp: NewRouteQmp(q)}, nil
	case config.RoutingInputLinux:
		return &Route{routing: routing, uinput: NewInputLinux(q, id, uinputdev.NewBuilder(id, busVirtual, 0, 0, 0), repeat)}, nil
	case config.RoutingVirtioHost:
		return &Route{routing: routing, uinput: NewVirtioHost(q, id, uinputdev.NewBuilder(id, busVirtual, 0, 0, 0), bus)}, nil
	default:
		return nil, fmt.Errorf("route: unknown routing %q", routing)
	}
}

// Builder returns the uinput builder backing this route, or nil for a
// RoutingQmp route (it creates no local device).
func (r *Route) Builder() *uinputdev.Builder {
	if r.uinput == nil {
		return nil
	}
	return r.uinput.Builder()
}

// Spawn opens a buffered event channel of EventBuffer capacity, starts the
// routing goroutine against it, and returns the channel as the sink callers
// feed filtered/remapped events into.
func (r *Route) Spawn(ctx context.Context, errCh chan<- error) chan<- inputevent.InputEvent {
	events := make(chan inputevent.InputEvent, EventBuffer)

	switch r.routing {
	case config.RoutingQmp:
		r.qmp.Spawn(ctx, events, errCh)
	default:
		r.uinput.Spawn(ctx, events, errCh)
	}

	return events
}
