package route

import (
	"context"
	"fmt"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/qemu"
	"github.com/arcnmx/screenstub-go/internal/uinputdev"
)

// busVirtual is the kernel's BUS_VIRTUAL id, used for the synthetic devices
// this package creates.
const busVirtual = 0x06

// uinputSink is the subset of *uinputdev.Sink Spawn depends on, narrowed to
// an interface so tests can substitute a fake device rather than touching
// the real /dev/uinput.
type uinputSink interface {
	Path() string
	Write(inputevent.InputEvent) error
	Close() error
}

// createUinputSink is a seam tests replace to avoid opening a real device.
var createUinputSink = func(b *uinputdev.Builder) (uinputSink, error) {
	return b.Create()
}

// DeviceClass picks which uinput capability preset a RouteUInput's local
// device is built with.
type DeviceClass int

const (
	ClassKeyboard DeviceClass = iota
	ClassRelative
	ClassAbsolute
)

func newBuilderForClass(name string, class DeviceClass) *uinputdev.Builder {
	b := uinputdev.NewBuilder(name, busVirtual, 0, 0, 0)
	switch class {
	case ClassRelative:
		b.RelativePreset()
	case ClassAbsolute:
		b.AbsolutePreset()
	default:
		b.KeyPreset(true)
	}
	return b
}

// RouteUInput creates a local virtual-input device and tells QEMU (via a
// QMP object or device, depending on routing) to read directly from it,
// bypassing input-send-event entirely. The create/delete QMP commands differ
// between input-linux (a QOM object) and virtio-input-host-device (a PCI
// device); buildCreate/deleteCmd+deleteArgs capture exactly that difference,
// playing the role of the original's RouteUInput<F, D> create/delete type
// parameters.
type RouteUInput struct {
	qemu    *qemu.Qemu
	builder *uinputdev.Builder

	createCmd  string
	buildCreate func(evdevPath string) map[string]any

	deleteCmd  string
	deleteArgs map[string]any
}

// NewInputLinux routes through QEMU's "input-linux" QOM object, which opens
// the uinput-created evdev node directly. builder is the (already-named)
// local uinput device descriptor — callers use newBuilderForClass for one of
// the three standing device classes, or build+mirror their own for a named
// per-grab pass-through device.
func NewInputLinux(q *qemu.Qemu, id string, builder *uinputdev.Builder, repeat bool) *RouteUInput {
	return &RouteUInput{
		qemu:    q,
		builder: builder,
		createCmd: "object-add",
		buildCreate: func(evdevPath string) map[string]any {
			return map[string]any{
				"qom-type": "input-linux",
				"id":       id,
				"props": map[string]any{
					"evdev":  evdevPath,
					"repeat": repeat,
				},
			}
		},
		deleteCmd:  "object-del",
		deleteArgs: map[string]any{"id": id},
	}
}

// NewVirtioHost routes through a virtio-input-host-device on the given
// virtio bus. See NewInputLinux for the builder contract.
func NewVirtioHost(q *qemu.Qemu, id string, builder *uinputdev.Builder, bus string) *RouteUInput {
	return &RouteUInput{
		qemu:    q,
		builder: builder,
		createCmd: "device_add",
		buildCreate: func(evdevPath string) map[string]any {
			return map[string]any{
				"driver": "virtio-input-host-device",
				"id":     id,
				"bus":    bus,
				"evdev":  evdevPath,
			}
		},
		deleteCmd:  "device_del",
		deleteArgs: map[string]any{"id": id},
	}
}

// Builder exposes the local uinput builder so a caller can mirror an evdev
// source device's capabilities onto it (Builder.FromEvdev) before Spawn
// calls Create.
func (r *RouteUInput) Builder() *uinputdev.Builder {
	return r.builder
}

// Spawn creates the local uinput device, wires it to QEMU via the create
// command, then pipes events into it until the channel closes or ctx is
// cancelled — at which point the delete command runs regardless of how the
// loop ended, mirroring the original's "always clean up the QMP side" spawn
// shape.
func (r *RouteUInput) Spawn(ctx context.Context, events <-chan inputevent.InputEvent, errCh chan<- error) {
	go func() {
		sink, err := createUinputSink(r.builder)
		if err != nil {
			postError(errCh, fmt.Errorf("create uinput device: %w", err))
			return
		}
		defer sink.Close()

		if _, err := r.qemu.ExecuteQMP(ctx, r.createCmd, r.buildCreate(sink.Path())); err != nil {
			postError(errCh, fmt.Errorf("%s: %w", r.createCmd, err))
			return
		}
		defer func() {
			if _, err := r.qemu.ExecuteQMP(context.Background(), r.deleteCmd, r.deleteArgs); err != nil {
				postError(errCh, fmt.Errorf("%s: %w", r.deleteCmd, err))
			}
		}()

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case e, ok := <-events:
				if !ok {
					break loop
				}
				if err := sink.Write(e); err != nil {
					postError(errCh, err)
					break loop
				}
			}
		}
	}()
}
