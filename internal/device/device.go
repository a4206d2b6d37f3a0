// Package device implements the Device Lifecycle Coordinator: it keeps the
// synthetic PS/2, USB, or virtio input devices QEMU exposes to the guest in
// sync with the screen's configured drivers whenever routing goes through
// input-send-event or a standing device (RoutingQmp/RoutingInputLinux).
// Virtio-host routing attaches its device per grab instead, so Ensure is a
// no-op there.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/qemu"
	"github.com/arcnmx/screenstub-go/internal/route"
)

// ErrPs2AbsoluteUnsupported is returned for a screen configured with an
// absolute_driver of "ps2": no PS/2 tablet exists, so this is surfaced as a
// configuration error rather than a panic.
var ErrPs2AbsoluteUnsupported = errors.New("device: ps2 cannot provide an absolute (tablet) device")

// deviceID is the QOM peripheral id a class's device is added/removed under.
// Relative and absolute share an id since only one of the two is ever
// attached at a time (set_is_mouse swaps between them).
func deviceID(class route.DeviceClass) string {
	if class == route.ClassKeyboard {
		return "screenstub-dev-kbd"
	}
	return "screenstub-dev-mouse"
}

// driverName maps a (class, driver) pair to the device-add driver string.
// ok is false when the driver needs no explicit device — ps2 keyboards and
// mice are already present on the default QEMU machine.
func driverName(class route.DeviceClass, driver config.Driver) (name string, ok bool, err error) {
	if driver == config.DriverPs2 {
		if class == route.ClassAbsolute {
			return "", false, ErrPs2AbsoluteUnsupported
		}
		return "", false, nil
	}

	switch driver {
	case config.DriverUsb:
		switch class {
		case route.ClassKeyboard:
			return "usb-kbd", true, nil
		case route.ClassRelative:
			return "usb-mouse", true, nil
		default:
			return "usb-tablet", true, nil
		}
	case config.DriverVirtio:
		switch class {
		case route.ClassKeyboard:
			return "virtio-keyboard-pci", true, nil
		case route.ClassRelative:
			return "virtio-mouse-pci", true, nil
		default:
			return "virtio-tablet-pci", true, nil
		}
	default:
		return "", false, fmt.Errorf("device: unknown driver %q", driver)
	}
}

// Coordinator owns device lifecycle for one screen's QEMU instance.
type Coordinator struct {
	qemu    *qemu.Qemu
	routing config.Routing
}

// New builds a Coordinator for the given QEMU control client and routing mode.
func New(q *qemu.Qemu, routing config.Routing) *Coordinator {
	return &Coordinator{qemu: q, routing: routing}
}

// Ensure makes exactly one driver-appropriate device exist at class's id,
// removing whatever is already registered there first. A no-op under
// virtio-host routing, where RouteUInput attaches its own per-grab device.
func (c *Coordinator) Ensure(ctx context.Context, class route.DeviceClass, driver config.Driver) error {
	if c.routing == config.RoutingVirtioHost {
		return nil
	}

	name, ok, err := driverName(class, driver)
	if err != nil {
		return err
	}

	qmp, err := c.qemu.QmpClone(ctx)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	defer c.qemu.ReleaseQmp()

	id := deviceID(class)

	exists, err := deviceExists(ctx, qmp, id)
	if err != nil {
		return fmt.Errorf("device: query %s: %w", id, err)
	}
	if exists {
		if err := deleteDevice(ctx, qmp, id); err != nil {
			return fmt.Errorf("device: remove stale %s: %w", id, err)
		}
	}

	if !ok {
		return nil
	}

	if _, err := qmp.Execute(ctx, "device_add", map[string]any{"driver": name, "id": id}); err != nil {
		return fmt.Errorf("device: add %s: %w", id, err)
	}
	return nil
}

// InitKeyboard ensures the keyboard device exists at startup. Unlike the
// pointer, the keyboard's class never changes, so it's only ever initialized
// once, before any grab is installed.
func (c *Coordinator) InitKeyboard(ctx context.Context, driver config.Driver) error {
	return c.Ensure(ctx, route.ClassKeyboard, driver)
}

// SetIsMouse swaps the pointer device between relative (mouse) and absolute
// (tablet), called whenever a grab determines which kind of pointer the
// newly grabbed evdev source provides.
func (c *Coordinator) SetIsMouse(ctx context.Context, isMouse bool, driverRelative, driverAbsolute config.Driver) error {
	if isMouse {
		return c.Ensure(ctx, route.ClassRelative, driverRelative)
	}
	return c.Ensure(ctx, route.ClassAbsolute, driverAbsolute)
}

func deviceExists(ctx context.Context, qmp *qemu.QmpHandle, id string) (bool, error) {
	_, err := qmp.Execute(ctx, "qom-list", map[string]any{"path": fmt.Sprintf("/machine/peripheral/%s", id)})
	if err == nil {
		return true, nil
	}
	var qerr *qemu.QMPError
	if errors.As(err, &qerr) && qerr.Class == "DeviceNotFound" {
		return false, nil
	}
	return false, err
}

// deleteDevice issues device_del and waits for the matching DEVICE_DELETED
// event, mirroring the original's try_join of the delete command's ack
// against the async event stream — QEMU acknowledges the request before the
// device actually finishes tearing down.
func deleteDevice(ctx context.Context, qmp *qemu.QmpHandle, id string) error {
	events := qmp.Events()
	done := make(chan error, 1)

	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					done <- errors.New("device: qmp event stream closed waiting for DEVICE_DELETED")
					return
				}
				if ev.Name != "DEVICE_DELETED" {
					continue
				}
				var data struct {
					Device *string `json:"device"`
				}
				if err := json.Unmarshal(ev.Data, &data); err != nil {
					continue
				}
				if data.Device != nil && *data.Device == id {
					done <- nil
					return
				}
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
	}()

	if _, err := qmp.Execute(ctx, "device_del", map[string]any{"id": id}); err != nil {
		return err
	}

	return <-done
}
