package device

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/qemu"
	"github.com/arcnmx/screenstub-go/internal/route"
)

// fakeQmpServer accepts connections until the listener closes, completes the
// QMP handshake on each, then hands every decoded command to handle so a test
// can script replies.
func fakeQmpServer(t *testing.T, socket string, handle func(enc *json.Encoder, cmd map[string]any)) net.Listener {
	t.Helper()
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)

	serve := func(conn net.Conn) {
		defer conn.Close()

		enc := json.NewEncoder(conn)
		dec := json.NewDecoder(conn)

		_ = enc.Encode(map[string]any{"QMP": map[string]any{"version": map[string]any{}}})
		var caps map[string]any
		if err := dec.Decode(&caps); err != nil {
			return
		}
		_ = enc.Encode(map[string]any{"return": map[string]any{}})

		for {
			var cmd map[string]any
			if err := dec.Decode(&cmd); err != nil {
				return
			}
			handle(enc, cmd)
		}
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()

	return ln
}

func TestEnsureAddsDeviceWhenNoneExists(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "qmp.sock")
	var addedDriver string
	ln := fakeQmpServer(t, socket, func(enc *json.Encoder, cmd map[string]any) {
		switch cmd["execute"] {
		case "qom-list":
			_ = enc.Encode(map[string]any{"error": map[string]any{"class": "DeviceNotFound", "desc": "no such path"}})
		case "device_add":
			args := cmd["arguments"].(map[string]any)
			addedDriver = args["driver"].(string)
			_ = enc.Encode(map[string]any{"return": map[string]any{}})
		default:
			t.Fatalf("unexpected command %v", cmd["execute"])
		}
	})
	defer ln.Close()

	c := New(qemu.New(socket, ""), config.RoutingQmp)
	err := c.Ensure(context.Background(), route.ClassKeyboard, config.DriverUsb)
	require.NoError(t, err)
	assert.Equal(t, "usb-kbd", addedDriver)
}

func TestEnsureRemovesStaleDeviceBeforeAdding(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "qmp.sock")
	var sawDelete, sawAdd bool
	ln := fakeQmpServer(t, socket, func(enc *json.Encoder, cmd map[string]any) {
		switch cmd["execute"] {
		case "qom-list":
			_ = enc.Encode(map[string]any{"return": []any{}})
		case "device_del":
			sawDelete = true
			_ = enc.Encode(map[string]any{"event": "DEVICE_DELETED", "data": map[string]any{"device": "screenstub-dev-mouse"}})
			_ = enc.Encode(map[string]any{"return": map[string]any{}})
		case "device_add":
			sawAdd = true
			_ = enc.Encode(map[string]any{"return": map[string]any{}})
		default:
			t.Fatalf("unexpected command %v", cmd["execute"])
		}
	})
	defer ln.Close()

	c := New(qemu.New(socket, ""), config.RoutingQmp)
	err := c.Ensure(context.Background(), route.ClassRelative, config.DriverVirtio)
	require.NoError(t, err)
	assert.True(t, sawDelete)
	assert.True(t, sawAdd)
}

func TestEnsurePs2SkipsDeviceAdd(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "qmp.sock")
	ln := fakeQmpServer(t, socket, func(enc *json.Encoder, cmd map[string]any) {
		switch cmd["execute"] {
		case "qom-list":
			_ = enc.Encode(map[string]any{"error": map[string]any{"class": "DeviceNotFound", "desc": "no such path"}})
		default:
			t.Fatalf("unexpected command %v, ps2 must not add a device", cmd["execute"])
		}
	})
	defer ln.Close()

	c := New(qemu.New(socket, ""), config.RoutingQmp)
	err := c.Ensure(context.Background(), route.ClassKeyboard, config.DriverPs2)
	require.NoError(t, err)
}

func TestEnsurePs2AbsoluteIsAConfigError(t *testing.T) {
	c := New(qemu.New("", ""), config.RoutingQmp)
	err := c.Ensure(context.Background(), route.ClassAbsolute, config.DriverPs2)
	require.ErrorIs(t, err, ErrPs2AbsoluteUnsupported)
}

func TestEnsureIsNoopUnderVirtioHostRouting(t *testing.T) {
	// No socket configured at all: if Ensure tried to dial QMP this would fail,
	// proving virtio-host routing never touches the shared connection.
	c := New(qemu.New("", ""), config.RoutingVirtioHost)
	err := c.Ensure(context.Background(), route.ClassKeyboard, config.DriverUsb)
	require.NoError(t, err)
}

func TestSetIsMouseSwitchesBetweenRelativeAndAbsolute(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "qmp.sock")
	var lastDriver string
	ln := fakeQmpServer(t, socket, func(enc *json.Encoder, cmd map[string]any) {
		switch cmd["execute"] {
		case "qom-list":
			_ = enc.Encode(map[string]any{"error": map[string]any{"class": "DeviceNotFound", "desc": "no such path"}})
		case "device_add":
			args := cmd["arguments"].(map[string]any)
			lastDriver = args["driver"].(string)
			_ = enc.Encode(map[string]any{"return": map[string]any{}})
		default:
			t.Fatalf("unexpected command %v", cmd["execute"])
		}
	})
	defer ln.Close()

	c := New(qemu.New(socket, ""), config.RoutingQmp)

	require.NoError(t, c.SetIsMouse(context.Background(), true, config.DriverUsb, config.DriverVirtio))
	assert.Equal(t, "usb-mouse", lastDriver)

	require.NoError(t, c.SetIsMouse(context.Background(), false, config.DriverUsb, config.DriverVirtio))
	assert.Equal(t, "virtio-tablet-pci", lastDriver)
}
