// Package qemu implements the Emulator Control Client: a small JSON-over-unix-socket
// client for QEMU's QMP monitor and guest agent (QGA) sockets.
//
// QMP commands are serialized one at a time over a single shared connection;
// Go has no equivalent of the original's Weak<QmpHandle>, so the shared
// connection is instead reference-counted — QmpClone hands out the current
// handle (connecting lazily on first use) and bumps a refcount, ReleaseQmp
// drops it and tears the connection down once the count reaches zero.
package qemu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrSocketNotConfigured is returned when a QMP or QGA operation is attempted
// against a Qemu with that socket path left empty.
var ErrSocketNotConfigured = errors.New("qemu: socket not configured")

// Qemu is a handle to one QEMU instance's control sockets. The zero value is
// not usable; construct with New.
type Qemu struct {
	qmpSocket string
	qgaSocket string

	mu      sync.Mutex
	qmp     *QmpHandle
	qmpRefs int
}

// New builds a Qemu targeting the given QMP and QGA unix socket paths.
// Either may be empty if that facility is unused (e.g. a screen with no QGA
// based switch methods never dials socketQga).
func New(socketQmp, socketQga string) *Qemu {
	return &Qemu{qmpSocket: socketQmp, qgaSocket: socketQga}
}

// QmpClone returns the shared QMP connection, connecting it if this is the
// first caller, and increments its reference count. Callers must call
// ReleaseQmp exactly once when done with the handle.
func (q *Qemu) QmpClone(ctx context.Context) (*QmpHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.qmp != nil {
		q.qmpRefs++
		return q.qmp, nil
	}

	if q.qmpSocket == "" {
		return nil, ErrSocketNotConfigured
	}

	handle, err := connectQmp(ctx, q.qmpSocket)
	if err != nil {
		return nil, err
	}
	q.qmp = handle
	q.qmpRefs = 1
	return handle, nil
}

// ReleaseQmp drops a reference acquired via QmpClone. Once the last
// reference is released the shared connection is closed; the next QmpClone
// reconnects from scratch.
func (q *Qemu) ReleaseQmp() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.qmpRefs--
	if q.qmpRefs <= 0 {
		q.qmpRefs = 0
		if q.qmp != nil {
			q.qmp.Close()
			q.qmp = nil
		}
	}
}

// ExecuteQMP runs one QMP command over the shared connection, acquiring and
// releasing a reference for the duration of the call.
func (q *Qemu) ExecuteQMP(ctx context.Context, name string, args any) (json.RawMessage, error) {
	handle, err := q.QmpClone(ctx)
	if err != nil {
		return nil, fmt.Errorf("qmp %s: %w", name, err)
	}
	defer q.ReleaseQmp()
	return handle.Execute(ctx, name, args)
}

// QmpEvents subscribes to the shared connection's async event stream,
// connecting it if necessary. The caller must invoke the returned release
// func when it no longer needs events (e.g. when the subscribing goroutine
// exits).
func (q *Qemu) QmpEvents(ctx context.Context) (<-chan Event, func(), error) {
	handle, err := q.QmpClone(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("qmp events: %w", err)
	}
	return handle.Events(), q.ReleaseQmp, nil
}

// ExecuteQGA runs one guest agent command over a fresh one-shot connection;
// unlike QMP, QGA connections are not shared between callers.
func (q *Qemu) ExecuteQGA(ctx context.Context, name string, args any) (json.RawMessage, error) {
	if q.qgaSocket == "" {
		return nil, fmt.Errorf("qga %s: %w", name, ErrSocketNotConfigured)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", q.qgaSocket)
	if err != nil {
		return nil, fmt.Errorf("dial qga: %w", err)
	}
	defer conn.Close()

	req := map[string]any{"execute": name}
	if args != nil {
		req["arguments"] = args
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("qga encode %s: %w", name, err)
	}

	var raw rawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		return nil, fmt.Errorf("qga decode %s: %w", name, err)
	}
	if raw.Error != nil {
		return nil, fmt.Errorf("qga %s: %s: %s", name, raw.Error.Class, raw.Error.Desc)
	}
	return raw.Return, nil
}
