package qemu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
)

// Event is one QMP asynchronous event (e.g. DEVICE_DELETED).
type Event struct {
	Name string
	Data json.RawMessage
}

type qmpErrorValue struct {
	Class string `json:"class"`
	Desc  string `json:"desc"`
}

// QMPError is a QMP command's error reply, preserving the qapi ErrorClass
// string (e.g. "DeviceNotFound") so callers can branch on it with errors.As
// instead of string-matching the formatted message.
type QMPError struct {
	Class string
	Desc  string
}

func (e *QMPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Desc)
}

// rawMessage demultiplexes the two shapes a QMP/QGA line can take: an async
// event, or a command reply (return or error).
type rawMessage struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Return json.RawMessage `json:"return"`
	Error  *qmpErrorValue  `json:"error"`
}

// QmpHandle is one live connection to a QMP monitor socket. Commands are
// serialized (mu) since QMP is a single request/response channel; async
// events are demultiplexed onto a side channel by a background read loop.
type QmpHandle struct {
	conn net.Conn
	dec  *json.Decoder

	mu        sync.Mutex
	responses chan rawMessage
	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

func connectQmp(ctx context.Context, path string) (*QmpHandle, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial qmp %s: %w", path, err)
	}

	h := &QmpHandle{
		conn:      conn,
		dec:       json.NewDecoder(conn),
		responses: make(chan rawMessage),
		events:    make(chan Event, 64),
		closed:    make(chan struct{}),
	}

	var greeting struct {
		QMP json.RawMessage `json:"QMP"`
	}
	if err := h.dec.Decode(&greeting); err != nil {
		conn.Close()
		return nil, fmt.Errorf("qmp greeting: %w", err)
	}

	go h.readLoop()

	if _, err := h.Execute(ctx, "qmp_capabilities", nil); err != nil {
		h.Close()
		return nil, fmt.Errorf("qmp_capabilities: %w", err)
	}

	return h, nil
}

func (h *QmpHandle) readLoop() {
	for {
		var raw rawMessage
		if err := h.dec.Decode(&raw); err != nil {
			return
		}
		if raw.Event != "" {
			select {
			case h.events <- Event{Name: raw.Event, Data: raw.Data}:
			default: // nobody listening; events beyond DEVICE_DELETED are advisory
			}
			continue
		}
		select {
		case h.responses <- raw:
		case <-h.closed:
			return
		}
	}
}

// Execute sends one command and waits for its reply, serialized against any
// concurrent Execute calls on the same handle.
func (h *QmpHandle) Execute(ctx context.Context, name string, args any) (json.RawMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	req := map[string]any{"execute": name}
	if args != nil {
		req["arguments"] = args
	}
	if err := json.NewEncoder(h.conn).Encode(req); err != nil {
		return nil, fmt.Errorf("qmp encode %s: %w", name, err)
	}

	select {
	case raw := <-h.responses:
		if raw.Error != nil {
			return nil, fmt.Errorf("qmp %s: %w", name, &QMPError{Class: raw.Error.Class, Desc: raw.Error.Desc})
		}
		return raw.Return, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.closed:
		return nil, errors.New("qmp connection closed")
	}
}

// Events returns the channel async QMP events are delivered on. Buffered;
// events that arrive faster than they're drained are dropped, matching the
// "advisory" nature of everything but the event a caller explicitly waits
// for (DEVICE_DELETED during device removal).
func (h *QmpHandle) Events() <-chan Event {
	return h.events
}

// Close tears down the connection and unblocks any pending Execute calls.
func (h *QmpHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)
		err = h.conn.Close()
	})
	return err
}
