package route

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/qemu"
)

type recordedCall struct {
	eventCount int
}

// fakeQmpServer speaks just enough QMP to satisfy qemu.New: a greeting, a
// qmp_capabilities reply, then for every input-send-event call it records
// how many events were batched into that one call and replies success.
func fakeQmpServer(t *testing.T, socket string, onCall func(cmd map[string]any)) net.Listener {
	t.Helper()
	ln, err := net.Listen("unix", socket)
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		enc := json.NewEncoder(conn)
		dec := json.NewDecoder(conn)

		_ = enc.Encode(map[string]any{"QMP": map[string]any{}})
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
			onCall(cmd)
			_ = enc.Encode(map[string]any{"return": map[string]any{}})
		}
	}()

	return ln
}

func TestRouteQmpBatchesQueuedEvents(t *testing.T) {
	var mu sync.Mutex
	var calls []recordedCall

	socket := filepath.Join(t.TempDir(), "qmp.sock")
	ln := fakeQmpServer(t, socket, func(cmd map[string]any) {
		assert.Equal(t, "input-send-event", cmd["execute"])
		args := cmd["arguments"].(map[string]any)
		events := args["events"].([]any)

		mu.Lock()
		calls = append(calls, recordedCall{eventCount: len(events)})
		mu.Unlock()
	})
	defer ln.Close()

	q := qemu.New(socket, "")
	r := NewRouteQmp(q)

	events := make(chan inputevent.InputEvent, batchThreshold*2)
	errCh := make(chan error, 4)

	// Queue events *before* Spawn starts draining so the first drain pass
	// sees them all already pending and batches them into one call.
	for i := 0; i < 5; i++ {
		events <- inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Spawn(ctx, events, errCh)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) >= 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 5, calls[0].eventCount, "all 5 pre-queued events must land in a single batch")
	mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}

func TestRouteQmpCapsBatchAtThreshold(t *testing.T) {
	var mu sync.Mutex
	var calls []recordedCall

	socket := filepath.Join(t.TempDir(), "qmp.sock")
	ln := fakeQmpServer(t, socket, func(cmd map[string]any) {
		args := cmd["arguments"].(map[string]any)
		events := args["events"].([]any)
		mu.Lock()
		calls = append(calls, recordedCall{eventCount: len(events)})
		mu.Unlock()
	})
	defer ln.Close()

	q := qemu.New(socket, "")
	r := NewRouteQmp(q)

	total := batchThreshold + 10
	events := make(chan inputevent.InputEvent, total)
	errCh := make(chan error, 4)

	for i := 0; i < total; i++ {
		events <- inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Spawn(ctx, events, errCh)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) >= 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.LessOrEqual(t, calls[0].eventCount, batchThreshold, "no single batch may exceed the threshold")
	mu.Unlock()
}
