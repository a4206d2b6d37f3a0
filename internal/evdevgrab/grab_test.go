package evdevgrab

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

// fakeSource is an eventSource that replays a fixed queue of events, then
// blocks until closed (simulating a device with nothing further to report).
type fakeSource struct {
	path   string
	events []inputevent.InputEvent
	mu     sync.Mutex
	idx    int
	done   chan struct{}
	err    error
}

func newFakeSource(path string, events ...inputevent.InputEvent) *fakeSource {
	return &fakeSource{path: path, events: events, done: make(chan struct{})}
}

func (f *fakeSource) Path() string { return f.path }

func (f *fakeSource) ReadEvent() (inputevent.InputEvent, error) {
	f.mu.Lock()
	if f.idx < len(f.events) {
		e := f.events[f.idx]
		f.idx++
		f.mu.Unlock()
		return e, nil
	}
	f.mu.Unlock()

	<-f.done
	if f.err != nil {
		return inputevent.InputEvent{}, f.err
	}
	return inputevent.InputEvent{}, errors.New("fakeSource: closed")
}

func (f *fakeSource) close(err error) {
	f.err = err
	close(f.done)
}

type collectingSink struct {
	mu     sync.Mutex
	events []inputevent.InputEvent
}

func (s *collectingSink) Send(e inputevent.InputEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *collectingSink) snapshot() []inputevent.InputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inputevent.InputEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestSpawnMergesMultipleDevices(t *testing.T) {
	a := newFakeSource("/dev/input/a", inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed))
	b := newFakeSource("/dev/input/b", inputevent.NewKey(inputevent.KeyS, inputevent.KeyPressed))

	g := newWithSources([]eventSource{a, b})
	sink := &collectingSink{}
	errCh := make(chan error, 2)

	cancel := g.Spawn(context.Background(), sink, errCh)
	defer cancel()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	a.close(nil)
	b.close(nil)
}

func TestSpawnFiltersIgnoredKinds(t *testing.T) {
	a := newFakeSource("/dev/input/a",
		inputevent.NewKey(inputevent.ButtonLeft, inputevent.KeyPressed),
		inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed),
	)

	g := newWithSources([]eventSource{a}, inputevent.KindButton)
	sink := &collectingSink{}
	errCh := make(chan error, 1)

	cancel := g.Spawn(context.Background(), sink, errCh)
	defer cancel()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	events := sink.snapshot()
	assert.Equal(t, uint16(inputevent.KeyA), events[0].Code, "button event must have been dropped by the filter")

	a.close(nil)
}

func TestSpawnPostsDeviceErrorAndTerminates(t *testing.T) {
	a := newFakeSource("/dev/input/a")
	g := newWithSources([]eventSource{a})
	sink := &collectingSink{}
	errCh := make(chan error, 1)

	cancel := g.Spawn(context.Background(), sink, errCh)
	defer cancel()

	a.close(errors.New("boom"))

	select {
	case err := <-errCh:
		assert.ErrorContains(t, err, "boom")
	case <-time.After(time.Second):
		t.Fatal("expected device error to be posted")
	}
}

func TestSpawnCancelStopsMergeLoop(t *testing.T) {
	a := newFakeSource("/dev/input/a")
	g := newWithSources([]eventSource{a})
	sink := &collectingSink{}
	errCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	g.Spawn(ctx, sink, errCh)
	cancel()

	a.close(nil)
	// No assertion beyond "this returns without hanging" — cancellation must
	// not block on a device that never produces another event.
}
