package evdevgrab

import (
	"context"
	"fmt"
	"sync"

	"github.com/arcnmx/screenstub-go/internal/filter"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

// Sink is the downstream consumer events are forwarded to after filtering.
type Sink interface {
	Send(inputevent.InputEvent) error
}

// eventSource is the subset of *Device that Spawn's merge loop depends on;
// narrowed to an interface so tests can exercise the merge/filter/error
// logic without opening real device nodes.
type eventSource interface {
	Path() string
	ReadEvent() (inputevent.InputEvent, error)
}

// Grabber opens a fixed set of evdev nodes, optionally grabs them
// exclusively, and fair-merges their event streams through an Event Filter
// into a downstream Sink.
type Grabber struct {
	devices []*Device
	sources []eventSource
	filter  *filter.Filter
}

// New opens every path in paths non-blocking and builds a Grabber whose
// filter suppresses the given ignored kinds.
func New(paths []string, ignoredKinds ...inputevent.Kind) (*Grabber, error) {
	devices := make([]*Device, 0, len(paths))
	for _, p := range paths {
		dev, err := Open(p)
		if err != nil {
			closeAll(devices)
			return nil, err
		}
		if _, err := dev.ID(); err != nil {
			dev.Close()
			closeAll(devices)
			return nil, fmt.Errorf("querying input id for %s: %w", p, err)
		}
		devices = append(devices, dev)
	}

	f := filter.New(0)
	f.Insert(ignoredKinds...)

	sources := make([]eventSource, len(devices))
	for i, d := range devices {
		sources[i] = d
	}

	return &Grabber{devices: devices, sources: sources, filter: f}, nil
}

// newWithSources builds a Grabber directly from pre-built event sources,
// bypassing device-node opening; used by tests to exercise the merge/filter
// loop against fakes.
func newWithSources(sources []eventSource, ignoredKinds ...inputevent.Kind) *Grabber {
	f := filter.New(0)
	f.Insert(ignoredKinds...)
	return &Grabber{sources: sources, filter: f}
}

func closeAll(devices []*Device) {
	for _, d := range devices {
		d.Close()
	}
}

// Devices returns the grabber's opened devices, e.g. for capability mirroring
// onto a virtual-input sink.
func (g *Grabber) Devices() []*Device {
	return g.devices
}

// Grab claims or releases exclusive access to every device.
func (g *Grabber) Grab(exclusive bool) error {
	for _, d := range g.devices {
		if err := d.Grab(exclusive); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every device.
func (g *Grabber) Close() error {
	var firstErr error
	for _, d := range g.devices {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Spawn fair-merges the per-device event streams, applies the ignored-kinds
// filter, and forwards surviving events to sink. Each device is read from
// its own goroutine. Per-device read errors and sink send errors are posted
// to errCh (non-blocking: a full or absent receiver never wedges the merge
// loop) and terminate the merge. The returned cancel function stops the
// session at the next suspension point; cancellation flushes no data.
func (g *Grabber) Spawn(ctx context.Context, sink Sink, errCh chan<- error) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	merged := make(chan inputevent.InputEvent)
	deviceErr := make(chan error, len(g.sources))

	var wg sync.WaitGroup
	for _, d := range g.sources {
		wg.Add(1)
		go func(d eventSource) {
			defer wg.Done()
			for {
				e, err := d.ReadEvent()
				if err != nil {
					select {
					case deviceErr <- fmt.Errorf("%s: %w", d.Path(), err):
					case <-ctx.Done():
					}
					return
				}
				select {
				case merged <- e:
				case <-ctx.Done():
					return
				}
			}
		}(d)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-deviceErr:
				postError(errCh, err)
				return
			case e, ok := <-merged:
				if !ok {
					select {
					case err := <-deviceErr:
						postError(errCh, err)
					default:
					}
					return
				}
				if !g.filter.Allow(e) {
					continue
				}
				if err := sink.Send(e); err != nil {
					postError(errCh, err)
					return
				}
			}
		}
	}()

	return cancel
}

func postError(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}
