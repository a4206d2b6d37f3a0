package route

import (
	"context"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
	"github.com/arcnmx/screenstub-go/internal/qemu"
)

// batchThreshold caps how many converted events accumulate into a single
// input-send-event call before it's flushed, matching the original's
// THRESHOLD = 0x20 (route.rs).
const batchThreshold = 0x20

// RouteQmp forwards events to the guest purely over QMP's input-send-event
// command, batching as many as are already queued (up to batchThreshold)
// into one call rather than issuing one round-trip per event.
type RouteQmp struct {
	qemu *qemu.Qemu
}

// NewRouteQmp builds a RouteQmp targeting q.
func NewRouteQmp(q *qemu.Qemu) *RouteQmp {
	return &RouteQmp{qemu: q}
}

// Spawn drains events until the channel closes or ctx is cancelled,
// translating and batching them into input-send-event calls. On a failed
// call, the error is posted to errCh and the routing goroutine terminates,
// per the original's spawn shape (a rejected batch ends the session rather
// than silently dropping it).
func (r *RouteQmp) Spawn(ctx context.Context, events <-chan inputevent.InputEvent, errCh chan<- error) {
	go func() {
		var batch []qmpInputEvent

		// send reports whether the loop should keep running.
		send := func() bool {
			if len(batch) == 0 {
				return true
			}
			if _, err := r.qemu.ExecuteQMP(ctx, "input-send-event", map[string]any{"events": batch}); err != nil {
				postError(errCh, err)
				return false
			}
			batch = batch[:0]
			return true
		}

		for {
			select {
			case <-ctx.Done():
				send()
				return
			case e, ok := <-events:
				if !ok {
					send()
					return
				}
				if converted, ok := convertEvent(e); ok {
					batch = append(batch, converted)
				}

			drain:
				for len(batch) < batchThreshold {
					select {
					case e2, ok := <-events:
						if !ok {
							send()
							return
						}
						if converted, ok := convertEvent(e2); ok {
							batch = append(batch, converted)
						}
					default:
						break drain
					}
				}
				if !send() {
					return
				}
			}
		}
	}()
}

func postError(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}
