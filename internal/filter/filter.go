// Package filter implements the Event Filter: a lock-free, atomically
// settable bitmask over coarse input event kinds used to suppress classes of
// events from a given source.
package filter

import (
	"sync/atomic"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

// Mask is a bitmask over inputevent.Kind values. Bit i corresponds to
// inputevent.Kind(i).
type Mask uint16

// bit returns the mask bit for a single kind.
func bit(k inputevent.Kind) Mask {
	return Mask(1) << uint(k)
}

// Insert returns m with kind added.
func (m Mask) Insert(k inputevent.Kind) Mask {
	return m | bit(k)
}

// Remove returns m with kind removed.
func (m Mask) Remove(k inputevent.Kind) Mask {
	return m &^ bit(k)
}

// Contains reports whether kind is set in m.
func (m Mask) Contains(k inputevent.Kind) bool {
	return m&bit(k) != 0
}

// Filter holds a single atomic word of Mask. All operations are lock-free
// and relaxed-ordered: the filter is advisory, and a reader racing a writer
// may observe a stale mask for one event.
type Filter struct {
	word atomic.Uint32
}

// New returns a Filter with the given initial mask.
func New(initial Mask) *Filter {
	f := &Filter{}
	f.word.Store(uint32(initial))
	return f
}

// Set replaces the filter's mask outright.
func (f *Filter) Set(m Mask) {
	f.word.Store(uint32(m))
}

// Get returns the current mask.
func (f *Filter) Get() Mask {
	return Mask(f.word.Load())
}

// Insert adds kinds to the current mask.
func (f *Filter) Insert(kinds ...inputevent.Kind) {
	for {
		old := f.word.Load()
		next := uint32(Mask(old).insertAll(kinds))
		if f.word.CompareAndSwap(old, next) {
			return
		}
	}
}

// Remove clears kinds from the current mask.
func (f *Filter) Remove(kinds ...inputevent.Kind) {
	for {
		old := f.word.Load()
		next := uint32(Mask(old).removeAll(kinds))
		if f.word.CompareAndSwap(old, next) {
			return
		}
	}
}

func (m Mask) insertAll(kinds []inputevent.Kind) Mask {
	for _, k := range kinds {
		m = m.Insert(k)
	}
	return m
}

func (m Mask) removeAll(kinds []inputevent.Kind) Mask {
	for _, k := range kinds {
		m = m.Remove(k)
	}
	return m
}

// Contains reports whether kind is currently in the filter's mask.
func (f *Filter) Contains(k inputevent.Kind) bool {
	return f.Get().Contains(k)
}

// Allow reports whether an event should pass through the filter: true iff
// the event's kind is unrecognized (synchronization and unknown kinds are
// never dropped) or the kind is not currently in the filter's mask.
func (f *Filter) Allow(e inputevent.InputEvent) bool {
	k := e.Kind()
	if k == inputevent.KindUnknown {
		return true
	}
	return !f.Contains(k)
}
