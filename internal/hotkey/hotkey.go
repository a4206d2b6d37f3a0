// Package hotkey implements the Hotkey Matcher: holds trigger/modifier sets
// and, given a stream of key up/down events, emits zero or more user-defined
// actions. Maintains a "currently-pressed" multiset.
package hotkey

import (
	"sync"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

// Hotkey is a single configured combination: it fires when some trigger key
// transitions into the active state (press, unless OnRelease) while every
// trigger and modifier key is held.
type Hotkey struct {
	Triggers  []inputevent.Key
	Modifiers []inputevent.Key
	Actions   []config.Event
	OnRelease bool
	Global    bool
}

// keys iterates the union of triggers and modifiers, the set that must all
// be held for this hotkey to match.
func (h Hotkey) keys() []inputevent.Key {
	all := make([]inputevent.Key, 0, len(h.Triggers)+len(h.Modifiers))
	all = append(all, h.Triggers...)
	all = append(all, h.Modifiers...)
	return all
}

func (h Hotkey) hasTrigger(k inputevent.Key) bool {
	for _, t := range h.Triggers {
		if t == k {
			return true
		}
	}
	return false
}

// Matcher holds the built press/release indices and the live pressed set.
// Built once from configuration at startup, it is safe for concurrent use
// via its internal mutex; contention is negligible because only one
// input-loop goroutine calls Process.
type Matcher struct {
	mu             sync.Mutex
	pressed        map[inputevent.Key]struct{}
	triggersPress  map[inputevent.Key][]*Hotkey
	triggersRelease map[inputevent.Key][]*Hotkey
}

// NewMatcher returns an empty Matcher ready for hotkeys to be added.
func NewMatcher() *Matcher {
	return &Matcher{
		pressed:         make(map[inputevent.Key]struct{}),
		triggersPress:   make(map[inputevent.Key][]*Hotkey),
		triggersRelease: make(map[inputevent.Key][]*Hotkey),
	}
}

// Add registers a hotkey, indexing it under each of its trigger keys in the
// press index (default) or the release index (when OnRelease is set).
func (m *Matcher) Add(h Hotkey) {
	hk := &h
	index := m.triggersPress
	if h.OnRelease {
		index = m.triggersRelease
	}
	for _, key := range h.Triggers {
		index[key] = append(index[key], hk)
	}
}

// Process handles a single key/button event, returning the concatenated
// actions of every hotkey that matched, in index order.
func (m *Matcher) Process(key inputevent.Key, state inputevent.KeyState) []config.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var index map[inputevent.Key][]*Hotkey
	switch state {
	case inputevent.KeyPressed:
		index = m.triggersPress
	case inputevent.KeyReleased:
		index = m.triggersRelease
	default:
		index = nil // autorepeat and other states: no trigger lookup
	}

	if state == inputevent.KeyPressed {
		m.pressed[key] = struct{}{}
	}

	var actions []config.Event
	if index != nil {
		for _, h := range index[key] {
			if !h.hasTrigger(key) {
				continue
			}
			if m.allHeld(h.keys()) {
				actions = append(actions, h.Actions...)
			}
		}
	}

	if state == inputevent.KeyReleased {
		delete(m.pressed, key)
	}

	return actions
}

func (m *Matcher) allHeld(keys []inputevent.Key) bool {
	for _, k := range keys {
		if _, ok := m.pressed[k]; !ok {
			return false
		}
	}
	return true
}

// Unstick emits a release event for every currently pressed key followed by
// a synchronization event, then clears the pressed set.
func (m *Matcher) Unstick() []inputevent.InputEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]inputevent.InputEvent, 0, len(m.pressed)+1)
	for k := range m.pressed {
		events = append(events, inputevent.NewKey(k, inputevent.KeyReleased))
	}
	events = append(events, inputevent.Sync())

	m.pressed = make(map[inputevent.Key]struct{})
	return events
}

// Pressed reports whether key is currently tracked as held, for tests and
// diagnostics.
func (m *Matcher) Pressed(key inputevent.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pressed[key]
	return ok
}
