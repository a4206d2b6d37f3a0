// Package remap implements the Key Remapper: a static, pure mapping applied
// in-place to key events after filtering, before transport.
package remap

import "github.com/arcnmx/screenstub-go/internal/inputevent"

// Table is a static key-to-key remap. Built once from configuration at
// startup and never mutated afterward.
type Table map[inputevent.Key]inputevent.Key

// Apply rewrites e's code if e is a key event and its code is a map key;
// otherwise e is returned unchanged. Buttons, axes, and every other field of
// e (kind, value, time) are always preserved.
func (t Table) Apply(e inputevent.InputEvent) inputevent.InputEvent {
	if t == nil || e.Kind() != inputevent.KindKey {
		return e
	}
	key, _ := e.Key()
	mapped, ok := t[key]
	if !ok {
		return e
	}
	e.Code = uint16(mapped)
	return e
}
