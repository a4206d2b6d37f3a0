package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

func TestAllowUnfilteredKind(t *testing.T) {
	f := New(0)
	f.Insert(inputevent.KindKey)

	rel := inputevent.InputEvent{Type: inputevent.EvRel, Code: uint16(inputevent.RelX)}
	assert.True(t, f.Allow(rel), "relative events are unaffected by a key filter")
}

func TestAllowFilteredKind(t *testing.T) {
	f := New(0)
	f.Insert(inputevent.KindKey)

	key := inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed)
	assert.False(t, f.Allow(key))

	f.Remove(inputevent.KindKey)
	assert.True(t, f.Allow(key))
}

func TestAllowSyncAlwaysPasses(t *testing.T) {
	f := New(0xffff)
	sync := inputevent.Sync()
	assert.True(t, f.Allow(sync), "synchronization events are never dropped")
}

func TestInsertRemoveIdempotent(t *testing.T) {
	f := New(0)
	f.Insert(inputevent.KindButton, inputevent.KindButton)
	require.True(t, f.Contains(inputevent.KindButton))

	f.Remove(inputevent.KindButton)
	assert.False(t, f.Contains(inputevent.KindButton))
	f.Remove(inputevent.KindButton) // removing twice is a no-op
	assert.False(t, f.Contains(inputevent.KindButton))
}

func TestSetReplacesMask(t *testing.T) {
	f := New(0)
	f.Insert(inputevent.KindKey, inputevent.KindButton)
	f.Set(Mask(0).Insert(inputevent.KindRelative))

	assert.False(t, f.Contains(inputevent.KindKey))
	assert.False(t, f.Contains(inputevent.KindButton))
	assert.True(t, f.Contains(inputevent.KindRelative))
}
