package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/config"
	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

func TestMatcherFiresOnTriggerWithModifiersHeld(t *testing.T) {
	m := NewMatcher()
	m.Add(Hotkey{
		Triggers:  []inputevent.Key{inputevent.KeyRightMeta},
		Modifiers: []inputevent.Key{inputevent.KeyLeftCtrl, inputevent.KeyLeftAlt},
		Actions:   []config.Event{{Kind: config.EventToggleShow}},
	})

	assert.Empty(t, m.Process(inputevent.KeyLeftCtrl, inputevent.KeyPressed))
	assert.Empty(t, m.Process(inputevent.KeyLeftAlt, inputevent.KeyPressed))

	actions := m.Process(inputevent.KeyRightMeta, inputevent.KeyPressed)
	require.Len(t, actions, 1)
	assert.Equal(t, config.EventToggleShow, actions[0].Kind)
}

func TestMatcherDoesNotFireWithoutAllModifiers(t *testing.T) {
	m := NewMatcher()
	m.Add(Hotkey{
		Triggers:  []inputevent.Key{inputevent.KeyRightMeta},
		Modifiers: []inputevent.Key{inputevent.KeyLeftCtrl, inputevent.KeyLeftAlt},
		Actions:   []config.Event{{Kind: config.EventToggleShow}},
	})

	m.Process(inputevent.KeyLeftCtrl, inputevent.KeyPressed)
	actions := m.Process(inputevent.KeyRightMeta, inputevent.KeyPressed)
	assert.Empty(t, actions, "alt was never pressed, hotkey must not fire")
}

func TestMatcherOnReleaseTrigger(t *testing.T) {
	m := NewMatcher()
	m.Add(Hotkey{
		Triggers:  []inputevent.Key{inputevent.KeyRightMeta},
		OnRelease: true,
		Actions:   []config.Event{{Kind: config.EventUngrab}},
	})

	m.Process(inputevent.KeyRightMeta, inputevent.KeyPressed)
	assert.True(t, m.Pressed(inputevent.KeyRightMeta))

	actions := m.Process(inputevent.KeyRightMeta, inputevent.KeyReleased)
	require.Len(t, actions, 1)
	assert.Equal(t, config.EventUngrab, actions[0].Kind)
	assert.False(t, m.Pressed(inputevent.KeyRightMeta), "release clears pressed after matching")
}

func TestUnstickEmptiesPressedAndEndsWithSync(t *testing.T) {
	m := NewMatcher()
	m.Process(inputevent.KeyA, inputevent.KeyPressed)
	m.Process(inputevent.KeyS, inputevent.KeyPressed)
	require.True(t, m.Pressed(inputevent.KeyA))
	require.True(t, m.Pressed(inputevent.KeyS))

	events := m.Unstick()
	require.Len(t, events, 3) // two releases plus one sync

	last := events[len(events)-1]
	assert.Equal(t, inputevent.EvSyn, last.Type)
	assert.Equal(t, inputevent.SynReport, last.Code)

	for _, e := range events[:len(events)-1] {
		assert.Equal(t, inputevent.EvKey, e.Type)
		assert.Equal(t, int32(inputevent.KeyReleased), e.Value)
	}

	assert.False(t, m.Pressed(inputevent.KeyA))
	assert.False(t, m.Pressed(inputevent.KeyS))
}

func TestUnstickOnEmptyPressedStillEmitsSync(t *testing.T) {
	m := NewMatcher()
	events := m.Unstick()
	require.Len(t, events, 1)
	assert.Equal(t, inputevent.EvSyn, events[0].Type)
}

func TestAutorepeatDoesNotAffectPressedSet(t *testing.T) {
	m := NewMatcher()
	m.Process(inputevent.KeyA, inputevent.KeyPressed)
	actions := m.Process(inputevent.KeyA, inputevent.KeyRepeat)
	assert.Empty(t, actions)
	assert.True(t, m.Pressed(inputevent.KeyA))
}
