package inputevent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassification(t *testing.T) {
	key := NewKey(KeyA, KeyPressed)
	assert.Equal(t, KindKey, key.Kind())

	btn := NewKey(ButtonLeft, KeyPressed)
	assert.Equal(t, KindButton, btn.Kind())

	rel := InputEvent{Type: EvRel, Code: uint16(RelX), Value: 5}
	assert.Equal(t, KindRelative, rel.Kind())

	unknown := InputEvent{Type: 0xff}
	assert.Equal(t, KindUnknown, unknown.Kind())
}

func TestWireRoundTrip(t *testing.T) {
	e := InputEvent{
		Time:  time.Unix(1000, 123000),
		Type:  EvKey,
		Code:  uint16(KeyA),
		Value: int32(KeyPressed),
	}
	buf := e.MarshalWire()
	got := UnmarshalWire(buf[:])

	require.Equal(t, e.Type, got.Type)
	require.Equal(t, e.Code, got.Code)
	require.Equal(t, e.Value, got.Value)
	assert.Equal(t, e.Time.Unix(), got.Time.Unix())
}

func TestIsButton(t *testing.T) {
	assert.True(t, ButtonLeft.IsButton())
	assert.False(t, KeyA.IsButton())
	assert.True(t, KeyA.IsKey())
}
