package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

func TestConvertEventButtonMapping(t *testing.T) {
	cases := []struct {
		key  inputevent.Key
		want string
	}{
		{inputevent.ButtonLeft, "left"},
		{inputevent.ButtonMiddle, "middle"},
		{inputevent.ButtonRight, "right"},
		{inputevent.ButtonWheel, "wheel-down"},
		{inputevent.ButtonGearUp, "wheel-up"},
		{inputevent.ButtonSide, "side"},
		{inputevent.ButtonExtra, "extra"},
	}

	for _, c := range cases {
		e := inputevent.NewKey(c.key, inputevent.KeyPressed)
		converted, ok := convertEvent(e)
		require.True(t, ok, "button %v must convert", c.key)
		assert.Equal(t, "btn", converted.Type)
		data, ok := converted.Data.(qmpBtnEventData)
		require.True(t, ok)
		assert.Equal(t, c.want, data.Button)
		assert.True(t, data.Down)
	}
}

func TestConvertEventUnmappedButtonDropped(t *testing.T) {
	e := inputevent.NewKey(inputevent.ButtonForward, inputevent.KeyPressed)
	_, ok := convertEvent(e)
	assert.False(t, ok, "buttons outside the original's table must be dropped, not guessed at")
}

func TestConvertEventKeyReservedDropped(t *testing.T) {
	e := inputevent.NewKey(inputevent.KeyReserved, inputevent.KeyPressed)
	_, ok := convertEvent(e)
	assert.False(t, ok)
}

func TestConvertEventKeyUsesNumericKeycode(t *testing.T) {
	e := inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed)
	converted, ok := convertEvent(e)
	require.True(t, ok)
	assert.Equal(t, "key", converted.Type)
	data := converted.Data.(qmpKeyEventData)
	assert.True(t, data.Down)
	assert.Equal(t, "number", data.Key.Type)
	assert.Equal(t, int(inputevent.KeyA), data.Key.Data)
}

func TestConvertEventRelativeXYPassThroughOthersDropped(t *testing.T) {
	x := inputevent.InputEvent{Type: inputevent.EvRel, Code: uint16(inputevent.RelX), Value: 7}
	converted, ok := convertEvent(x)
	require.True(t, ok)
	assert.Equal(t, "rel", converted.Type)
	assert.Equal(t, qmpMoveEventData{Axis: "x", Value: 7}, converted.Data)

	wheel := inputevent.InputEvent{Type: inputevent.EvRel, Code: uint16(inputevent.RelWheel), Value: 1}
	_, ok = convertEvent(wheel)
	assert.False(t, ok, "non-X/Y relative axes are dropped, matching the original's catch-all")
}

func TestConvertEventAbsoluteXYPassThrough(t *testing.T) {
	e := inputevent.InputEvent{Type: inputevent.EvAbs, Code: uint16(inputevent.AbsY), Value: 1000}
	converted, ok := convertEvent(e)
	require.True(t, ok)
	assert.Equal(t, "abs", converted.Type)
	assert.Equal(t, qmpMoveEventData{Axis: "y", Value: 1000}, converted.Data)
}
