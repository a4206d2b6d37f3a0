package uinputdev

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

func TestButtonPresetEnablesKeyKindAndButtonRange(t *testing.T) {
	b := NewBuilder("screenstub-dev-mouse", 0x06, 0, 0, 0).ButtonPreset()

	_, hasKeyKind := b.evBits[inputevent.EvKey]
	assert.True(t, hasKeyKind)

	_, hasLeft := b.keyBits[uint16(inputevent.ButtonLeft)]
	assert.True(t, hasLeft)
	_, hasA := b.keyBits[uint16(inputevent.KeyA)]
	assert.False(t, hasA, "button preset must not enable keyboard-class codes")
}

func TestRelativePresetAddsAxes(t *testing.T) {
	b := NewBuilder("screenstub-dev-mouse", 0x06, 0, 0, 0).RelativePreset()

	for _, axis := range []inputevent.RelativeAxis{
		inputevent.RelX, inputevent.RelY, inputevent.RelWheel, inputevent.RelHWheel,
	} {
		_, ok := b.relBits[uint16(axis)]
		assert.True(t, ok, "expected relative axis %v enabled", axis)
	}
	_, hasLeft := b.keyBits[uint16(inputevent.ButtonLeft)]
	assert.True(t, hasLeft, "relative preset includes the button preset")
}

func TestAbsolutePresetRangesAndWheel(t *testing.T) {
	b := NewBuilder("screenstub-dev-mouse", 0x06, 0, 0, 0).AbsolutePreset()

	x, ok := b.absInfo[uint16(inputevent.AbsX)]
	assert.True(t, ok)
	assert.Equal(t, int32(0), x.Minimum)
	assert.Equal(t, int32(0x8000), x.Maximum)

	y, ok := b.absInfo[uint16(inputevent.AbsY)]
	assert.True(t, ok)
	assert.Equal(t, int32(0x8000), y.Maximum)

	_, hasWheel := b.relBits[uint16(inputevent.RelWheel)]
	assert.True(t, hasWheel, "absolute preset still reports a relative scroll wheel")
}

func TestKeyPresetAutorepeat(t *testing.T) {
	b := NewBuilder("screenstub-dev-kbd", 0x06, 0, 0, 0).KeyPreset(true)
	_, hasRepeat := b.evBits[evRepeat]
	assert.True(t, hasRepeat)

	_, hasEsc := b.keyBits[uint16(inputevent.KeyEsc)]
	assert.True(t, hasEsc)
	_, hasLeftButton := b.keyBits[uint16(inputevent.ButtonLeft)]
	assert.False(t, hasLeftButton, "key preset must not enable button-class codes")
}

func TestFromEvdevMirrorsCapabilities(t *testing.T) {
	caps := DeviceCapabilities{
		EventBits: []uint16{inputevent.EvKey, inputevent.EvAbs},
		KeyBits:   []uint16{uint16(inputevent.KeyA)},
		AbsBits:   []uint16{uint16(inputevent.AbsX)},
		AbsInfo:   map[uint16]AbsInfo{uint16(inputevent.AbsX): {Minimum: 0, Maximum: 4095}},
		Props:     []uint16{1},
	}

	b := NewBuilder("mirrored", 0, 0, 0, 0).FromEvdev(caps)

	_, hasKey := b.evBits[inputevent.EvKey]
	assert.True(t, hasKey)
	_, hasA := b.keyBits[uint16(inputevent.KeyA)]
	assert.True(t, hasA)
	info, ok := b.absInfo[uint16(inputevent.AbsX)]
	assert.True(t, ok)
	assert.Equal(t, int32(4095), info.Maximum)
	_, hasProp := b.propBits[1]
	assert.True(t, hasProp)
}
