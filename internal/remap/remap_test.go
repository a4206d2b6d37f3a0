package remap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcnmx/screenstub-go/internal/inputevent"
)

func TestApplyRewritesMappedKey(t *testing.T) {
	table := Table{inputevent.KeyA: inputevent.KeyQ}

	in := inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed)
	out := table.Apply(in)

	assert.Equal(t, uint16(inputevent.KeyQ), out.Code)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Value, out.Value)
	assert.Equal(t, in.Time, out.Time)
}

func TestApplyLeavesUnmappedKeyIntact(t *testing.T) {
	table := Table{inputevent.KeyA: inputevent.KeyQ}

	in := inputevent.NewKey(inputevent.KeyS, inputevent.KeyPressed)
	out := table.Apply(in)

	assert.Equal(t, in, out)
}

func TestApplyIgnoresNonKeyEvents(t *testing.T) {
	table := Table{inputevent.Key(uint16(inputevent.RelX)): inputevent.KeyQ}

	in := inputevent.InputEvent{Type: inputevent.EvRel, Code: uint16(inputevent.RelX), Value: 3}
	out := table.Apply(in)

	assert.Equal(t, in, out, "remap only touches key kind events, never relative axes")
}

func TestApplyNilTable(t *testing.T) {
	var table Table
	in := inputevent.NewKey(inputevent.KeyA, inputevent.KeyPressed)
	assert.Equal(t, in, table.Apply(in))
}
