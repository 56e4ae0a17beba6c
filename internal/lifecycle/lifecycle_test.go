package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type light string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
	off    light = "off"
)

func newLight() *Machine[light] {
	return New("light", map[light][]light{
		red:    {green, off},
		green:  {yellow},
		yellow: {red},
	})
}

func TestTransitionDeclaredEdges(t *testing.T) {
	m := newLight()
	assert.NoError(t, m.Transition(red, green))
	assert.NoError(t, m.Transition(green, yellow))
	assert.NoError(t, m.Transition(red, off))
}

func TestTransitionRejectsUndeclared(t *testing.T) {
	m := newLight()
	assert.ErrorIs(t, m.Transition(green, red), ErrInvalidStateTransition)
	assert.ErrorIs(t, m.Transition(red, red), ErrInvalidStateTransition)
	assert.ErrorIs(t, m.Transition(off, red), ErrInvalidStateTransition)
	assert.ErrorIs(t, m.Transition("blue", red), ErrInvalidStateTransition)
}

func TestTerminalAndKnown(t *testing.T) {
	m := newLight()
	assert.True(t, m.Terminal(off))
	assert.False(t, m.Terminal(red))
	assert.True(t, m.Known(off))
	assert.False(t, m.Known("blue"))
}

func TestErrorNamesEdge(t *testing.T) {
	err := newLight().Transition(yellow, green)
	assert.EqualError(t, err, "invalid_state_transition: light yellow -> green")
}
