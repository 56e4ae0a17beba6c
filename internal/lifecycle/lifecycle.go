// Package lifecycle enforces declared status transitions for stateful entities.
package lifecycle

import (
	"errors"
	"fmt"
)

var ErrInvalidStateTransition = errors.New("invalid_state_transition")

// Machine is an immutable transition table over a string-backed status type.
type Machine[S ~string] struct {
	name  string
	edges map[S]map[S]struct{}
}

// New builds a machine from an adjacency list. States with no outgoing edges are terminal.
func New[S ~string](name string, edges map[S][]S) *Machine[S] {
	m := &Machine[S]{name: name, edges: make(map[S]map[S]struct{}, len(edges))}
	for from, targets := range edges {
		set := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		m.edges[from] = set
	}
	return m
}

// Transition returns nil only for a declared edge. Self loops are never declared.
func (m *Machine[S]) Transition(from, to S) error {
	if _, ok := m.edges[from][to]; ok {
		return nil
	}
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidStateTransition, m.name, from, to)
}

// Terminal reports whether no transition leaves s.
func (m *Machine[S]) Terminal(s S) bool {
	return len(m.edges[s]) == 0
}

// Known reports whether s appears in the table as a source or target.
func (m *Machine[S]) Known(s S) bool {
	if _, ok := m.edges[s]; ok {
		return true
	}
	for _, targets := range m.edges {
		if _, ok := targets[s]; ok {
			return true
		}
	}
	return false
}
