package statemachine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"facette.io/natsort"
	"github.com/zeebo/xxh3"
)

// ContextFunc computes the initial context of an actor from its start input.
type ContextFunc[C any] func(input any) (C, error)

// ContextFrom adapts a typed constructor to a ContextFunc. A nil input is
// passed as the zero value of I; pointers to I are dereferenced; anything
// else fails with ErrInvalidInput.
func ContextFrom[C, I any](fn func(input I) (C, error)) ContextFunc[C] {
	return func(input any) (C, error) {
		var typed I

		switch v := input.(type) {
		case nil:
		case I:
			typed = v
		case *I:
			if v != nil {
				typed = *v
			}
		default:
			var zero C

			return zero, fmt.Errorf("%w: expected %T, got %T", ErrInvalidInput, typed, input)
		}

		return fn(typed)
	}
}

// Machine is an immutable transition table. Build one with a Builder or from
// a YAML Config; any number of actors may share it.
type Machine[C any] struct {
	id          string
	initial     string
	states      map[string]*State[C]
	context     ContextFunc[C]
	fingerprint string
}

// ID returns the machine identifier.
func (m *Machine[C]) ID() string { return m.id }

// Initial returns the name of the initial state.
func (m *Machine[C]) Initial() string { return m.initial }

// State returns a copy of the named state definition.
func (m *Machine[C]) State(name string) (State[C], bool) {
	st, ok := m.states[name]
	if !ok {
		return State[C]{}, false
	}

	return st.clone(), true
}

// clone copies the rule lists and every pointer field, so the copy shares
// nothing mutable with st.
func (st *State[C]) clone() State[C] {
	out := *st

	out.On = make(map[string][]Transition[C], len(st.On))
	for ev, rules := range st.On {
		out.On[ev] = append([]Transition[C](nil), rules...)
	}

	if st.After != nil {
		after := *st.After
		out.After = &after
	}

	if st.Invoke != nil {
		inv := *st.Invoke

		if inv.OnDone != nil {
			done := *inv.OnDone
			inv.OnDone = &done
		}

		if inv.OnError != nil {
			onErr := *inv.OnError
			inv.OnError = &onErr
		}

		out.Invoke = &inv
	}

	return out
}

// StateNames returns every state name in natural order.
func (m *Machine[C]) StateNames() []string {
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}

	natsort.Sort(names)

	return names
}

// Events returns the event types the named state reacts to, in natural order.
func (m *Machine[C]) Events(state string) []string {
	st, ok := m.states[state]
	if !ok {
		return nil
	}

	events := make([]string, 0, len(st.On))
	for ev := range st.On {
		events = append(events, ev)
	}

	natsort.Sort(events)

	return events
}

// NewContext computes the initial context for the given start input.
func (m *Machine[C]) NewContext(input any) (C, error) {
	return m.context(input)
}

// targets lists every state reachable from st in one step.
func (st *State[C]) targets() []string {
	var out []string

	for _, rules := range st.On {
		for _, r := range rules {
			out = append(out, r.Target)
		}
	}

	if st.After != nil {
		out = append(out, st.After.Target)
	}

	if st.Invoke != nil {
		if st.Invoke.OnDone != nil {
			out = append(out, st.Invoke.OnDone.Target)
		}

		if st.Invoke.OnError != nil {
			out = append(out, st.Invoke.OnError.Target)
		}
	}

	return out
}

// Unreachable returns the states that no path from the initial state leads to.
func (m *Machine[C]) Unreachable() []string {
	reachable := map[string]bool{m.initial: true}

	queue := []string{m.initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		st, ok := m.states[current]
		if !ok {
			continue
		}

		for _, target := range st.targets() {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	var out []string

	for _, name := range m.StateNames() {
		if !reachable[name] {
			out = append(out, name)
		}
	}

	return out
}

// Fingerprint identifies the shape of the table: states, event types, targets,
// delays and invocation ids. Guards and actions are not part of it.
func (m *Machine[C]) Fingerprint() string {
	return m.fingerprint
}

func (m *Machine[C]) computeFingerprint() string {
	var sb strings.Builder

	sb.WriteString(m.id)
	sb.WriteString("|")
	sb.WriteString(m.initial)

	for _, name := range m.StateNames() {
		st := m.states[name]

		sb.WriteString("\n")
		sb.WriteString(name)

		for _, ev := range m.Events(name) {
			sb.WriteString(" on:" + ev + "->")

			for _, r := range st.On[ev] {
				sb.WriteString(r.Target)
				sb.WriteString(strconv.FormatBool(r.Guard != nil))
				sb.WriteString(",")
			}
		}

		if st.After != nil {
			sb.WriteString(" after:" + st.After.Delay.String() + "->" + st.After.Target)
		}

		if st.Invoke != nil {
			sb.WriteString(" invoke:" + st.Invoke.ID + "/" + st.Invoke.Src)

			if st.Invoke.OnDone != nil {
				sb.WriteString(" done->" + st.Invoke.OnDone.Target)
			}

			if st.Invoke.OnError != nil {
				sb.WriteString(" error->" + st.Invoke.OnError.Target)
			}
		}
	}

	return strconv.FormatUint(xxh3.HashString(sb.String()), 16)
}

// sortedKeys is used where natural order is not wanted.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
