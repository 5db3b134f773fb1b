package statemachine

import (
	"fmt"
	"strings"
	"time"

	"github.com/amp-labs/statechart/errors"
	"github.com/amp-labs/statechart/logger"
)

// Builder provides a fluent API for constructing machines. Problems are
// collected as they are found and reported together by Build.
type Builder[C any] struct {
	id      string
	initial string
	context ContextFunc[C]
	states  map[string]*State[C]
	order   []string
	errs    errors.Collection
}

// NewBuilder creates a new machine builder.
func NewBuilder[C any](id string) *Builder[C] {
	return &Builder[C]{
		id:     id,
		states: make(map[string]*State[C]),
	}
}

// WithInitialState sets the initial state.
func (b *Builder[C]) WithInitialState(state string) *Builder[C] {
	b.initial = state

	return b
}

// WithContext sets the function computing an actor's initial context.
func (b *Builder[C]) WithContext(fn ContextFunc[C]) *Builder[C] {
	b.context = fn

	return b
}

// AddState adds a state. The definition is copied; later builder calls on the
// same name extend the copy.
func (b *Builder[C]) AddState(state State[C]) *Builder[C] {
	if state.Name == "" {
		b.errs.Add(ErrStateNameRequired)

		return b
	}

	if _, exists := b.states[state.Name]; exists {
		b.errs.Addf(ErrDuplicateStateName, "state %s", state.Name)

		return b
	}

	st := state.clone()

	b.states[st.Name] = &st
	b.order = append(b.order, st.Name)

	return b
}

func (b *Builder[C]) state(name string) *State[C] {
	st, ok := b.states[name]
	if !ok {
		b.errs.Addf(ErrStateNotFound, "state %s", name)
	}

	return st
}

// Entry sets the entry action of a state.
func (b *Builder[C]) Entry(state string, action Action[C]) *Builder[C] {
	if st := b.state(state); st != nil {
		st.Entry = action
	}

	return b
}

// Exit sets the exit action of a state.
func (b *Builder[C]) Exit(state string, action Action[C]) *Builder[C] {
	if st := b.state(state); st != nil {
		st.Exit = action
	}

	return b
}

// On appends rules for an event. Rules are tried in the order they were added.
func (b *Builder[C]) On(state, event string, rules ...Transition[C]) *Builder[C] {
	if st := b.state(state); st != nil {
		st.On[event] = append(st.On[event], rules...)
	}

	return b
}

// After sets the delayed transition of a state.
func (b *Builder[C]) After(state string, delay time.Duration, target string, action Action[C]) *Builder[C] {
	if st := b.state(state); st != nil {
		st.After = &After[C]{Delay: delay, Target: target, Action: action}
	}

	return b
}

// Invoke sets the invocation of a state.
func (b *Builder[C]) Invoke(state string, invoke Invoke[C]) *Builder[C] {
	if st := b.state(state); st != nil {
		st.Invoke = &invoke
	}

	return b
}

// Build validates the definition and returns the immutable machine.
func (b *Builder[C]) Build() (*Machine[C], error) {
	errs := b.errs

	if b.id == "" {
		errs.Add(ErrMachineIDRequired)
	}

	if b.context == nil {
		errs.Add(ErrContextRequired)
	}

	switch {
	case len(b.states) == 0:
		errs.Add(ErrStateRequired)
	case b.initial == "":
		errs.Add(ErrInitialStateRequired)
	case b.states[b.initial] == nil:
		errs.Addf(ErrInitialStateNotFound, "%s", b.initial)
	}

	for _, name := range b.order {
		b.validateState(&errs, b.states[name])
	}

	if errs.HasError() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, errs.GetError())
	}

	m := &Machine[C]{
		id:      b.id,
		initial: b.initial,
		states:  make(map[string]*State[C], len(b.states)),
		context: b.context,
	}

	for name, st := range b.states {
		cp := *st
		m.states[name] = &cp
	}

	m.fingerprint = m.computeFingerprint()

	if unreachable := m.Unreachable(); len(unreachable) > 0 {
		logger.Get().Warn("Machine has unreachable states",
			"machine", m.id, "states", unreachable)
	}

	return m, nil
}

func (b *Builder[C]) validateState(errs *errors.Collection, st *State[C]) {
	checkTarget := func(target, where string) {
		switch {
		case target == "":
			errs.Addf(ErrTargetRequired, "state %s, %s", st.Name, where)
		case b.states[target] == nil:
			errs.Addf(ErrTargetNotFound, "state %s, %s: %s", st.Name, where, target)
		}
	}

	for _, ev := range sortedKeys(st.On) {
		switch {
		case ev == "":
			errs.Addf(ErrEventTypeRequired, "state %s", st.Name)
		case strings.HasPrefix(ev, "@"):
			errs.Addf(ErrReservedEventType, "state %s: %s", st.Name, ev)
		}

		for i, rule := range st.On[ev] {
			checkTarget(rule.Target, fmt.Sprintf("event %s rule %d", ev, i))
		}
	}

	if st.After != nil {
		if st.After.Delay < 0 {
			errs.Addf(ErrNegativeDelay, "state %s: %s", st.Name, st.After.Delay)
		}

		checkTarget(st.After.Target, "after")
	}

	if inv := st.Invoke; inv != nil {
		if inv.Operation == nil {
			errs.Addf(ErrOperationRequired, "state %s", st.Name)
		}

		if inv.OnDone != nil {
			checkTarget(inv.OnDone.Target, "onDone")
		}

		if inv.OnError != nil {
			checkTarget(inv.OnError.Target, "onError")
		}
	}
}
