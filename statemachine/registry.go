package statemachine

import (
	"fmt"

	"github.com/amp-labs/statechart/errors"
)

// Registry resolves the names used in a Config to code. Applications register
// their guards, actions, input projections and operations once and build any
// number of machines from configuration.
type Registry[C any] struct {
	context    ContextFunc[C]
	guards     map[string]Guard[C]
	actions    map[string]Action[C]
	inputs     map[string]func(C) any
	operations map[string]Operation
}

// NewRegistry creates an empty registry.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{
		guards:     make(map[string]Guard[C]),
		actions:    make(map[string]Action[C]),
		inputs:     make(map[string]func(C) any),
		operations: make(map[string]Operation),
	}
}

// WithContext sets the context function of machines built from the registry.
func (r *Registry[C]) WithContext(fn ContextFunc[C]) *Registry[C] {
	r.context = fn

	return r
}

// RegisterGuard registers a named guard.
func (r *Registry[C]) RegisterGuard(name string, guard Guard[C]) *Registry[C] {
	r.guards[name] = guard

	return r
}

// RegisterAction registers a named action.
func (r *Registry[C]) RegisterAction(name string, action Action[C]) *Registry[C] {
	r.actions[name] = action

	return r
}

// RegisterInput registers a named input projection.
func (r *Registry[C]) RegisterInput(name string, input func(C) any) *Registry[C] {
	r.inputs[name] = input

	return r
}

// RegisterOperation registers a named operation.
func (r *Registry[C]) RegisterOperation(name string, op Operation) *Registry[C] {
	r.operations[name] = op

	return r
}

// resolver looks names up and records every miss.
type resolver[C any] struct {
	reg  *Registry[C]
	errs *errors.Collection
}

func (r resolver[C]) guard(name, where string) Guard[C] {
	if name == "" {
		return nil
	}

	g, ok := r.reg.guards[name]
	if !ok {
		r.errs.Addf(ErrUnknownGuard, "%s: %s", where, name)
	}

	return g
}

func (r resolver[C]) action(name, where string) Action[C] {
	if name == "" {
		return nil
	}

	a, ok := r.reg.actions[name]
	if !ok {
		r.errs.Addf(ErrUnknownAction, "%s: %s", where, name)
	}

	return a
}

func (r resolver[C]) transition(tc TransitionConfig, where string) Transition[C] {
	return Transition[C]{
		Target: tc.Target,
		Guard:  r.guard(tc.Guard, where),
		Action: r.action(tc.Action, where),
	}
}

func (r resolver[C]) invoke(ic *InvokeConfig, where string) Invoke[C] {
	inv := Invoke[C]{ID: ic.ID, Src: ic.Src}

	op, ok := r.reg.operations[ic.Src]
	if !ok {
		r.errs.Addf(ErrUnknownOperation, "%s: %s", where, ic.Src)
	}

	inv.Operation = op

	if ic.Input != "" {
		input, ok := r.reg.inputs[ic.Input]
		if !ok {
			r.errs.Addf(ErrUnknownInput, "%s: %s", where, ic.Input)
		}

		inv.Input = input
	}

	if ic.OnDone != nil {
		done := r.transition(*ic.OnDone, where+" onDone")
		inv.OnDone = &done
	}

	if ic.OnError != nil {
		onErr := r.transition(*ic.OnError, where+" onError")
		inv.OnError = &onErr
	}

	return inv
}

// BuildMachine resolves a configuration against the registry and builds the
// machine. Unknown names and definition problems are reported together.
func BuildMachine[C any](cfg *Config, reg *Registry[C]) (*Machine[C], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var errs errors.Collection

	res := resolver[C]{reg: reg, errs: &errs}

	builder := NewBuilder[C](cfg.ID).
		WithInitialState(cfg.InitialState).
		WithContext(reg.context)

	for _, sc := range cfg.States {
		where := "state " + sc.Name

		st := State[C]{
			Name:  sc.Name,
			Entry: res.action(sc.Entry, where+" entry"),
			Exit:  res.action(sc.Exit, where+" exit"),
			On:    make(map[string][]Transition[C], len(sc.On)),
		}

		for _, ev := range sortedKeys(sc.On) {
			for i, tc := range sc.On[ev] {
				st.On[ev] = append(st.On[ev], res.transition(tc, fmt.Sprintf("%s on %s rule %d", where, ev, i)))
			}
		}

		if sc.After != nil {
			delay, _ := parseDelay(sc.After.Delay) // checked by Validate

			st.After = &After[C]{
				Delay:  delay,
				Target: sc.After.Target,
				Action: res.action(sc.After.Action, where+" after"),
			}
		}

		if sc.Invoke != nil {
			inv := res.invoke(sc.Invoke, where+" invoke")
			st.Invoke = &inv
		}

		builder.AddState(st)
	}

	if errs.HasError() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errs.GetError())
	}

	return builder.Build()
}
