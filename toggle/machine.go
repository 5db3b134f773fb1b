package toggle

import (
	"embed"
	"fmt"
	"time"

	"github.com/amp-labs/statechart/statemachine"
)

//go:embed definitions/*.yaml
var definitions embed.FS

type options struct {
	activeTimeout time.Duration
	reset         statemachine.Operation
}

// Option configures a toggle machine.
type Option func(*options)

// WithActiveTimeout sets how long Active lasts without a toggle. Only the
// programmatic definition honours it; YAML files carry their own delay.
func WithActiveTimeout(d time.Duration) Option {
	return func(o *options) {
		o.activeTimeout = d
	}
}

// WithResetOperation replaces the default Resetter.
func WithResetOperation(op statemachine.Operation) Option {
	return func(o *options) {
		o.reset = op
	}
}

func buildOptions(opts []Option) options {
	o := options{activeTimeout: DefaultActiveTimeout}

	for _, opt := range opts {
		opt(&o)
	}

	if o.reset == nil {
		o.reset = NewResetter().Operation()
	}

	return o
}

// NewMachine builds the toggle machine in code.
func NewMachine(opts ...Option) (*statemachine.Machine[Context], error) {
	o := buildOptions(opts)

	return statemachine.NewBuilder[Context](MachineID).
		WithInitialState(StateInactive).
		WithContext(contextFromInput).
		AddState(statemachine.State[Context]{Name: StateInactive}).
		On(StateInactive, EventToggle, statemachine.Transition[Context]{Target: StateActive, Guard: belowMax}).
		On(StateInactive, EventReset, statemachine.Transition[Context]{Target: StateResetting}).
		AddState(statemachine.State[Context]{Name: StateActive}).
		Entry(StateActive, increment).
		On(StateActive, EventToggle, statemachine.Transition[Context]{Target: StateInactive}).
		After(StateActive, o.activeTimeout, StateInactive, nil).
		AddState(statemachine.State[Context]{Name: StateResetting}).
		Invoke(StateResetting, statemachine.Invoke[Context]{
			ID:        InvocationID,
			Src:       ResetOperation,
			Operation: o.reset,
			Input:     resetInput,
			OnDone:    &statemachine.Transition[Context]{Target: StateInactive, Action: applyReset},
			OnError:   &statemachine.Transition[Context]{Target: StateInactive},
		}).
		Build()
}

// NewRegistry returns a registry with every name used by the toggle YAML
// definition.
func NewRegistry(reset statemachine.Operation) *statemachine.Registry[Context] {
	return statemachine.NewRegistry[Context]().
		WithContext(contextFromInput).
		RegisterGuard("belowMax", belowMax).
		RegisterAction("increment", increment).
		RegisterAction("applyReset", applyReset).
		RegisterInput("maxCount", resetInput).
		RegisterOperation(ResetOperation, reset)
}

// Loader serves the embedded definitions by name.
func Loader() statemachine.FSLoader {
	return statemachine.FSLoader{FS: definitions, Dir: "definitions"}
}

// RegisterDefinitions makes the embedded definitions the default config
// loader, so LoadMachine("toggle") works.
func RegisterDefinitions() {
	statemachine.SetConfigLoader(Loader())
}

// LoadMachine builds the toggle machine from a YAML definition, given either
// a file path or the name of a definition known to the config loader.
func LoadMachine(pathOrName string, opts ...Option) (*statemachine.Machine[Context], error) {
	cfg, err := statemachine.LoadConfig(pathOrName)
	if err != nil {
		return nil, err
	}

	return FromConfig(cfg, opts...)
}

// FromConfig resolves cfg against the toggle registry.
func FromConfig(cfg *statemachine.Config, opts ...Option) (*statemachine.Machine[Context], error) {
	o := buildOptions(opts)

	machine, err := statemachine.BuildMachine(cfg, NewRegistry(o.reset))
	if err != nil {
		return nil, fmt.Errorf("toggle definition %q: %w", cfg.ID, err)
	}

	return machine, nil
}
