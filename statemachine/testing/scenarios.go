package testing

import (
	"testing"
	"time"

	"github.com/amp-labs/statechart/statemachine"
	"github.com/stretchr/testify/assert"
)

// Step is one action of a scenario followed by its expectations. Exactly one
// of Send and Advance is normally set.
type Step[C any] struct {
	Send    string
	Advance time.Duration

	// ExpectState and ExpectContext are checked against the latest snapshot.
	ExpectState   string
	ExpectContext *C
	// ExpectUnchanged asserts the step published no snapshot.
	ExpectUnchanged bool
}

// Scenario drives an actor through a fixed sequence of steps.
type Scenario[C any] struct {
	Name    string
	Machine *statemachine.Machine[C]
	Options []statemachine.Option
	Input   any

	// InitialState and InitialContext are checked after start.
	InitialState   string
	InitialContext *C
	Steps          []Step[C]
}

// RunScenario runs the scenario as a subtest.
func RunScenario[C any](t *testing.T, scenario Scenario[C]) {
	t.Helper()

	t.Run(scenario.Name, func(t *testing.T) {
		actor := NewTestActor(t, scenario.Machine, scenario.Options...)
		actor.RequireStart(scenario.Input)

		if scenario.InitialState != "" {
			actor.AssertState(scenario.InitialState)
		}

		if scenario.InitialContext != nil {
			actor.AssertContext(*scenario.InitialContext)
		}

		for i, step := range scenario.Steps {
			before := actor.Recorder.Len()

			if step.Send != "" {
				actor.SendEvent(step.Send)
			}

			if step.Advance > 0 {
				actor.Advance(step.Advance)
			}

			if step.ExpectUnchanged {
				assert.Equal(t, before, actor.Recorder.Len(), "step %d published a snapshot", i)
			}

			if step.ExpectState != "" {
				assert.Equal(t, step.ExpectState, actor.Current().State, "step %d", i)
			}

			if step.ExpectContext != nil {
				assert.Equal(t, *step.ExpectContext, actor.Current().Context, "step %d", i)
			}
		}
	})
}
