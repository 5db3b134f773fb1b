package toggle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/amp-labs/statechart/statemachine"
	smtest "github.com/amp-labs/statechart/statemachine/testing"
	"github.com/amp-labs/statechart/toggle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

func intPtr(n int) *int { return &n }

// machines returns the programmatic and the YAML definition so every
// behavioural test covers both.
func machines(t *testing.T, opts ...toggle.Option) map[string]*statemachine.Machine[toggle.Context] {
	t.Helper()

	programmatic, err := toggle.NewMachine(opts...)
	require.NoError(t, err)

	cfg, err := statemachine.LoadConfigFromFS(toggle.Loader().FS, "definitions/toggle.yaml")
	require.NoError(t, err)

	declarative, err := toggle.FromConfig(cfg, opts...)
	require.NoError(t, err)

	return map[string]*statemachine.Machine[toggle.Context]{
		"programmatic": programmatic,
		"yaml":         declarative,
	}
}

func TestDefinitionsAgree(t *testing.T) {
	t.Parallel()

	defs := machines(t)

	assert.Equal(t, defs["programmatic"].Fingerprint(), defs["yaml"].Fingerprint())
	assert.Equal(t, []string{toggle.StateActive, toggle.StateInactive, toggle.StateResetting},
		defs["yaml"].StateNames())
	assert.Empty(t, defs["yaml"].Unreachable())
}

func TestToggle_Guard(t *testing.T) {
	t.Parallel()

	const maxCount = 3

	for name, machine := range machines(t) {
		for count := 0; count <= maxCount+1; count++ {
			actor := smtest.NewTestActor(t, machine)
			actor.RequireStart(toggle.Input{InitialCount: intPtr(count), MaxCount: maxCount})
			actor.AssertContext(toggle.Context{Count: count, MaxCount: maxCount})

			actor.SendEvent(toggle.EventToggle)

			if count < maxCount {
				assert.Equal(t, toggle.StateActive, actor.Current().State, "%s count=%d", name, count)
				assert.Equal(t, count+1, actor.Current().Context.Count, "%s count=%d", name, count)
				actor.AssertSnapshotCount(2)
			} else {
				assert.Equal(t, toggle.StateInactive, actor.Current().State, "%s count=%d", name, count)
				assert.Equal(t, count, actor.Current().Context.Count, "%s count=%d", name, count)
				actor.AssertSnapshotCount(1)
			}
		}
	}
}

func TestActive_TimesOut(t *testing.T) {
	t.Parallel()

	for name, machine := range machines(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			actor := smtest.NewTestActor(t, machine)
			actor.RequireStart(toggle.Input{MaxCount: 2})
			actor.SendEvent(toggle.EventToggle)
			actor.AssertState(toggle.StateActive)

			actor.Advance(toggle.DefaultActiveTimeout - time.Millisecond)
			actor.AssertState(toggle.StateActive)

			actor.Advance(time.Millisecond)
			actor.AssertState(toggle.StateInactive)
			actor.AssertContext(toggle.Context{Count: 1, MaxCount: 2})
			assert.Equal(t, statemachine.EventAfter, actor.Current().Event.Type)
			assert.Equal(t, 0, actor.Clock.Pending())
		})
	}
}

func TestActive_ToggleCancelsTimer(t *testing.T) {
	t.Parallel()

	for name, machine := range machines(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			actor := smtest.NewTestActor(t, machine)
			actor.RequireStart(toggle.Input{MaxCount: 2})
			actor.SendEvent(toggle.EventToggle)
			actor.Advance(time.Second)
			actor.SendEvent(toggle.EventToggle)
			actor.AssertState(toggle.StateInactive)
			assert.Equal(t, 0, actor.Clock.Pending())

			actor.Advance(10 * time.Second)
			actor.AssertSnapshotCount(3)
			actor.AssertState(toggle.StateInactive)
		})
	}
}

func TestActive_ReenteredTimerRestarts(t *testing.T) {
	t.Parallel()

	machine, err := toggle.NewMachine()
	require.NoError(t, err)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(toggle.Input{MaxCount: 5})

	actor.SendEvent(toggle.EventToggle)
	actor.Advance(1500 * time.Millisecond)
	actor.SendEvent(toggle.EventToggle)
	actor.SendEvent(toggle.EventToggle)

	// The first timer would have fired here.
	actor.Advance(600 * time.Millisecond)
	actor.AssertState(toggle.StateActive)

	actor.Advance(1400 * time.Millisecond)
	actor.AssertState(toggle.StateInactive)
	actor.AssertContext(toggle.Context{Count: 2, MaxCount: 5})
}

func TestWithActiveTimeout(t *testing.T) {
	t.Parallel()

	machine, err := toggle.NewMachine(toggle.WithActiveTimeout(50 * time.Millisecond))
	require.NoError(t, err)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(toggle.Input{MaxCount: 1})
	actor.SendEvent(toggle.EventToggle)
	actor.Advance(50 * time.Millisecond)
	actor.AssertState(toggle.StateInactive)
}

func TestReset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		complete func(call *smtest.Call)
		expected int
	}{
		{
			name:     "success overwrites count",
			complete: func(call *smtest.Call) { call.Succeed(toggle.ResetOutput{Count: 2}) },
			expected: 2,
		},
		{
			name:     "failure keeps count",
			complete: func(call *smtest.Call) { call.Fail(errBackend) },
			expected: 3,
		},
	}

	for _, tt := range tests {
		op := smtest.NewControlledOperation()

		for name, machine := range machines(t, toggle.WithResetOperation(op.Operation())) {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				actor := smtest.NewTestActor(t, machine)
				actor.RequireStart(toggle.Input{InitialCount: intPtr(3), MaxCount: 4})

				actor.SendEvent(toggle.EventReset)
				actor.AssertState(toggle.StateResetting)
				actor.AssertContext(toggle.Context{Count: 3, MaxCount: 4})

				call := op.Next(t)
				assert.Equal(t, toggle.ResetInput{MaxCount: 4}, call.Input)

				// Nothing is handled while resetting.
				actor.SendEvent(toggle.EventToggle)
				actor.AssertState(toggle.StateResetting)
				actor.AssertContext(toggle.Context{Count: 3, MaxCount: 4})

				tt.complete(call)

				actor.WaitForState(toggle.StateInactive)
				actor.AssertContext(toggle.Context{Count: tt.expected, MaxCount: 4})
				assert.Empty(t, actor.Recorder.Errors())
				actor.AssertStatus(statemachine.StatusRunning)
			})
		}
	}
}

func TestReset_StopCancelsOperation(t *testing.T) {
	t.Parallel()

	op := smtest.NewControlledOperation()

	machine, err := toggle.NewMachine(toggle.WithResetOperation(op.Operation()))
	require.NoError(t, err)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(toggle.Input{InitialCount: intPtr(1), MaxCount: 4})
	actor.SendEvent(toggle.EventReset)

	call := op.Next(t)

	require.NoError(t, actor.Stop())

	select {
	case <-call.Cancelled():
	case <-time.After(smtest.WaitTimeout):
		t.Fatal("reset was not cancelled")
	}

	actor.AssertSnapshotCount(2)
	actor.AssertState(toggle.StateResetting)
	actor.AssertContext(toggle.Context{Count: 1, MaxCount: 4})
}

func TestStop(t *testing.T) {
	t.Parallel()

	machine, err := toggle.NewMachine()
	require.NoError(t, err)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(toggle.Input{MaxCount: 4})
	actor.SendEvent(toggle.EventToggle)

	require.NoError(t, actor.Stop())
	require.NoError(t, actor.Stop())
	actor.AssertStatus(statemachine.StatusStopped)

	require.NoError(t, actor.Send(statemachine.NewEvent(toggle.EventToggle)))
	actor.Advance(time.Minute)

	actor.AssertSnapshotCount(2)
	actor.AssertState(toggle.StateActive)
	assert.Equal(t, 0, actor.Clock.Pending())
}

func TestStart_Input(t *testing.T) {
	t.Parallel()

	machine, err := toggle.NewMachine()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    any
		expected toggle.Context
		err      error
	}{
		{name: "defaults count", input: toggle.Input{MaxCount: 4}, expected: toggle.Context{MaxCount: 4}},
		{name: "pointer", input: &toggle.Input{InitialCount: intPtr(2), MaxCount: 4}, expected: toggle.Context{Count: 2, MaxCount: 4}},
		{name: "zero max", input: toggle.Input{}, expected: toggle.Context{}},
		{name: "missing", input: nil, err: toggle.ErrMaxCountRequired},
		{name: "nil pointer", input: (*toggle.Input)(nil), err: toggle.ErrMaxCountRequired},
		{name: "negative max", input: toggle.Input{MaxCount: -1}, err: toggle.ErrNegativeMaxCount},
		{name: "negative count", input: toggle.Input{InitialCount: intPtr(-1), MaxCount: 1}, err: toggle.ErrNegativeCount},
		{name: "wrong type", input: 4, err: statemachine.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			actor := statemachine.NewActor(machine)

			err := actor.Start(t.Context(), tt.input)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Equal(t, statemachine.StatusNotStarted, actor.Status())

				return
			}

			require.NoError(t, err)

			defer func() { _ = actor.Stop() }()

			snap, ok := actor.Snapshot()
			require.True(t, ok)
			assert.Equal(t, toggle.StateInactive, snap.State)
			assert.Equal(t, tt.expected, snap.Context)
		})
	}
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := func(count int) *toggle.Context {
		return &toggle.Context{Count: count, MaxCount: 4}
	}

	steps := []smtest.Step[toggle.Context]{
		{Send: toggle.EventToggle, ExpectState: toggle.StateActive, ExpectContext: ctx(1)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateInactive, ExpectContext: ctx(1)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateActive, ExpectContext: ctx(2)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateInactive, ExpectContext: ctx(2)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateActive, ExpectContext: ctx(3)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateInactive, ExpectContext: ctx(3)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateActive, ExpectContext: ctx(4)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateInactive, ExpectContext: ctx(4)},
		{Send: toggle.EventToggle, ExpectState: toggle.StateInactive, ExpectContext: ctx(4), ExpectUnchanged: true},
	}

	for name, machine := range machines(t) {
		smtest.RunScenario(t, smtest.Scenario[toggle.Context]{
			Name:           name,
			Machine:        machine,
			Input:          toggle.Input{InitialCount: intPtr(0), MaxCount: 4},
			InitialState:   toggle.StateInactive,
			InitialContext: ctx(0),
			Steps:          steps,
		})
	}
}

func TestEndToEnd_WithResetter(t *testing.T) {
	t.Parallel()

	resetter := &toggle.Resetter{FailureRate: 0.5, Rand: func() float64 { return 0.75 }}

	machine, err := toggle.NewMachine(toggle.WithResetOperation(resetter.Operation()))
	require.NoError(t, err)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(toggle.Input{InitialCount: intPtr(4), MaxCount: 4})

	actor.SendEvent(toggle.EventToggle)
	actor.AssertSnapshotCount(1)

	actor.SendEvent(toggle.EventReset)
	actor.WaitForSnapshots(3)
	actor.AssertState(toggle.StateInactive)
	actor.AssertContext(toggle.Context{Count: 2, MaxCount: 4})

	actor.SendEvent(toggle.EventToggle)
	actor.AssertState(toggle.StateActive)
	actor.AssertContext(toggle.Context{Count: 3, MaxCount: 4})
	actor.AssertMatches(smtest.All(
		smtest.TransitionWasTaken[toggle.Context](toggle.StateResetting, toggle.StateInactive),
		smtest.StateWasVisited[toggle.Context](toggle.StateActive),
	))
}
