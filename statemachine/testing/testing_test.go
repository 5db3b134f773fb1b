package testing

import (
	"testing"
	"time"

	"github.com/amp-labs/statechart/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_FiresInDeadlineOrder(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	start := clock.Now()

	var fired []string

	clock.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "b") })

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(time.Second), clock.Now())

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, start.Add(6*time.Second), clock.Now())
	assert.Zero(t, clock.Pending())
}

func TestManualClock_Stop(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	fired := false

	timer := clock.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clock.Advance(time.Hour)
	assert.False(t, fired)
}

func TestManualClock_TimersArmedByCallbacks(t *testing.T) {
	t.Parallel()

	clock := NewManualClock()
	count := 0

	var tick func()
	tick = func() {
		count++
		clock.AfterFunc(time.Second, tick)
	}

	clock.AfterFunc(time.Second, tick)
	clock.Advance(3 * time.Second)

	assert.Equal(t, 3, count)
	assert.Equal(t, 1, clock.Pending())
}

type counter struct {
	N int
}

func pingPong(t *testing.T) *statemachine.Machine[counter] {
	t.Helper()

	incr := func(c counter, _ statemachine.Event) (counter, error) {
		c.N++

		return c, nil
	}

	machine, err := statemachine.NewBuilder[counter]("ping-pong").
		WithInitialState("ping").
		WithContext(statemachine.ContextFrom(func(c counter) (counter, error) { return c, nil })).
		AddState(statemachine.State[counter]{Name: "ping"}).
		AddState(statemachine.State[counter]{Name: "pong", Entry: incr}).
		On("ping", "hit", statemachine.Transition[counter]{Target: "pong"}).
		After("pong", time.Second, "ping", nil).
		Build()
	require.NoError(t, err)

	return machine
}

func TestTestActor(t *testing.T) {
	t.Parallel()

	actor := NewTestActor(t, pingPong(t))
	actor.RequireStart(counter{})
	actor.AssertState("ping")

	actor.SendEvent("hit")
	actor.AssertState("pong")
	actor.AssertContext(counter{N: 1})

	actor.Advance(time.Second)
	actor.AssertState("ping")
	actor.AssertSnapshotCount(3)

	actor.AssertMatches(All(
		StateWasVisited[counter]("pong"),
		TransitionWasTaken[counter]("pong", "ping"),
		InState[counter]("ping"),
		ContextMatches("has one hit", func(c counter) bool { return c.N == 1 }),
	))
	actor.AssertMatches(Any(InState[counter]("pong"), InState[counter]("ping")))

	require.NoError(t, actor.Stop())
	actor.AssertStatus(statemachine.StatusStopped)
}

func TestRunScenario(t *testing.T) {
	t.Parallel()

	RunScenario(t, Scenario[counter]{
		Name:           "hit and wait",
		Machine:        pingPong(t),
		Input:          counter{N: 5},
		InitialState:   "ping",
		InitialContext: &counter{N: 5},
		Steps: []Step[counter]{
			{Send: "hit", ExpectState: "pong", ExpectContext: &counter{N: 6}},
			{Send: "hit", ExpectState: "pong", ExpectUnchanged: true},
			{Advance: time.Second, ExpectState: "ping"},
		},
	})
}

func TestControlledOperation(t *testing.T) {
	t.Parallel()

	op := NewControlledOperation()
	done := make(chan any, 1)

	go func() {
		out, _ := op.Operation()(t.Context(), 7)
		done <- out
	}()

	call := op.Next(t)
	assert.Equal(t, 7, call.Input)
	call.Succeed("ok")

	assert.Equal(t, "ok", <-done)
}
