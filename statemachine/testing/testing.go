// Package testing provides testing utilities for actors: a manual clock, a
// recording observer, controllable operations and assertion helpers.
//
//nolint:varnamelen // short names idiomatic
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/amp-labs/statechart/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// WaitTimeout bounds the helpers that wait for asynchronous completions.
var WaitTimeout = 2 * time.Second

// TestActor wraps an Actor with a manual clock, a recorder subscribed before
// start, and assertion helpers. The actor is stopped when the test ends.
type TestActor[C any] struct {
	*statemachine.Actor[C]

	t        *testing.T
	Clock    *ManualClock
	Recorder *Recorder[C]
}

// NewTestActor creates a test actor. Options are applied after the manual
// clock, so a test can still override it.
func NewTestActor[C any](
	t *testing.T,
	machine *statemachine.Machine[C],
	opts ...statemachine.Option,
) *TestActor[C] {
	t.Helper()

	clock := NewManualClock()
	actor := statemachine.NewActor(machine, append([]statemachine.Option{statemachine.WithClock(clock)}, opts...)...)

	recorder := NewRecorder[C]()
	actor.Subscribe(recorder.Observer())

	t.Cleanup(func() {
		_ = actor.Stop()
	})

	return &TestActor[C]{
		Actor:    actor,
		t:        t,
		Clock:    clock,
		Recorder: recorder,
	}
}

// RequireStart starts the actor and fails the test on error.
func (ta *TestActor[C]) RequireStart(input any) {
	ta.t.Helper()

	require.NoError(ta.t, ta.Start(context.Background(), input), "failed to start actor")
}

// SendEvent sends an event without payload and fails the test on error.
func (ta *TestActor[C]) SendEvent(eventType string) {
	ta.t.Helper()

	require.NoError(ta.t, ta.Send(statemachine.NewEvent(eventType)))
}

// Advance moves the manual clock.
func (ta *TestActor[C]) Advance(d time.Duration) {
	ta.Clock.Advance(d)
}

// Current returns the latest snapshot, failing the test if there is none.
func (ta *TestActor[C]) Current() statemachine.Snapshot[C] {
	ta.t.Helper()

	snap, ok := ta.Snapshot()
	require.True(ta.t, ok, "actor has not published a snapshot")

	return snap
}

// AssertState checks the state of the latest snapshot.
func (ta *TestActor[C]) AssertState(expected string) {
	ta.t.Helper()

	assert.Equal(ta.t, expected, ta.Current().State, "unexpected state")
}

// AssertContext checks the context of the latest snapshot.
func (ta *TestActor[C]) AssertContext(expected C) {
	ta.t.Helper()

	assert.Equal(ta.t, expected, ta.Current().Context, "unexpected context")
}

// AssertStatus checks the lifecycle status.
func (ta *TestActor[C]) AssertStatus(expected statemachine.Status) {
	ta.t.Helper()

	assert.Equal(ta.t, expected, ta.Status(), "unexpected status")
}

// AssertSnapshotCount checks how many snapshots the recorder received.
func (ta *TestActor[C]) AssertSnapshotCount(expected int) {
	ta.t.Helper()

	assert.Equal(ta.t, expected, ta.Recorder.Len(), "unexpected number of snapshots; states: %v",
		ta.Recorder.States())
}

// AssertMatches checks a matcher against the actor.
func (ta *TestActor[C]) AssertMatches(m Matcher[C]) {
	ta.t.Helper()

	ok, err := m.Match(ta)
	require.NoError(ta.t, err, m.Description())
	assert.True(ta.t, ok, m.Description())
}

// WaitForState waits until the latest snapshot is in the given state, for
// transitions driven by invocation results.
func (ta *TestActor[C]) WaitForState(expected string) {
	ta.t.Helper()

	require.Eventually(ta.t, func() bool {
		snap, ok := ta.Snapshot()

		return ok && snap.State == expected
	}, WaitTimeout, time.Millisecond, "actor did not reach state %s; states: %v", expected, ta.Recorder.States())
}

// WaitForSnapshots waits until the recorder holds at least n snapshots.
func (ta *TestActor[C]) WaitForSnapshots(n int) {
	ta.t.Helper()

	require.Eventually(ta.t, func() bool {
		return ta.Recorder.Len() >= n
	}, WaitTimeout, time.Millisecond, "expected %d snapshots; states: %v", n, ta.Recorder.States())
}

// WaitForErrors waits until the recorder holds at least n errors.
func (ta *TestActor[C]) WaitForErrors(n int) {
	ta.t.Helper()

	require.Eventually(ta.t, func() bool {
		return len(ta.Recorder.Errors()) >= n
	}, WaitTimeout, time.Millisecond, "expected %d errors", n)
}
