package toggle_test

import (
	"context"
	"testing"
	"time"

	"github.com/amp-labs/statechart/statemachine"
	"github.com/amp-labs/statechart/toggle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRoll(v float64) func() float64 {
	return func() float64 { return v }
}

func TestResetter(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		r := toggle.NewResetter()
		assert.Equal(t, time.Second, r.Delay)
		assert.InEpsilon(t, 0.5, r.FailureRate, 1e-9)
	})

	t.Run("success halves max", func(t *testing.T) {
		t.Parallel()

		r := &toggle.Resetter{FailureRate: 0.5, Rand: fixedRoll(0.5)}

		out, err := r.Reset(t.Context(), toggle.ResetInput{MaxCount: 5})
		require.NoError(t, err)
		assert.Equal(t, toggle.ResetOutput{Count: 2}, out)
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		r := &toggle.Resetter{FailureRate: 0.5, Rand: fixedRoll(0.49)}

		_, err := r.Reset(t.Context(), toggle.ResetInput{MaxCount: 4})
		require.ErrorIs(t, err, toggle.ErrResetFailed)
	})

	t.Run("waits for delay", func(t *testing.T) {
		t.Parallel()

		r := &toggle.Resetter{Delay: 20 * time.Millisecond, Rand: fixedRoll(0)}

		started := time.Now()
		_, err := r.Reset(t.Context(), toggle.ResetInput{MaxCount: 4})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		r := &toggle.Resetter{Delay: time.Hour}

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := r.Reset(ctx, toggle.ResetInput{MaxCount: 4})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("operation rejects foreign input", func(t *testing.T) {
		t.Parallel()

		op := toggle.NewResetter().Operation()

		_, err := op(t.Context(), "four")
		require.ErrorIs(t, err, statemachine.ErrInvalidInput)
	})
}
