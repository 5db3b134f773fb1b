package toggle

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/amp-labs/statechart/logger"
	"github.com/amp-labs/statechart/statemachine"
)

const (
	DefaultResetDelay       = time.Second
	DefaultResetFailureRate = 0.5
)

var ErrResetFailed = errors.New("reset failed")

// ResetInput is what the Resetting state passes to the reset operation.
type ResetInput struct {
	MaxCount int `json:"maxCount"`
}

// ResetOutput is the result of a successful reset.
type ResetOutput struct {
	Count int `json:"count"`
}

// Resetter simulates a slow, unreliable backend: after Delay it fails with
// probability FailureRate, otherwise it resets the count to half of maxCount.
type Resetter struct {
	Delay       time.Duration
	FailureRate float64

	// Rand returns a number in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

func NewResetter() *Resetter {
	return &Resetter{
		Delay:       DefaultResetDelay,
		FailureRate: DefaultResetFailureRate,
	}
}

// Reset runs one reset. It returns ctx.Err() if cancelled while waiting.
func (r *Resetter) Reset(ctx context.Context, in ResetInput) (ResetOutput, error) {
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ResetOutput{}, ctx.Err()
		case <-timer.C:
		}
	}

	roll := rand.Float64
	if r.Rand != nil {
		roll = r.Rand
	}

	if roll() < r.FailureRate {
		logger.Get(ctx).Debug("reset failed", "maxCount", in.MaxCount)

		return ResetOutput{}, ErrResetFailed
	}

	return ResetOutput{Count: in.MaxCount / 2}, nil
}

// Operation adapts Reset for use in a machine definition.
func (r *Resetter) Operation() statemachine.Operation {
	return statemachine.OperationFrom(r.Reset)
}
