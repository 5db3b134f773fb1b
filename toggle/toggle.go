// Package toggle is a counter that toggles between Inactive and Active, falls
// back to Inactive on its own after a timeout, and can be reset by an
// asynchronous operation that may fail.
package toggle

import (
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/statechart/statemachine"
)

const (
	MachineID = "toggle"

	StateInactive  = "Inactive"
	StateActive    = "Active"
	StateResetting = "Resetting"

	EventToggle = "toggle"
	EventReset  = "reset"

	// ResetOperation is the registry name of the reset operation.
	ResetOperation = "resetCount"
	// InvocationID names the running reset in logs, spans and metrics.
	InvocationID = "counterResetter"

	DefaultActiveTimeout = 2000 * time.Millisecond
)

var (
	ErrMaxCountRequired = errors.New("maxCount is required")
	ErrNegativeMaxCount = errors.New("maxCount must not be negative")
	ErrNegativeCount    = errors.New("count must not be negative")
)

// Context is the data carried by a toggle actor.
type Context struct {
	Count    int `json:"count"    yaml:"count"`
	MaxCount int `json:"maxCount" yaml:"maxCount"`
}

// Input starts a toggle actor. InitialCount defaults to 0.
type Input struct {
	InitialCount *int `json:"initialCount,omitempty" yaml:"initialCount,omitempty"`
	MaxCount     int  `json:"maxCount"               yaml:"maxCount"`
}

// NewContext validates the input and builds the initial context.
func NewContext(in Input) (Context, error) {
	if in.MaxCount < 0 {
		return Context{}, fmt.Errorf("%w: %d", ErrNegativeMaxCount, in.MaxCount)
	}

	count := 0
	if in.InitialCount != nil {
		count = *in.InitialCount
	}

	if count < 0 {
		return Context{}, fmt.Errorf("%w: %d", ErrNegativeCount, count)
	}

	return Context{Count: count, MaxCount: in.MaxCount}, nil
}

// contextFromInput is the machine's context function. maxCount has no
// default, so a missing input is rejected.
func contextFromInput(input any) (Context, error) {
	switch v := input.(type) {
	case Input:
		return NewContext(v)
	case *Input:
		if v == nil {
			return Context{}, ErrMaxCountRequired
		}

		return NewContext(*v)
	case nil:
		return Context{}, ErrMaxCountRequired
	default:
		return Context{}, fmt.Errorf("%w: expected toggle.Input, got %T", statemachine.ErrInvalidInput, input)
	}
}

func belowMax(ctx Context, _ statemachine.Event) (bool, error) {
	return ctx.Count < ctx.MaxCount, nil
}

func increment(ctx Context, _ statemachine.Event) (Context, error) {
	ctx.Count++

	return ctx, nil
}

// applyReset copies the count returned by a successful reset.
func applyReset(ctx Context, event statemachine.Event) (Context, error) {
	switch out := event.Output.(type) {
	case ResetOutput:
		ctx.Count = out.Count
	case *ResetOutput:
		if out == nil {
			return ctx, fmt.Errorf("%w: nil reset output", statemachine.ErrInvalidInput)
		}

		ctx.Count = out.Count
	default:
		return ctx, fmt.Errorf("%w: unexpected reset output %T", statemachine.ErrInvalidInput, event.Output)
	}

	if ctx.Count < 0 {
		return ctx, fmt.Errorf("%w: %d", ErrNegativeCount, ctx.Count)
	}

	return ctx, nil
}

func resetInput(ctx Context) any {
	return ResetInput{MaxCount: ctx.MaxCount}
}
