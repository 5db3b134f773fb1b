package testing

import (
	"context"
	"testing"
	"time"

	"github.com/amp-labs/statechart/statemachine"
)

const callBuffer = 64

// ControlledOperation is an operation whose outcome the test decides. Each
// invocation blocks until the test calls Succeed or Fail on the matching Call,
// or until the invocation is cancelled.
type ControlledOperation struct {
	calls chan *Call
}

// Call is one invocation of a ControlledOperation.
type Call struct {
	Input  any
	ctx    context.Context //nolint:containedctx
	result chan callResult
}

type callResult struct {
	output any
	err    error
}

// NewControlledOperation creates a controlled operation.
func NewControlledOperation() *ControlledOperation {
	return &ControlledOperation{calls: make(chan *Call, callBuffer)}
}

// Operation returns the statemachine.Operation to bind to a state.
func (o *ControlledOperation) Operation() statemachine.Operation {
	return func(ctx context.Context, input any) (any, error) {
		call := &Call{Input: input, ctx: ctx, result: make(chan callResult, 1)}
		o.calls <- call

		select {
		case r := <-call.result:
			return r.output, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Next waits for the next invocation.
func (o *ControlledOperation) Next(t *testing.T) *Call {
	t.Helper()

	select {
	case call := <-o.calls:
		return call
	case <-time.After(WaitTimeout):
		t.Fatal("operation was not invoked")

		return nil
	}
}

// Calls returns the number of invocations not yet taken with Next.
func (o *ControlledOperation) Calls() int {
	return len(o.calls)
}

// Succeed completes the call with output.
func (c *Call) Succeed(output any) {
	c.result <- callResult{output: output}
}

// Fail completes the call with err.
func (c *Call) Fail(err error) {
	c.result <- callResult{err: err}
}

// Cancelled is closed when the engine cancels the call.
func (c *Call) Cancelled() <-chan struct{} {
	return c.ctx.Done()
}
