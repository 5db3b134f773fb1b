package statemachine

import (
	"context"
	"errors"
	"time"

	"github.com/amp-labs/statechart/bgworker"
	"github.com/amp-labs/statechart/future"
)

const outcomeCancelled = "cancelled"

// invocation is the handle of the operation started by the current state.
type invocation struct {
	name   string
	future *future.Future[any]
}

// cancel cancels the operation's context. A result that still arrives is
// discarded by the generation check.
func (i *invocation) cancel() {
	i.future.Cancel()
}

func invocationName[C any](state string, inv *Invoke[C]) string {
	switch {
	case inv.ID != "":
		return inv.ID
	case inv.Src != "":
		return inv.Src
	default:
		return state
	}
}

func (a *Actor[C]) executor() future.Executor { //nolint:ireturn
	if a.pool != nil {
		return a.pool
	}

	return bgworker.Pool()
}

// invoke starts the state's operation with the projected input. Exactly one
// completion message, tagged with gen, is queued when it finishes, unless it
// was cancelled first.
func (a *Actor[C]) invoke(ctx context.Context, gen uint64, state string, inv *Invoke[C], event Event) error {
	name := invocationName(state, inv)

	input, err := evalInput(inv.Input, a.current)
	if err != nil {
		return &ActionEvaluationError{State: state, Event: event.Type, Kind: ActionInput, Err: err}
	}

	opCtx, span := startInvocationSpan(ctx, a.id, state, name)
	started := time.Now()
	operation := inv.Operation

	fut := future.Run(opCtx, a.executor(), func(ctx context.Context) (any, error) {
		return operation(ctx, input)
	})

	fut.OnResult(func(res future.Result[any]) {
		elapsed := time.Since(started)

		outcome := outcomeLabel(res.Error)
		if errors.Is(res.Error, future.ErrCancelled) {
			outcome = outcomeCancelled
		}

		invocationsTotal.WithLabelValues(a.machine.id, state, name, outcome).Inc()
		invocationDuration.WithLabelValues(a.machine.id, name, outcome).Observe(elapsed.Seconds())
		a.log.InvocationCompleted(opCtx, state, name, elapsed, res.Error)
		endSpan(span, res.Error)

		if outcome == outcomeCancelled {
			return
		}

		completion := Event{Type: EventDone, Output: res.Value}
		if res.Error != nil {
			completion = Event{Type: EventError, Err: res.Error}
		}

		a.enqueue(message{kind: messageCompletion, event: completion, generation: gen})
	})

	a.mu.Lock()
	if a.status != StatusRunning {
		a.mu.Unlock()
		fut.Cancel()

		return nil
	}

	a.invocation = &invocation{name: name, future: fut}
	a.mu.Unlock()

	return nil
}
