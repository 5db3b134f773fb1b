package statemachine

import (
	"runtime/debug"

	"github.com/amp-labs/statechart/errors"
)

// evalGuard runs a guard, turning a panic into an error. A nil guard passes.
func evalGuard[C any](guard Guard[C], ctx C, event Event) (ok bool, err error) {
	if guard == nil {
		return true, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ok, err = false, errors.FromPanic(r, debug.Stack())
		}
	}()

	return guard(ctx, event)
}

// evalAction runs an action, turning a panic into an error. A nil action
// returns the context unchanged.
func evalAction[C any](action Action[C], ctx C, event Event) (next C, err error) {
	if action == nil {
		return ctx, nil
	}

	defer func() {
		if r := recover(); r != nil {
			next, err = ctx, errors.FromPanic(r, debug.Stack())
		}
	}()

	return action(cloneContext(ctx), event)
}

// evalInput projects the context into an operation input.
func evalInput[C any](project func(C) any, ctx C) (input any, err error) {
	if project == nil {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			input, err = nil, errors.FromPanic(r, debug.Stack())
		}
	}()

	return project(cloneContext(ctx)), nil
}
