package statemachine

import (
	"context"
	"fmt"
	"time"
)

// Events generated by the engine itself. User event types must not start with '@'.
const (
	EventInit  = "@init"
	EventAfter = "@after"
	EventDone  = "@done"
	EventError = "@error"
)

// Event is an immutable message delivered to an actor. Output is set on
// EventDone and Err on EventError.
type Event struct {
	Type    string
	Payload any
	Output  any
	Err     error
}

// NewEvent creates an event of the given type.
func NewEvent(eventType string, payload ...any) Event {
	ev := Event{Type: eventType}
	if len(payload) > 0 {
		ev.Payload = payload[0]
	}

	return ev
}

// Guard decides whether a transition rule applies to the current context.
type Guard[C any] func(ctx C, event Event) (bool, error)

// Action derives a new context from the current one. It must not mutate its
// argument in place.
type Action[C any] func(ctx C, event Event) (C, error)

// Transition is a single rule: if Guard passes (or is nil) the actor runs
// Action (or keeps the context) and moves to Target.
type Transition[C any] struct {
	Target string
	Guard  Guard[C]
	Action Action[C]
}

// After is a delayed transition armed when its state is entered.
type After[C any] struct {
	Delay  time.Duration
	Target string
	Action Action[C]
}

// Operation is an asynchronous unit of work bound to a state. It should return
// promptly once ctx is cancelled, but the engine discards late results either way.
type Operation func(ctx context.Context, input any) (any, error)

// OperationFrom adapts a typed function to an Operation. A nil input is passed
// as the zero value of I; any other mismatched type fails with ErrInvalidInput.
func OperationFrom[I, O any](fn func(ctx context.Context, input I) (O, error)) Operation {
	return func(ctx context.Context, input any) (any, error) {
		var typed I

		if input != nil {
			var ok bool

			typed, ok = input.(I)
			if !ok {
				return nil, fmt.Errorf("%w: expected %T, got %T", ErrInvalidInput, typed, input)
			}
		}

		return fn(ctx, typed)
	}
}

// Invoke binds an operation to a state. Input projects the context entered
// with into the operation's input. OnDone and OnError route the outcome; a
// failure with no OnError is reported to observers and the actor stays put.
type Invoke[C any] struct {
	ID        string
	Src       string
	Operation Operation
	Input     func(ctx C) any
	OnDone    *Transition[C]
	OnError   *Transition[C]
}

// State describes a node of the machine.
type State[C any] struct {
	Name   string
	Entry  Action[C]
	Exit   Action[C]
	On     map[string][]Transition[C]
	After  *After[C]
	Invoke *Invoke[C]
}

// Snapshot is what observers see after the actor settles into a state.
type Snapshot[C any] struct {
	State   string
	Context C
	// Event is the event that caused the state to be entered.
	Event Event
}

// Cloner is implemented by contexts holding reference types. Snapshots carry
// a clone so observers cannot reach the live context.
type Cloner[C any] interface {
	Clone() C
}

func cloneContext[C any](c C) C {
	if cl, ok := any(c).(Cloner[C]); ok {
		return cl.Clone()
	}

	return c
}

// Status is the lifecycle of an actor.
type Status int32

const (
	StatusNotStarted Status = iota
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not_started"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}
