package statemachine

import (
	"errors"
	"fmt"
)

// Runtime errors.
var (
	ErrAlreadyStarted   = errors.New("actor already started")
	ErrNotRunning       = errors.New("actor is not running")
	ErrUnhandledEvent   = errors.New("event not handled")
	ErrGuardFailed      = errors.New("guard evaluation failed")
	ErrActionFailed     = errors.New("action execution failed")
	ErrInvocationFailed = errors.New("invocation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// Definition errors, reported together by Builder.Build and BuildMachine.
var (
	// ErrInvalidDefinition wraps every problem found while building a machine.
	ErrInvalidDefinition = errors.New("invalid machine definition")
	// ErrMachineIDRequired indicates that the machine has no id.
	ErrMachineIDRequired = errors.New("machine id is required")
	// ErrInitialStateRequired indicates that an initial state is required.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrInitialStateNotFound indicates that the initial state does not exist.
	ErrInitialStateNotFound = errors.New("initial state does not exist")
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrStateNotFound indicates a reference to a state that was never added.
	ErrStateNotFound = errors.New("state not found")
	// ErrTargetRequired indicates a transition without a target.
	ErrTargetRequired = errors.New("transition target is required")
	// ErrTargetNotFound indicates a transition to a state that does not exist.
	ErrTargetNotFound = errors.New("transition target does not exist")
	// ErrEventTypeRequired indicates a rule registered for an empty event type.
	ErrEventTypeRequired = errors.New("event type is required")
	// ErrReservedEventType indicates a rule registered for an engine event type.
	ErrReservedEventType = errors.New("event type is reserved")
	// ErrNegativeDelay indicates a delayed transition with a negative delay.
	ErrNegativeDelay = errors.New("delay must not be negative")
	// ErrOperationRequired indicates an invocation without an operation.
	ErrOperationRequired = errors.New("invocation operation is required")
	// ErrContextRequired indicates that the machine has no context function.
	ErrContextRequired = errors.New("context function is required")
)

// Configuration errors.
var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownGuard      = errors.New("unknown guard")
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrUnknownInput      = errors.New("unknown input projection")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrNoConfigLoader    = errors.New("no config loader registered; use SetConfigLoader() or provide a file path")
)

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From: from,
		To:   to,
		Err:  err,
	}
}

// GuardEvaluationError reports a guard that returned an error or panicked.
// It matches both ErrGuardFailed and the underlying cause.
type GuardEvaluationError struct {
	State string
	Event string
	Err   error
}

func (e *GuardEvaluationError) Error() string {
	return fmt.Sprintf("guard for %q in state %s: %v", e.Event, e.State, e.Err)
}

func (e *GuardEvaluationError) Unwrap() []error {
	return []error{ErrGuardFailed, e.Err}
}

// ActionKind says which hook an action ran as.
type ActionKind string

const (
	ActionEntry      ActionKind = "entry"
	ActionExit       ActionKind = "exit"
	ActionTransition ActionKind = "transition"
	ActionInput      ActionKind = "input"
)

// ActionEvaluationError reports an action that returned an error or panicked.
type ActionEvaluationError struct {
	State string
	Event string
	Kind  ActionKind
	Err   error
}

func (e *ActionEvaluationError) Error() string {
	return fmt.Sprintf("%s action for %q in state %s: %v", e.Kind, e.Event, e.State, e.Err)
}

func (e *ActionEvaluationError) Unwrap() []error {
	return []error{ErrActionFailed, e.Err}
}

// InvocationError reports an operation failure that no OnError rule handled.
type InvocationError struct {
	State      string
	Invocation string
	Err        error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation %s in state %s: %v", e.Invocation, e.State, e.Err)
}

func (e *InvocationError) Unwrap() []error {
	return []error{ErrInvocationFailed, e.Err}
}

// UnhandledEventError describes an event that matched no rule in the current
// state. It is passed to the handler set with WithUnhandledHandler; it is
// never returned from Send.
type UnhandledEventError struct {
	State string
	Event string
	// GuardRejected is true when rules existed but every guard returned false.
	GuardRejected bool
}

func (e *UnhandledEventError) Error() string {
	if e.GuardRejected {
		return fmt.Sprintf("event %q rejected by guards in state %s", e.Event, e.State)
	}

	return fmt.Sprintf("event %q not handled in state %s", e.Event, e.State)
}

func (e *UnhandledEventError) Unwrap() error {
	return ErrUnhandledEvent
}
