package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/statechart/logger"
)

// Logger provides logging hooks for actor execution. Every call receives the
// actor's context, which carries the actor id and machine id as log values.
type Logger interface {
	ActorStarted(ctx context.Context, state string)
	ActorStopped(ctx context.Context, state string, err error)
	StateEntered(ctx context.Context, state string, event Event)
	TransitionExecuted(ctx context.Context, from, to string, event Event)
	EventDropped(ctx context.Context, state string, event Event, reason string)
	StaleCompletion(ctx context.Context, state string, kind string)
	InvocationCompleted(ctx context.Context, state, invocation string, duration time.Duration, err error)
}

// DefaultLogger implements Logger using slog. With a nil Logger it writes
// through logger.Get, so subsystem and context values are included.
type DefaultLogger struct {
	Logger *slog.Logger
}

// NewDefaultLogger creates a new default logger.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

func (l *DefaultLogger) get(ctx context.Context) *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}

	return logger.Get(ctx)
}

func (l *DefaultLogger) ActorStarted(ctx context.Context, state string) {
	l.get(ctx).InfoContext(ctx, "Actor started", "state", state)
}

func (l *DefaultLogger) ActorStopped(ctx context.Context, state string, err error) {
	if err != nil {
		l.get(ctx).ErrorContext(ctx, "Actor stopped with error", "state", state, "error", err)

		return
	}

	l.get(ctx).InfoContext(ctx, "Actor stopped", "state", state)
}

func (l *DefaultLogger) StateEntered(ctx context.Context, state string, event Event) {
	l.get(ctx).DebugContext(ctx, "State entered", "state", state, "event", event.Type)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, from, to string, event Event) {
	l.get(ctx).InfoContext(ctx, "Transition executed", "from", from, "to", to, "event", event.Type)
}

func (l *DefaultLogger) EventDropped(ctx context.Context, state string, event Event, reason string) {
	l.get(ctx).DebugContext(ctx, "Event dropped", "state", state, "event", event.Type, "reason", reason)
}

func (l *DefaultLogger) StaleCompletion(ctx context.Context, state string, kind string) {
	l.get(ctx).DebugContext(ctx, "Discarding stale completion", "state", state, "kind", kind)
}

func (l *DefaultLogger) InvocationCompleted(
	ctx context.Context,
	state, invocation string,
	duration time.Duration,
	err error,
) {
	fields := []any{
		"state", state,
		"invocation", invocation,
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		l.get(ctx).WarnContext(ctx, "Invocation failed", append(fields, "error", err)...)
	} else {
		l.get(ctx).InfoContext(ctx, "Invocation completed", fields...)
	}
}
