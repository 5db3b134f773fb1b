package statemachine

import (
	"github.com/alitto/pond/v2"
	"github.com/amp-labs/statechart/future"
)

type actorOptions struct {
	id          string
	clock       Clock
	pool        future.Executor
	logger      Logger
	strict      bool
	onUnhandled func(error)
}

// Option configures an Actor.
type Option func(*actorOptions)

// WithID overrides the generated actor id.
func WithID(id string) Option {
	return func(o *actorOptions) {
		o.id = id
	}
}

// WithClock sets the clock used for delayed transitions.
func WithClock(clock Clock) Option {
	return func(o *actorOptions) {
		o.clock = clock
	}
}

// WithPool runs invocations on the given pool instead of the shared one.
func WithPool(pool pond.Pool) Option {
	return func(o *actorOptions) {
		o.pool = pool
	}
}

// WithLogger sets the logging hooks.
func WithLogger(l Logger) Option {
	return func(o *actorOptions) {
		o.logger = l
	}
}

// WithStrictLifecycle makes Send before Start or after Stop, and Stop before
// Start, return ErrNotRunning instead of being ignored.
func WithStrictLifecycle() Option {
	return func(o *actorOptions) {
		o.strict = true
	}
}

// WithUnhandledHandler is called with an *UnhandledEventError for every event
// that matches no rule or whose guards all reject it. Without a handler such
// events are dropped silently.
func WithUnhandledHandler(fn func(error)) Option {
	return func(o *actorOptions) {
		o.onUnhandled = fn
	}
}
