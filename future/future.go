// Package future provides a Future/Promise pair for values computed
// asynchronously. A Future is the read side: callers wait on it or register
// callbacks. A Promise is the write side: the producer completes it exactly once.
package future

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	amperrors "github.com/amp-labs/statechart/errors"
	"go.uber.org/atomic"
)

var (
	// ErrCancelled is the error a future resolves with when Cancel wins the race
	// against its producer.
	ErrCancelled = errors.New("future cancelled")
	// ErrRejected is returned through the future when the executor refuses the task.
	ErrRejected = errors.New("executor rejected task")
)

// Executor runs tasks, typically on a bounded worker pool. pond.Pool satisfies it.
type Executor interface {
	Go(task func()) error
}

// Future is the read side of an asynchronous computation.
type Future[T any] struct {
	once        sync.Once
	mu          sync.Mutex
	resultReady chan struct{}
	result      Result[T]
	promise     *Promise[T]

	resultCallbacks []func(Result[T])
}

// New creates an unresolved future and the promise that completes it.
func New[T any](cancelFuncs ...func()) (*Future[T], *Promise[T]) {
	fut := &Future[T]{
		resultReady: make(chan struct{}),
	}

	promise := &Promise[T]{
		future:      fut,
		canceled:    atomic.NewBool(false),
		cancelFuncs: cancelFuncs,
	}

	fut.promise = promise

	return fut, promise
}

// Run hands fn to exec (or a fresh goroutine when exec is nil). The context
// passed to fn is derived from ctx and cancelled by Future.Cancel. A panic in
// fn resolves the future with an error wrapping errors.ErrPanicRecovery.
func Run[T any](ctx context.Context, exec Executor, fn func(ctx context.Context) (T, error)) *Future[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancel(ctx)

	fut, promise := New[T](cancel)

	task := func() {
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				promise.Failure(amperrors.FromPanic(r, debug.Stack()))
			}
		}()

		promise.Complete(fn(runCtx))
	}

	if exec == nil {
		go task()

		return fut
	}

	if err := exec.Go(task); err != nil {
		cancel()
		promise.Failure(fmt.Errorf("%w: %w", ErrRejected, err))
	}

	return fut
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.resultReady
}

// Await blocks until the future is resolved.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.resultReady

	return f.result.Get()
}

// Cancel cancels the producer's context and, if the future is still pending,
// resolves it with ErrCancelled. It reports whether this call performed the
// cancellation.
func (f *Future[T]) Cancel() bool {
	if !f.promise.cancel() {
		return false
	}

	f.promise.Failure(ErrCancelled)

	return true
}

// IsCancelled reports whether Cancel has been called.
func (f *Future[T]) IsCancelled() bool {
	return f.promise.IsCancelled()
}

// OnResult registers a callback for the result, whichever way it goes.
// Callbacks run on their own goroutine; registering after resolution
// schedules the callback immediately.
func (f *Future[T]) OnResult(callback func(Result[T])) {
	f.mu.Lock()

	select {
	case <-f.resultReady:
		f.mu.Unlock()
		invokeCallback("OnResult", callback, f.result)
	default:
		f.resultCallbacks = append(f.resultCallbacks, callback)
		f.mu.Unlock()
	}
}
