package future

import (
	"go.uber.org/atomic"
)

// Promise is the write side of a Future. Exactly one of Success, Failure or
// Complete takes effect; later calls are ignored. All methods are safe for
// concurrent use.
type Promise[T any] struct {
	future      *Future[T]
	canceled    *atomic.Bool
	cancelFuncs []func()
}

// IsCancelled returns true once the associated future has been cancelled.
// Long-running producers can poll it to stop early.
func (p *Promise[T]) IsCancelled() bool {
	return p.canceled.Load()
}

// cancel marks the promise cancelled and runs the registered cancel functions once.
func (p *Promise[T]) cancel() bool {
	if !p.canceled.CompareAndSwap(false, true) {
		return false
	}

	for _, cancel := range p.cancelFuncs {
		cancel()
	}

	return true
}

// fulfill stores the result, wakes every waiter and schedules the callbacks.
// Only the first call has any effect.
func (p *Promise[T]) fulfill(result Result[T]) {
	p.future.once.Do(func() {
		p.future.mu.Lock()

		p.future.result = result
		close(p.future.resultReady)

		resultCallbacks := p.future.resultCallbacks
		p.future.resultCallbacks = nil

		p.future.mu.Unlock()

		for _, callback := range resultCallbacks {
			invokeCallback("OnResult", callback, result)
		}
	})
}

// Success fulfills the promise with a value.
func (p *Promise[T]) Success(value T) {
	p.fulfill(Result[T]{Value: value})
}

// Failure fulfills the promise with an error. The stored value is the zero value of T.
func (p *Promise[T]) Failure(err error) {
	var zero T

	p.fulfill(Result[T]{Value: zero, Error: err})
}

// Complete fulfills the promise from a (value, error) pair.
func (p *Promise[T]) Complete(value T, err error) {
	if err != nil {
		p.Failure(err)
	} else {
		p.Success(value)
	}
}
