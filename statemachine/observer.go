package statemachine

import (
	"context"
	"runtime/debug"

	"github.com/amp-labs/statechart/errors"
	"github.com/amp-labs/statechart/logger"
)

// Observer receives snapshots and terminal errors from an actor. Either
// callback may be nil. Callbacks run on the goroutine driving the actor and
// may call Send; the event is processed after the current one settles.
type Observer[C any] struct {
	Next  func(Snapshot[C])
	Error func(error)
}

type subscription[C any] struct {
	id       uint64
	observer Observer[C]
	// errored is set once Error has been delivered. Guarded by Actor.mu.
	errored bool
}

func (s *subscription[C]) next(ctx context.Context, snap Snapshot[C]) {
	if s.observer.Next == nil {
		return
	}

	defer recoverObserver(ctx, "Next")

	s.observer.Next(snap)
}

func (s *subscription[C]) error(ctx context.Context, err error) {
	if s.observer.Error == nil {
		return
	}

	defer recoverObserver(ctx, "Error")

	s.observer.Error(err)
}

func recoverObserver(ctx context.Context, kind string) {
	if r := recover(); r != nil {
		logger.Get(ctx).Error("panic encountered in observer."+kind,
			"error", errors.FromPanic(r, debug.Stack()))
	}
}

// Subscribe registers an observer for every snapshot published from now on,
// in subscription order. The returned function detaches it and is safe to
// call more than once. An observer receives at most one error; it stays
// attached for snapshots while the actor keeps running.
func (a *Actor[C]) Subscribe(observer Observer[C]) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextSubID++
	sub := &subscription[C]{id: a.nextSubID, observer: observer}

	if a.status != StatusStopped {
		a.subscribers = append(a.subscribers, sub)
	}

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.removeSubscriberLocked(sub.id)
	}
}

func (a *Actor[C]) removeSubscriberLocked(id uint64) {
	for i, s := range a.subscribers {
		if s.id == id {
			a.subscribers = append(a.subscribers[:i:i], a.subscribers[i+1:]...)

			return
		}
	}
}

// publish stores the snapshot and hands it to the current subscribers. A
// stopped actor publishes nothing.
func (a *Actor[C]) publish(snap Snapshot[C]) {
	a.mu.Lock()
	if a.status != StatusRunning {
		a.mu.Unlock()

		return
	}

	a.snapshot.Store(&snap)
	subs := append([]*subscription[C](nil), a.subscribers...)
	a.mu.Unlock()

	for _, s := range subs {
		s.next(a.ctx, snap)
	}
}

// notifyError delivers err to the given subscribers.
func (a *Actor[C]) notifyError(subs []*subscription[C], err error) {
	for _, s := range subs {
		s.error(a.ctx, err)
	}
}

// errorTargets returns the subscribers that have not received an error yet
// and marks them as having received one.
func (a *Actor[C]) errorTargets() []*subscription[C] {
	a.mu.Lock()
	defer a.mu.Unlock()

	return errorTargetsLocked(a.subscribers)
}

func errorTargetsLocked[C any](subs []*subscription[C]) []*subscription[C] {
	var out []*subscription[C]

	for _, s := range subs {
		if !s.errored {
			s.errored = true
			out = append(out, s)
		}
	}

	return out
}
