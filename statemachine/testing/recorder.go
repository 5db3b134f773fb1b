package testing

import (
	"sync"

	"github.com/amp-labs/statechart/statemachine"
)

// Recorder is an observer that keeps everything it receives. It is safe for
// concurrent use since invocation results arrive on pool goroutines.
type Recorder[C any] struct {
	mu        sync.Mutex
	snapshots []statemachine.Snapshot[C]
	errs      []error
}

// NewRecorder creates an empty recorder.
func NewRecorder[C any]() *Recorder[C] {
	return &Recorder[C]{}
}

// Observer returns the observer to pass to Actor.Subscribe.
func (r *Recorder[C]) Observer() statemachine.Observer[C] {
	return statemachine.Observer[C]{
		Next: func(snap statemachine.Snapshot[C]) {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.snapshots = append(r.snapshots, snap)
		},
		Error: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.errs = append(r.errs, err)
		},
	}
}

// Snapshots returns a copy of the recorded snapshots.
func (r *Recorder[C]) Snapshots() []statemachine.Snapshot[C] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]statemachine.Snapshot[C](nil), r.snapshots...)
}

// States returns the state of every recorded snapshot, in order.
func (r *Recorder[C]) States() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]string, len(r.snapshots))
	for i, s := range r.snapshots {
		states[i] = s.State
	}

	return states
}

// Last returns the most recent snapshot.
func (r *Recorder[C]) Last() (statemachine.Snapshot[C], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.snapshots) == 0 {
		return statemachine.Snapshot[C]{}, false
	}

	return r.snapshots[len(r.snapshots)-1], true
}

// Len returns the number of recorded snapshots.
func (r *Recorder[C]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snapshots)
}

// Errors returns a copy of the recorded errors.
func (r *Recorder[C]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]error(nil), r.errs...)
}
