package statemachine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	amperrors "github.com/amp-labs/statechart/errors"
	"github.com/amp-labs/statechart/future"
	"github.com/amp-labs/statechart/logger"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// errStopped aborts a message whose actor stopped while it was handled.
var errStopped = errors.New("actor stopped during processing")

type messageKind int

const (
	messageInit messageKind = iota
	messageEvent
	messageTimer
	messageCompletion
)

// message is one entry of the actor queue. Timer fires and invocation results
// carry the generation they were armed in.
type message struct {
	kind       messageKind
	event      Event
	generation uint64
}

// Actor runs one instance of a Machine. All messages (sent events, timer
// fires, invocation results) go through a single queue and are processed one
// at a time by whichever goroutine finds the actor idle. Guards, actions and
// observers therefore never run concurrently for the same actor, and an event
// sent from inside one of them is processed after the current message
// settles.
type Actor[C any] struct {
	machine     *Machine[C]
	id          string
	clock       Clock
	pool        future.Executor
	log         Logger
	strict      bool
	onUnhandled func(error)

	// ctx carries log values; set once by Start.
	ctx context.Context //nolint:containedctx

	mu          sync.Mutex
	status      Status
	starting    bool
	processing  bool
	queue       []message
	timer       Timer
	invocation  *invocation
	subscribers []*subscription[C]
	nextSubID   uint64
	stopAfter   func() bool
	failure     error
	done        chan struct{}

	// Owned by the goroutine draining the queue.
	state   string
	current C

	generation *atomic.Uint64
	snapshot   atomic.Pointer[Snapshot[C]]
}

// NewActor creates an actor for the machine. It does nothing until Start.
func NewActor[C any](machine *Machine[C], opts ...Option) *Actor[C] {
	options := actorOptions{
		clock:  RealClock{},
		logger: NewDefaultLogger(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.id == "" {
		options.id = uuid.NewString()
	}

	return &Actor[C]{
		machine:     machine,
		id:          options.id,
		clock:       options.clock,
		pool:        options.pool,
		log:         options.logger,
		strict:      options.strict,
		onUnhandled: options.onUnhandled,
		ctx:         context.Background(),
		done:        make(chan struct{}),
		generation:  atomic.NewUint64(0),
	}
}

// ID returns the actor id.
func (a *Actor[C]) ID() string { return a.id }

// Machine returns the machine the actor runs.
func (a *Actor[C]) Machine() *Machine[C] { return a.machine }

// Status returns the lifecycle status.
func (a *Actor[C]) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.status
}

// Done is closed once the actor stops.
func (a *Actor[C]) Done() <-chan struct{} {
	return a.done
}

// Err returns the guard or action error that stopped the actor, if any.
func (a *Actor[C]) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.failure
}

// Snapshot returns the most recently published snapshot. It is safe to call
// from any goroutine. The boolean is false until the first snapshot exists.
func (a *Actor[C]) Snapshot() (Snapshot[C], bool) {
	snap := a.snapshot.Load()
	if snap == nil {
		return Snapshot[C]{}, false
	}

	return *snap, true
}

// lastState is the state of the latest snapshot, for labels and logs outside
// the draining goroutine.
func (a *Actor[C]) lastState() string {
	if snap := a.snapshot.Load(); snap != nil {
		return snap.State
	}

	return a.machine.initial
}

// Start computes the initial context from input, enters the initial state and
// publishes the first snapshot before returning. Cancelling ctx stops the
// actor; its values (logger values, trace span) flow into logs and spans.
// A second call returns ErrAlreadyStarted.
func (a *Actor[C]) Start(ctx context.Context, input any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.mu.Lock()
	if a.status != StatusNotStarted || a.starting {
		a.mu.Unlock()

		return ErrAlreadyStarted
	}

	a.starting = true
	a.mu.Unlock()

	initial, err := a.machine.NewContext(input)
	if err != nil {
		a.mu.Lock()
		a.starting = false
		a.mu.Unlock()

		return fmt.Errorf("machine %s: initial context: %w", a.machine.id, err)
	}

	base := logger.With(context.WithoutCancel(ctx), "actor_id", a.id, "machine", a.machine.id)

	a.mu.Lock()
	a.starting = false

	if a.status != StatusNotStarted {
		// Stopped while the context was being computed.
		a.mu.Unlock()

		return ErrNotRunning
	}

	a.ctx = base
	a.status = StatusRunning
	a.processing = true
	a.state = a.machine.initial
	a.current = initial
	a.mu.Unlock()

	actorsRunning.WithLabelValues(a.machine.id).Inc()
	a.log.ActorStarted(base, a.machine.initial)

	stopAfter := context.AfterFunc(ctx, func() {
		_ = a.Stop()
	})

	a.mu.Lock()
	if a.status == StatusRunning {
		a.stopAfter = stopAfter
	} else {
		stopAfter()
	}
	a.mu.Unlock()

	a.handle(message{kind: messageInit, event: Event{Type: EventInit, Payload: input}})
	a.drain()

	return a.Err()
}

// Send queues an event. Outside the running state the event is ignored, or
// ErrNotRunning is returned with WithStrictLifecycle. Events that match no
// rule are dropped without a snapshot.
func (a *Actor[C]) Send(event Event) error {
	if a.enqueue(message{kind: messageEvent, event: event}) {
		return nil
	}

	eventsDroppedTotal.WithLabelValues(a.machine.id, a.lastState(), event.Type, dropNotRunning).Inc()

	if a.strict {
		return fmt.Errorf("%w: event %q", ErrNotRunning, event.Type)
	}

	return nil
}

// Stop cancels the pending timer and invocation and stops the actor. No
// snapshot is published. Stopping twice is a no-op. Stopping an actor that was
// never started is ignored, or ErrNotRunning with WithStrictLifecycle.
func (a *Actor[C]) Stop() error {
	a.mu.Lock()
	notStarted := a.status == StatusNotStarted && !a.starting
	a.mu.Unlock()

	if notStarted {
		if a.strict {
			return ErrNotRunning
		}

		return nil
	}

	a.shutdown(nil)

	return nil
}

// enqueue appends msg and drains the queue if nobody else is. It reports
// whether the actor accepted the message.
func (a *Actor[C]) enqueue(msg message) bool {
	a.mu.Lock()

	if a.status != StatusRunning {
		a.mu.Unlock()

		return false
	}

	a.queue = append(a.queue, msg)

	if a.processing {
		a.mu.Unlock()

		return true
	}

	a.processing = true
	a.mu.Unlock()

	a.drain()

	return true
}

func (a *Actor[C]) drain() {
	for {
		a.mu.Lock()

		if a.status != StatusRunning || len(a.queue) == 0 {
			a.processing = false
			a.mu.Unlock()

			return
		}

		msg := a.queue[0]
		a.queue[0] = message{}
		a.queue = a.queue[1:]
		a.mu.Unlock()

		a.handle(msg)
	}
}

// handle processes one message. Only the draining goroutine calls it.
func (a *Actor[C]) handle(msg message) {
	ctx, span := startMessageSpan(a.ctx, a.machine.id, a.machine.fingerprint, a.id, a.state, msg.event)

	var err error

	switch msg.kind {
	case messageInit:
		err = a.enter(ctx, a.state, msg.event)
	case messageEvent:
		err = a.handleEvent(ctx, msg.event)
	case messageTimer:
		err = a.handleTimer(ctx, msg)
	case messageCompletion:
		err = a.handleCompletion(ctx, msg)
	}

	if errors.Is(err, errStopped) {
		// Stop won the race with a user callback; the step is abandoned.
		endSpan(span, nil)

		return
	}

	endSpan(span, err)

	if err != nil {
		a.fail(ctx, err)
	}
}

// commit applies a step's effect on state and context, unless the actor was
// stopped while a guard or action ran.
func (a *Actor[C]) commit(apply func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status != StatusRunning {
		return false
	}

	apply()

	return true
}

func (a *Actor[C]) handleEvent(ctx context.Context, event Event) error {
	rules := a.machine.states[a.state].On[event.Type]

	for _, rule := range rules {
		ok, err := evalGuard(rule.Guard, a.current, event)
		if err != nil {
			return &GuardEvaluationError{State: a.state, Event: event.Type, Err: err}
		}

		if ok {
			return a.transition(ctx, rule.Target, rule.Action, event)
		}
	}

	a.drop(ctx, event, len(rules) > 0)

	return nil
}

func (a *Actor[C]) handleTimer(ctx context.Context, msg message) error {
	after := a.machine.states[a.state].After
	if msg.generation != a.generation.Load() || after == nil {
		a.stale(ctx, kindTimer)

		return nil
	}

	a.mu.Lock()
	a.timer = nil
	a.mu.Unlock()

	return a.transition(ctx, after.Target, after.Action, msg.event)
}

func (a *Actor[C]) handleCompletion(ctx context.Context, msg message) error {
	inv := a.machine.states[a.state].Invoke
	if msg.generation != a.generation.Load() || inv == nil {
		a.stale(ctx, kindInvocation)

		return nil
	}

	a.mu.Lock()
	a.invocation = nil
	a.mu.Unlock()

	event := msg.event

	route := inv.OnDone
	if event.Type == EventError {
		route = inv.OnError
	}

	if route == nil {
		if event.Type == EventError {
			a.notifyError(a.errorTargets(), &InvocationError{
				State:      a.state,
				Invocation: invocationName(a.state, inv),
				Err:        event.Err,
			})
		}

		return nil
	}

	ok, err := evalGuard(route.Guard, a.current, event)
	if err != nil {
		return &GuardEvaluationError{State: a.state, Event: event.Type, Err: err}
	}

	if !ok {
		a.drop(ctx, event, true)

		return nil
	}

	return a.transition(ctx, route.Target, route.Action, event)
}

// transition leaves the current state and enters target. Pending work of the
// current state is cancelled first; the generation bump makes anything already
// queued for it stale.
func (a *Actor[C]) transition(ctx context.Context, target string, action Action[C], event Event) error {
	from := a.state
	a.cancelPending()

	next, err := evalAction(a.machine.states[from].Exit, a.current, event)
	if err != nil {
		return &ActionEvaluationError{State: from, Event: event.Type, Kind: ActionExit, Err: err}
	}

	next, err = evalAction(action, next, event)
	if err != nil {
		return &ActionEvaluationError{State: from, Event: event.Type, Kind: ActionTransition, Err: err}
	}

	if !a.commit(func() {
		a.generation.Inc()
		a.state = target
		a.current = next
	}) {
		return errStopped
	}

	transitionsTotal.WithLabelValues(a.machine.id, from, target, event.Type).Inc()
	a.log.TransitionExecuted(ctx, from, target, event)

	return a.enter(ctx, target, event)
}

// enter runs the entry action, arms the state's timer and invocation and
// publishes the snapshot.
func (a *Actor[C]) enter(ctx context.Context, name string, event Event) error {
	st := a.machine.states[name]

	next, err := evalAction(st.Entry, a.current, event)
	if err != nil {
		return &ActionEvaluationError{State: name, Event: event.Type, Kind: ActionEntry, Err: err}
	}

	if !a.commit(func() { a.current = next }) {
		return errStopped
	}

	gen := a.generation.Load()

	if st.After != nil {
		a.armTimer(gen, st.After.Delay)
	}

	if st.Invoke != nil {
		if err := a.invoke(ctx, gen, name, st.Invoke, event); err != nil {
			return err
		}
	}

	a.log.StateEntered(ctx, name, event)
	a.publish(Snapshot[C]{State: name, Context: cloneContext(a.current), Event: event})

	return nil
}

func (a *Actor[C]) armTimer(gen uint64, delay time.Duration) {
	timer := a.clock.AfterFunc(delay, func() {
		a.enqueue(message{kind: messageTimer, event: Event{Type: EventAfter}, generation: gen})
	})

	a.mu.Lock()
	if a.status != StatusRunning {
		a.mu.Unlock()
		timer.Stop()

		return
	}

	a.timer = timer
	a.mu.Unlock()
}

func (a *Actor[C]) cancelPending() {
	a.mu.Lock()
	timer, inv := a.timer, a.invocation
	a.timer, a.invocation = nil, nil
	a.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	if inv != nil {
		inv.cancel()
	}
}

func (a *Actor[C]) drop(ctx context.Context, event Event, guardRejected bool) {
	reason := dropUnhandled
	if guardRejected {
		reason = dropGuardRejected
	}

	eventsDroppedTotal.WithLabelValues(a.machine.id, a.state, event.Type, reason).Inc()
	a.log.EventDropped(ctx, a.state, event, reason)

	if a.onUnhandled == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Get(ctx).Error("panic encountered in unhandled event handler",
				"error", amperrors.FromPanic(r, debug.Stack()))
		}
	}()

	a.onUnhandled(&UnhandledEventError{State: a.state, Event: event.Type, GuardRejected: guardRejected})
}

func (a *Actor[C]) stale(ctx context.Context, kind string) {
	staleCompletionsTotal.WithLabelValues(a.machine.id, kind).Inc()
	a.log.StaleCompletion(ctx, a.state, kind)
}

// fail stops the actor after a guard or action error and reports it to every
// observer.
func (a *Actor[C]) fail(ctx context.Context, err error) {
	traceID, spanID := extractTraceContext(ctx)

	err = logger.AnnotateError(err,
		"actor_id", a.id,
		"machine", a.machine.id,
		"state", a.state,
		"trace_id", traceID,
		"span_id", spanID,
	)

	kind := "action"

	var guardErr *GuardEvaluationError
	if errors.As(err, &guardErr) {
		kind = "guard"
	}

	actorFailuresTotal.WithLabelValues(a.machine.id, kind).Inc()

	a.shutdown(err)
}

// shutdown moves the actor to Stopped exactly once. A non-nil cause is
// delivered to the observers that were attached.
func (a *Actor[C]) shutdown(cause error) {
	a.mu.Lock()

	if a.status == StatusStopped || (a.status == StatusNotStarted && !a.starting) {
		a.mu.Unlock()

		return
	}

	wasRunning := a.status == StatusRunning
	a.status = StatusStopped
	a.failure = cause
	a.queue = nil

	timer, inv, stopAfter := a.timer, a.invocation, a.stopAfter
	a.timer, a.invocation, a.stopAfter = nil, nil, nil

	subs := errorTargetsLocked(a.subscribers)
	a.subscribers = nil
	a.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	if inv != nil {
		inv.cancel()
	}

	if stopAfter != nil {
		stopAfter()
	}

	close(a.done)

	if wasRunning {
		actorsRunning.WithLabelValues(a.machine.id).Dec()
		a.log.ActorStopped(a.ctx, a.lastState(), cause)
	}

	if cause != nil {
		a.notifyError(subs, cause)
	}
}
