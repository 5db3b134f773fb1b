package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as metric labels.
const (
	dropUnhandled     = "unhandled"
	dropGuardRejected = "guard_rejected"
	dropNotRunning    = "not_running"
)

// Completion kinds used as metric labels.
const (
	kindTimer      = "timer"
	kindInvocation = "invocation"
)

var (
	// transitionsTotal tracks state transitions, including self transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of state transitions by machine, from_state, to_state and event",
	}, []string{"machine", "from_state", "to_state", "event"})

	// eventsDroppedTotal tracks events that caused no transition.
	eventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_events_dropped_total",
		Help: "Total number of events dropped by machine, state, event and reason",
	}, []string{"machine", "state", "event", "reason"})

	// staleCompletionsTotal tracks timer fires and invocation results that
	// arrived after their state was exited.
	staleCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_stale_completions_total",
		Help: "Total number of discarded timer fires and invocation results by machine and kind",
	}, []string{"machine", "kind"})

	// invocationsTotal tracks invocation outcomes (success, error, cancelled).
	invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_invocations_total",
		Help: "Total number of invocations by machine, state, invocation and outcome",
	}, []string{"machine", "state", "invocation", "outcome"})

	// invocationDuration tracks how long operations run.
	invocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_invocation_duration_seconds",
		Help:    "Duration of invocations by machine, invocation and outcome",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"machine", "invocation", "outcome"})

	// actorsRunning tracks actors between Start and Stop.
	actorsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statemachine_actors_running",
		Help: "Number of running actors by machine",
	}, []string{"machine"})

	// actorFailuresTotal tracks actors stopped by a guard or action failure.
	actorFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_actor_failures_total",
		Help: "Total number of actors stopped by a fatal guard or action error",
	}, []string{"machine", "kind"})
)

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
