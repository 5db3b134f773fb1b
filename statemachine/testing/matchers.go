package testing

import (
	"fmt"
	"strings"
)

// Matcher checks a property of a test actor's recorded history.
type Matcher[C any] interface {
	Match(actor *TestActor[C]) (bool, error)
	Description() string
}

type matcherFunc[C any] struct {
	desc string
	fn   func(actor *TestActor[C]) bool
}

func (m matcherFunc[C]) Match(actor *TestActor[C]) (bool, error) {
	return m.fn(actor), nil
}

func (m matcherFunc[C]) Description() string {
	return m.desc
}

// StateWasVisited matches if any snapshot was in the state.
func StateWasVisited[C any](name string) Matcher[C] { //nolint:ireturn
	return matcherFunc[C]{
		desc: fmt.Sprintf("State '%s' was visited", name),
		fn: func(actor *TestActor[C]) bool {
			for _, s := range actor.Recorder.States() {
				if s == name {
					return true
				}
			}

			return false
		},
	}
}

// TransitionWasTaken matches if two consecutive snapshots went from one
// state to the other.
func TransitionWasTaken[C any](from, to string) Matcher[C] { //nolint:ireturn
	return matcherFunc[C]{
		desc: fmt.Sprintf("Transition from '%s' to '%s' was taken", from, to),
		fn: func(actor *TestActor[C]) bool {
			states := actor.Recorder.States()

			for i := range len(states) - 1 {
				if states[i] == from && states[i+1] == to {
					return true
				}
			}

			return false
		},
	}
}

// InState matches the state of the latest snapshot.
func InState[C any](name string) Matcher[C] { //nolint:ireturn
	return matcherFunc[C]{
		desc: fmt.Sprintf("Actor is in state '%s'", name),
		fn: func(actor *TestActor[C]) bool {
			snap, ok := actor.Snapshot()

			return ok && snap.State == name
		},
	}
}

// ContextMatches matches if the latest context satisfies pred.
func ContextMatches[C any](desc string, pred func(C) bool) Matcher[C] { //nolint:ireturn
	return matcherFunc[C]{
		desc: "Context " + desc,
		fn: func(actor *TestActor[C]) bool {
			snap, ok := actor.Snapshot()

			return ok && pred(snap.Context)
		},
	}
}

// All matches if every matcher matches.
func All[C any](matchers ...Matcher[C]) Matcher[C] { //nolint:ireturn
	return &allMatcher[C]{matchers: matchers}
}

type allMatcher[C any] struct {
	matchers []Matcher[C]
}

func (m *allMatcher[C]) Match(actor *TestActor[C]) (bool, error) {
	for _, matcher := range m.matchers {
		ok, err := matcher.Match(actor)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher[C]) Description() string {
	return "All(" + describe(m.matchers) + ")"
}

// Any matches if at least one matcher matches.
func Any[C any](matchers ...Matcher[C]) Matcher[C] { //nolint:ireturn
	return &anyMatcher[C]{matchers: matchers}
}

type anyMatcher[C any] struct {
	matchers []Matcher[C]
}

func (m *anyMatcher[C]) Match(actor *TestActor[C]) (bool, error) {
	for _, matcher := range m.matchers {
		ok, err := matcher.Match(actor)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func (m *anyMatcher[C]) Description() string {
	return "Any(" + describe(m.matchers) + ")"
}

func describe[C any](matchers []Matcher[C]) string {
	descs := make([]string, len(matchers))
	for i, m := range matchers {
		descs[i] = m.Description()
	}

	return strings.Join(descs, ", ")
}
