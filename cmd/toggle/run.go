package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/amp-labs/statechart/cli"
	"github.com/amp-labs/statechart/logger"
	"github.com/amp-labs/statechart/statemachine"
	"github.com/amp-labs/statechart/toggle"
)

const (
	envPrefix = "TOGGLE_"

	choiceWait = "[wait]"
	choiceQuit = "[quit]"
	waitPrefix = "wait:"
)

var errInvalidStep = errors.New("invalid script step")

type settings struct {
	MaxCount         int           `env:"MAX_COUNT"          envDefault:"4"`
	InitialCount     int           `env:"INITIAL_COUNT"      envDefault:"0"`
	ActiveTimeout    time.Duration `env:"ACTIVE_TIMEOUT"     envDefault:"2s"`
	ResetDelay       time.Duration `env:"RESET_DELAY"        envDefault:"1s"`
	ResetFailureRate float64       `env:"RESET_FAILURE_RATE" envDefault:"0.5"`
	Interactive      bool          `env:"INTERACTIVE"        envDefault:"false"`
	// Definition is a YAML path or the name of an embedded definition. Empty
	// means the machine is built in code.
	Definition string `env:"DEFINITION"`
	// Script is run when not interactive. "wait:<duration>" pauses.
	Script []string `env:"SCRIPT" envDefault:"toggle,toggle,toggle,wait:2500ms,reset,wait:1500ms,toggle" envSeparator:","`
}

type step struct {
	event string
	wait  time.Duration
}

func parseStep(s string) (step, error) {
	s = strings.TrimSpace(s)

	if d, ok := strings.CutPrefix(s, waitPrefix); ok {
		wait, err := time.ParseDuration(d)
		if err != nil || wait < 0 {
			return step{}, fmt.Errorf("%w: %q", errInvalidStep, s)
		}

		return step{wait: wait}, nil
	}

	if s == "" {
		return step{}, fmt.Errorf("%w: empty event", errInvalidStep)
	}

	return step{event: s}, nil
}

func newMachine(s settings) (*statemachine.Machine[toggle.Context], error) {
	resetter := toggle.NewResetter()
	resetter.Delay = s.ResetDelay
	resetter.FailureRate = s.ResetFailureRate

	opts := []toggle.Option{
		toggle.WithActiveTimeout(s.ActiveTimeout),
		toggle.WithResetOperation(resetter.Operation()),
	}

	if s.Definition == "" {
		return toggle.NewMachine(opts...)
	}

	toggle.RegisterDefinitions()

	return toggle.LoadMachine(s.Definition, opts...)
}

// printer renders every snapshot as a banner.
func printer(out io.Writer) statemachine.Observer[toggle.Context] {
	var mu sync.Mutex

	return statemachine.Observer[toggle.Context]{
		Next: func(snap statemachine.Snapshot[toggle.Context]) {
			mu.Lock()
			defer mu.Unlock()

			_, _ = fmt.Fprint(out, cli.Banner(cli.DefaultWidth,
				snap.State,
				fmt.Sprintf("count: %d / %d", snap.Context.Count, snap.Context.MaxCount),
				"after: "+snap.Event.Type,
			))
		},
		Error: func(err error) {
			logger.Get().Error("toggle actor failed", "error", err)
		},
	}
}

// run drives one actor and returns its last snapshot.
func run(ctx context.Context, s settings, out io.Writer) (statemachine.Snapshot[toggle.Context], error) {
	var last statemachine.Snapshot[toggle.Context]

	machine, err := newMachine(s)
	if err != nil {
		return last, err
	}

	actor := statemachine.NewActor(machine)
	actor.Subscribe(printer(out))

	initial := s.InitialCount
	if err := actor.Start(ctx, toggle.Input{InitialCount: &initial, MaxCount: s.MaxCount}); err != nil {
		return last, err
	}

	defer func() { _ = actor.Stop() }()

	logger.Get(ctx).Info("toggle started",
		"actor_id", actor.ID(),
		"machine_fingerprint", machine.Fingerprint(),
		"interactive", s.Interactive)

	if s.Interactive {
		err = interactive(ctx, actor)
	} else {
		err = scripted(ctx, actor, s.Script)
	}

	last, _ = actor.Snapshot()

	return last, err
}

func scripted(ctx context.Context, actor *statemachine.Actor[toggle.Context], script []string) error {
	for _, raw := range script {
		st, err := parseStep(raw)
		if err != nil {
			return err
		}

		if st.wait > 0 {
			if err := sleep(ctx, st.wait); err != nil {
				return err
			}

			continue
		}

		if err := actor.Send(statemachine.NewEvent(st.event)); err != nil {
			return err
		}
	}

	return nil
}

func interactive(ctx context.Context, actor *statemachine.Actor[toggle.Context]) error {
	for actor.Status() == statemachine.StatusRunning {
		snap, _ := actor.Snapshot()

		choices := append(actor.Machine().Events(snap.State), choiceWait, choiceQuit)

		choice, err := cli.Select("Event ("+snap.State+")", choices...)
		if err != nil {
			return err
		}

		switch choice {
		case choiceQuit:
			quit, err := cli.PromptConfirm("Stop the actor and exit")
			if err != nil {
				return err
			}

			if quit {
				return nil
			}
		case choiceWait:
			ms, err := cli.PromptInt("Milliseconds")
			if err != nil {
				return err
			}

			if err := sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
				return err
			}
		default:
			if err := actor.Send(statemachine.NewEvent(choice)); err != nil {
				return err
			}
		}
	}

	return actor.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
