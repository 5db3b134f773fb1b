package statemachine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	sm "github.com/amp-labs/statechart/statemachine"
	smtest "github.com/amp-labs/statechart/statemachine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lights struct {
	Cycles    int
	Powered   bool
	Diagnosis string
}

func lightsRegistry() *sm.Registry[lights] {
	return sm.NewRegistry[lights]().
		WithContext(sm.ContextFrom(func(l lights) (lights, error) { return l, nil })).
		RegisterGuard("powered", func(l lights, _ sm.Event) (bool, error) { return l.Powered, nil }).
		RegisterAction("countCycle", func(l lights, _ sm.Event) (lights, error) {
			l.Cycles++

			return l, nil
		}).
		RegisterAction("recordDiagnosis", func(l lights, ev sm.Event) (lights, error) {
			l.Diagnosis, _ = ev.Output.(string)

			return l, nil
		}).
		RegisterInput("cycles", func(l lights) any { return l.Cycles }).
		RegisterOperation("diagnose", sm.OperationFrom(func(_ context.Context, cycles int) (string, error) {
			return "ok", nil
		}))
}

func TestLoadConfig_FromPath(t *testing.T) {
	t.Parallel()

	cfg, err := sm.LoadConfig("testdata/traffic.yaml")
	require.NoError(t, err)

	assert.Equal(t, "traffic", cfg.ID)
	assert.Equal(t, "red", cfg.InitialState)
	require.Len(t, cfg.States, 4)
	assert.Equal(t, "powered", cfg.States[0].On["go"][0].Guard)
	assert.Equal(t, "3000ms", cfg.States[2].After.Delay)
	assert.Equal(t, "diagnose", cfg.States[3].Invoke.Src)

	_, err = sm.LoadConfig("testdata/missing.yaml")
	require.Error(t, err)
}

//nolint:paralleltest // Modifies the global config loader
func TestLoadConfig_ByName(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "traffic.yaml"))
	require.NoError(t, err)

	sm.SetConfigLoader(nil)

	_, err = sm.LoadConfig("traffic")
	require.ErrorIs(t, err, sm.ErrNoConfigLoader)

	loader := sm.FSLoader{FS: fstest.MapFS{"defs/traffic.yaml": {Data: data}}, Dir: "defs"}
	sm.SetConfigLoader(loader)
	t.Cleanup(func() { sm.SetConfigLoader(nil) })

	assert.Equal(t, []string{"traffic"}, loader.ListAvailable())

	cfg, err := sm.LoadConfig("traffic")
	require.NoError(t, err)
	assert.Equal(t, "traffic", cfg.ID)

	_, err = sm.LoadConfig("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: [traffic]")
}

func TestLoadConfigFromFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"m.yaml": {Data: []byte("id: m\ninitialState: a\nstates:\n  - name: a\n")}}

	cfg, err := sm.LoadConfigFromFS(fsys, "m.yaml")
	require.NoError(t, err)
	assert.Equal(t, "m", cfg.ID)

	_, err = sm.LoadConfigFromFS(fsys, "other.yaml")
	require.Error(t, err)
}

func TestLoadConfigFromBytes_Invalid(t *testing.T) {
	t.Parallel()

	_, err := sm.LoadConfigFromBytes([]byte("states: [oops"))
	require.Error(t, err)

	_, err = sm.LoadConfigFromBytes([]byte(`
states:
  - name: ""
  - name: b
    after:
      delay: soon
      target: b
  - name: c
    invoke: {}
`))
	require.ErrorIs(t, err, sm.ErrInvalidConfig)

	for _, want := range []error{
		sm.ErrMachineIDRequired,
		sm.ErrInitialStateRequired,
		sm.ErrStateNameRequired,
		sm.ErrInvalidDuration,
		sm.ErrOperationRequired,
	} {
		assert.ErrorIs(t, err, want)
	}
}

func TestBuildMachine(t *testing.T) {
	t.Parallel()

	cfg, err := sm.LoadConfig("testdata/traffic.yaml")
	require.NoError(t, err)

	machine, err := sm.BuildMachine(cfg, lightsRegistry())
	require.NoError(t, err)

	assert.Equal(t, []string{"maintenance"}, machine.Unreachable())

	green, ok := machine.State("green")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, green.After.Delay)

	maintenance, ok := machine.State("maintenance")
	require.True(t, ok)
	assert.Equal(t, "selfTest", maintenance.Invoke.ID)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(lights{})
	actor.AssertContext(lights{Cycles: 1})

	actor.SendEvent("go")
	actor.AssertState("red")

	actor2 := smtest.NewTestActor(t, machine)
	actor2.RequireStart(lights{Powered: true})
	actor2.SendEvent("go")
	actor2.AssertState("green")

	actor2.Advance(30 * time.Second)
	actor2.AssertState("yellow")

	actor2.Advance(3 * time.Second)
	actor2.AssertState("red")
	actor2.AssertContext(lights{Powered: true, Cycles: 2})
}

func TestBuildMachine_InvokeFromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := sm.LoadConfigFromBytes([]byte(`
id: diag
initialState: maintenance
states:
  - name: red
  - name: maintenance
    invoke:
      src: diagnose
      input: cycles
      onDone:
        target: red
        action: recordDiagnosis
`))
	require.NoError(t, err)

	machine, err := sm.BuildMachine(cfg, lightsRegistry())
	require.NoError(t, err)

	actor := smtest.NewTestActor(t, machine)
	actor.RequireStart(lights{Cycles: 4})
	actor.WaitForState("red")
	actor.AssertContext(lights{Cycles: 4, Diagnosis: "ok"})
}

func TestBuildMachine_UnknownNames(t *testing.T) {
	t.Parallel()

	cfg := &sm.Config{
		ID:           "broken",
		InitialState: "a",
		States: []sm.StateConfig{
			{
				Name:  "a",
				Entry: "nope",
				On: map[string][]sm.TransitionConfig{
					"go": {{Target: "a", Guard: "missingGuard"}},
				},
				Invoke: &sm.InvokeConfig{Src: "missingOp", Input: "missingInput"},
			},
		},
	}

	_, err := sm.BuildMachine(cfg, lightsRegistry())
	require.ErrorIs(t, err, sm.ErrInvalidConfig)

	for _, want := range []error{
		sm.ErrUnknownAction,
		sm.ErrUnknownGuard,
		sm.ErrUnknownOperation,
		sm.ErrUnknownInput,
	} {
		assert.ErrorIs(t, err, want)
	}
}
