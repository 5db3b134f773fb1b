package statemachine

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"facette.io/natsort"
	"github.com/amp-labs/statechart/errors"
	"gopkg.in/yaml.v3"
)

// ConfigLoader is an interface for loading configurations by name.
// Applications can implement this to provide embedded or custom config loading.
type ConfigLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

var (
	loaderMu sync.RWMutex
	// defaultConfigLoader is the global config loader used by LoadConfig.
	defaultConfigLoader ConfigLoader
)

// SetConfigLoader sets the default config loader for name-based loading.
func SetConfigLoader(loader ConfigLoader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()

	defaultConfigLoader = loader
}

func getConfigLoader() ConfigLoader { //nolint:ireturn
	loaderMu.RLock()
	defer loaderMu.RUnlock()

	return defaultConfigLoader
}

// FSLoader loads "<name>.yaml" files from a directory of a filesystem,
// typically an embed.FS.
type FSLoader struct {
	FS  fs.FS
	Dir string
}

func (l FSLoader) LoadByName(name string) ([]byte, error) {
	return fs.ReadFile(l.FS, path.Join(l.Dir, name+".yaml"))
}

func (l FSLoader) ListAvailable() []string {
	matches, err := fs.Glob(l.FS, path.Join(l.Dir, "*.yaml"))
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), ".yaml"))
	}

	natsort.Sort(names)

	return names
}

// Config is the declarative form of a machine. Guards, actions, input
// projections and operations are referenced by name and resolved against a
// Registry by BuildMachine.
type Config struct {
	ID           string        `json:"id"           yaml:"id"`
	InitialState string        `json:"initialState" yaml:"initialState"`
	States       []StateConfig `json:"states"       yaml:"states"`
}

// StateConfig defines the configuration for a state.
type StateConfig struct {
	Name   string                        `json:"name"   yaml:"name"`
	Entry  string                        `json:"entry"  yaml:"entry"`
	Exit   string                        `json:"exit"   yaml:"exit"`
	On     map[string][]TransitionConfig `json:"on"     yaml:"on"`
	After  *AfterConfig                  `json:"after"  yaml:"after"`
	Invoke *InvokeConfig                 `json:"invoke" yaml:"invoke"`
}

// TransitionConfig defines a single rule.
type TransitionConfig struct {
	Target string `json:"target" yaml:"target"`
	Guard  string `json:"guard"  yaml:"guard"`
	Action string `json:"action" yaml:"action"`
}

// AfterConfig defines a delayed transition. Delay uses time.ParseDuration
// syntax ("2000ms", "2s").
type AfterConfig struct {
	Delay  string `json:"delay"  yaml:"delay"`
	Target string `json:"target" yaml:"target"`
	Action string `json:"action" yaml:"action"`
}

// InvokeConfig binds a registered operation (Src) to a state.
type InvokeConfig struct {
	ID      string            `json:"id"      yaml:"id"`
	Src     string            `json:"src"     yaml:"src"`
	Input   string            `json:"input"   yaml:"input"`
	OnDone  *TransitionConfig `json:"onDone"  yaml:"onDone"`
	OnError *TransitionConfig `json:"onError" yaml:"onError"`
}

// LoadConfig loads a machine configuration by path or name.
// Supports two modes:
//   - Path mode: a value containing '/', '\' or ending in '.yaml' is read from disk
//     Example: LoadConfig("testdata/toggle.yaml")
//   - Name mode: a bare name is loaded via the registered ConfigLoader
//     Example: LoadConfig("toggle")
func LoadConfig(pathOrName string) (*Config, error) {
	isPath := strings.Contains(pathOrName, "/") ||
		strings.Contains(pathOrName, `\`) ||
		strings.HasSuffix(strings.ToLower(pathOrName), ".yaml")

	if isPath {
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Intentional path-based loading
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", pathOrName, err)
		}

		return LoadConfigFromBytes(data)
	}

	loader := getConfigLoader()
	if loader == nil {
		return nil, ErrNoConfigLoader
	}

	data, err := loader.LoadByName(pathOrName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %q (available: %v): %w", pathOrName, loader.ListAvailable(), err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads a machine configuration from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from a filesystem such as embed.FS.
func LoadConfigFromFS(fsys fs.FS, name string) (*Config, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate checks what can be checked without a registry. Target and
// reachability checks happen when the machine is built.
func (c *Config) Validate() error {
	var errs errors.Collection

	if c.ID == "" {
		errs.Add(ErrMachineIDRequired)
	}

	if c.InitialState == "" {
		errs.Add(ErrInitialStateRequired)
	}

	if len(c.States) == 0 {
		errs.Add(ErrStateRequired)
	}

	for i, st := range c.States {
		if st.Name == "" {
			errs.Addf(ErrStateNameRequired, "state %d", i)
		}

		if st.After != nil {
			if _, err := parseDelay(st.After.Delay); err != nil {
				errs.Addf(err, "state %s", st.Name)
			}
		}

		if st.Invoke != nil && st.Invoke.Src == "" {
			errs.Addf(ErrOperationRequired, "state %s", st.Name)
		}
	}

	if errs.HasError() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs.GetError())
	}

	return nil
}

func parseDelay(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	return d, nil
}
