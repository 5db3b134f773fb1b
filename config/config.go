// Package config loads typed configuration structs from the process
// environment, optionally seeded from .env files.
//
// Struct fields are described with caarlos0/env tags:
//
//	type Settings struct {
//		MaxCount int           `env:"MAX_COUNT,required"`
//		Timeout  time.Duration `env:"TIMEOUT" envDefault:"2s"`
//	}
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when a nil pointer is passed to Load.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
	// ErrParsingConfig is returned when environment variables cannot be parsed into the struct.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrDotEnv is returned when an explicitly requested .env file cannot be read.
	ErrDotEnv = errors.New("failed to load .env file")
)

// defaultDotEnv loads ./.env at most once per process. A missing file is fine.
var defaultDotEnv sync.Once //nolint:gochecknoglobals

type options struct {
	prefix   string
	dotenv   []string
	skipFile bool
}

// Option customizes a single Load call.
type Option func(*options)

// WithPrefix only considers variables starting with prefix (the prefix is
// stripped before matching field tags).
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithDotEnv loads the given .env files before parsing. Unlike the implicit
// ./.env lookup, these files must exist.
func WithDotEnv(files ...string) Option {
	return func(o *options) {
		o.dotenv = append(o.dotenv, files...)
	}
}

// WithoutDefaultDotEnv skips the implicit ./.env lookup.
func WithoutDefaultDotEnv() Option {
	return func(o *options) {
		o.skipFile = true
	}
}

// Load fills v from the environment. Values already present in the
// environment win over values from .env files.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !o.skipFile {
		defaultDotEnv.Do(func() {
			_ = godotenv.Load()
		})
	}

	if len(o.dotenv) > 0 {
		if err := godotenv.Load(o.dotenv...); err != nil {
			return fmt.Errorf("%w: %w", ErrDotEnv, err)
		}
	}

	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
