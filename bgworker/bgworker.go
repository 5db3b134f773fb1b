// Package bgworker owns the process-wide worker pool that asynchronous
// state-machine invocations run on.
package bgworker

import (
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/statechart/config"
	"github.com/amp-labs/statechart/shutdown"
)

const defaultWorkerCount = 10

type poolConfig struct {
	WorkerCount int `env:"BACKGROUND_WORKER_COUNT" envDefault:"10"`
}

// workerPool is created on first use and drained before shutdown.
var workerPool = sync.OnceValue(func() pond.Pool {
	var cfg poolConfig

	count := defaultWorkerCount

	if err := config.Load(&cfg, config.WithoutDefaultDotEnv()); err != nil {
		slog.Warn("Invalid background worker configuration, using default", "error", err, "count", count)
	} else if cfg.WorkerCount > 0 {
		count = cfg.WorkerCount
	}

	slog.Debug("Initializing background worker pool", "count", count)

	pool := pond.NewPool(count)

	shutdown.BeforeShutdown(func() {
		slog.Debug("Stopping background worker pool")
		pool.StopAndWait()
		slog.Debug("Background worker pool stopped")
	})

	return pool
})

// Pool returns the shared pool, creating it if needed.
func Pool() pond.Pool { //nolint:ireturn
	return workerPool()
}
