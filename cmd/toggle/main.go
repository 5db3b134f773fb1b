// Command toggle runs the toggle machine, either from a script of events or
// interactively.
//
// Configuration comes from TOGGLE_* environment variables (or a .env file);
// logging from LOG_*; telemetry export from OTEL_*.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/amp-labs/statechart/cli"
	"github.com/amp-labs/statechart/config"
	"github.com/amp-labs/statechart/logger"
	"github.com/amp-labs/statechart/shutdown"
	"github.com/amp-labs/statechart/telemetry"
)

const (
	appName              = "toggle"
	telemetryFlushTimeout = 5 * time.Second
)

func main() {
	ctx := shutdown.SetupHandler(context.Background())

	if _, err := logger.ConfigureLogging(ctx, appName); err != nil {
		fmt.Fprintln(os.Stderr, "failed to configure logging:", err) //nolint:forbidigo

		os.Exit(1)
	}

	setupTelemetry(ctx)

	var s settings
	if err := config.Load(&s, config.WithPrefix(envPrefix)); err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	final, err := run(ctx, s, os.Stdout)
	if err != nil && !errors.Is(err, cli.ErrAborted) && !errors.Is(err, context.Canceled) {
		logger.Fatal("toggle failed", "error", err)
	}

	logger.Get(ctx).Info("done", "state", final.State, "count", final.Context.Count)

	shutdown.Shutdown()
	<-ctx.Done()
}

func setupTelemetry(ctx context.Context) {
	cfg, err := telemetry.LoadConfigFromEnv(ctx)
	if err != nil {
		logger.Fatal("invalid telemetry configuration", "error", err)
	}

	if err := telemetry.Initialize(ctx, cfg); err != nil {
		logger.Fatal("failed to initialize telemetry", "error", err)
	}

	if h := telemetry.LogHandler(appName); h != nil {
		if _, err := logger.ConfigureLogging(ctx, appName, logger.WithExtraHandler(h)); err != nil {
			logger.Fatal("failed to configure logging", "error", err)
		}
	}

	shutdown.BeforeShutdown(func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()

		if err := telemetry.Shutdown(flushCtx); err != nil {
			logger.Get().Error("failed to shut down telemetry", "error", err)
		}
	})
}
