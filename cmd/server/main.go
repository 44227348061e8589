// Package main is the entry point for the X login relay.
//
// MAIN PACKAGE IN GO:
// Every Go program starts execution in the main() function of the "main" package.
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (env vars and an optional .env file)
// 2. Create process-wide dependencies (logger, tracing)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// Each executable gets its own directory with its own main.go.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/x-oauth/internal/config"
	"github.com/sakif/x-oauth/internal/server"
	"github.com/sakif/x-oauth/internal/telemetry"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// config.Load reads .env (if present) and then the process environment.
	// PRIVY_APP_ID and PRIVY_APP_SECRET are required; everything else has a default.
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: fall back to a plain one so the error is still structured.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_FORMAT=json switches to one JSON object per line for log shippers;
	// the default text handler is easier to read in a terminal.
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logHandler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.JSONLogs() {
		logHandler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	// === 3. TRACING ===
	// Disabled unless OTEL_ENDPOINT is set. The deferred shutdown flushes
	// buffered spans when Start returns.
	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.OTELEndpoint, telemetry.ServiceName)
	if err != nil {
		logger.Error("failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	runErr := srv.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("flushing traces failed", slog.String("error", err.Error()))
	}
	cancel()

	if runErr != nil {
		logger.Error("server error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
}
