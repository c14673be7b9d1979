package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/framepipe/internal/logger"
	"github.com/marmos91/framepipe/internal/telemetry"
	"github.com/marmos91/framepipe/pkg/config"
	"github.com/marmos91/framepipe/pkg/engine"
	"github.com/marmos91/framepipe/pkg/metrics"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initTelemetry initializes OpenTelemetry tracing from configuration.
// The returned shutdown function flushes and closes the exporter.
func initTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "framepipe",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	shutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	return shutdown, nil
}

// startMetricsServer starts the Prometheus /metrics endpoint if metrics are
// enabled. Returns nil when disabled; the caller shuts the server down.
func startMetricsServer(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:    cfg.Metrics.ListenAddress,
		Handler: mux,
	}

	go func() {
		logger.Info("Metrics endpoint listening", "address", cfg.Metrics.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return server
}

// stopMetricsServer shuts down the metrics endpoint, tolerating a nil server.
func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
}

// newEngine builds the write-behind engine from configuration. Write errors
// are logged; delivery of the failed item is abandoned and the worker moves
// on, matching the fire-and-forget contract of the CLI paths.
func newEngine(cfg *config.Config) *engine.Engine {
	return engine.New(
		engine.WithChunkSize(cfg.Engine.ChunkSize.Int()),
		engine.WithMetrics(metrics.NewEngineMetrics()),
		engine.WithErrorHandler(func(we engine.WriteError) {
			logger.Error("frame delivery failed",
				"fd", we.Fd,
				"token", we.Token,
				"written", we.Written,
				"error", we.Err)
		}),
	)
}

// drainContext returns a context bounded by the configured drain timeout.
// A zero timeout waits forever.
func drainContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Engine.DrainTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cfg.Engine.DrainTimeout)
}
