package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/framepipe/internal/bytesize"
	"github.com/marmos91/framepipe/internal/logger"
	"github.com/marmos91/framepipe/internal/telemetry"
	"github.com/marmos91/framepipe/pkg/buffer"
	"github.com/marmos91/framepipe/pkg/bufpool"
	"github.com/marmos91/framepipe/pkg/config"
)

var (
	benchFrames    int
	benchPoolSize  int
	benchFrameSize string
	benchOutput    string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure write-behind throughput",
	Long: `Submit a fixed number of frames through the write-behind engine and
report the achieved throughput.

A small pool of frames is cycled round-robin, so the benchmark also exercises
the in-flight deduplication path: resubmitting a frame that is still queued
blocks until its previous delivery completes.

Examples:
  # 10000 default-size frames to /dev/null
  framepipe bench

  # 4K frames to a file
  framepipe bench --frames 2000 --frame-size 24Mi --output /tmp/sink`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchFrames, "frames", 10000, "Number of frames to submit")
	benchCmd.Flags().IntVar(&benchPoolSize, "pool", 4, "Number of distinct frames cycled through the engine")
	benchCmd.Flags().StringVar(&benchFrameSize, "frame-size", "", "Frame size (e.g. \"6Mi\"; default: engine.frame_size from config)")
	benchCmd.Flags().StringVarP(&benchOutput, "output", "o", os.DevNull, "Destination file")
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFrames <= 0 {
		return fmt.Errorf("--frames must be positive")
	}
	if benchPoolSize <= 0 {
		return fmt.Errorf("--pool must be positive")
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	metricsServer := startMetricsServer(cfg)
	defer stopMetricsServer(metricsServer)

	frameSize := cfg.Engine.FrameSize.Int()
	if benchFrameSize != "" {
		size, err := bytesize.ParseByteSize(benchFrameSize)
		if err != nil {
			return fmt.Errorf("invalid --frame-size: %w", err)
		}
		frameSize = size.Int()
	}

	out, err := os.OpenFile(benchOutput, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer out.Close()
	fd := int(out.Fd())

	runID := uuid.New().String()
	ctx, span := telemetry.StartSpan(ctx, "bench")
	defer span.End()
	telemetry.SetAttributes(ctx,
		attribute.String("bench.run_id", runID),
		attribute.Int("bench.frames", benchFrames),
		attribute.Int("bench.frame_size", frameSize),
		attribute.Int("bench.pool", benchPoolSize),
	)

	logger.Info("Benchmark starting",
		"run_id", runID,
		"frames", benchFrames,
		"frame_size", bytesize.ByteSize(frameSize).String(),
		"pool", benchPoolSize,
		"output", benchOutput)

	eng := newEngine(cfg)
	pool := bufpool.NewPool(frameSize)
	registry := buffer.NewRegistry()

	refs := make([]*buffer.Tracked, benchPoolSize)
	for i := range refs {
		frame := pool.Get()
		for j := range frame {
			frame[j] = byte(i)
		}
		refs[i] = registry.Register(frame)
	}

	start := time.Now()
	for i := 0; i < benchFrames; i++ {
		if err := eng.Submit(refs[i%benchPoolSize], fd); err != nil {
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("submit failed after %d frames: %w", i, err)
		}
	}

	drainCtx, cancelDrain := drainContext(ctx, cfg)
	defer cancelDrain()
	if err := eng.Drain(drainCtx); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("drain failed: %w", err)
	}
	elapsed := time.Since(start)

	if err := eng.Close(); err != nil {
		return err
	}
	for _, ref := range refs {
		registry.Release(ref)
	}

	totalBytes := uint64(benchFrames) * uint64(frameSize)
	framesPerSec := float64(benchFrames) / elapsed.Seconds()
	mbPerSec := float64(totalBytes) / elapsed.Seconds() / float64(bytesize.MiB)

	telemetry.SetAttributes(ctx,
		attribute.Float64("bench.frames_per_second", framesPerSec),
		attribute.Float64("bench.mib_per_second", mbPerSec),
	)
	logger.Info("Benchmark finished",
		"run_id", runID,
		"elapsed", elapsed,
		"frames_per_second", framesPerSec)

	fmt.Printf("Run:        %s\n", runID)
	fmt.Printf("Frames:     %d x %s\n", benchFrames, bytesize.ByteSize(frameSize))
	fmt.Printf("Total:      %s in %v\n", bytesize.ByteSize(totalBytes), elapsed.Round(time.Millisecond))
	fmt.Printf("Throughput: %.1f frames/s, %.1f MiB/s\n", framesPerSec, mbPerSec)
	return nil
}
