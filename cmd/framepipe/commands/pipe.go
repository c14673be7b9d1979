package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/framepipe/internal/bytesize"
	"github.com/marmos91/framepipe/internal/logger"
	"github.com/marmos91/framepipe/pkg/buffer"
	"github.com/marmos91/framepipe/pkg/bufpool"
	"github.com/marmos91/framepipe/pkg/config"
	"github.com/marmos91/framepipe/pkg/engine"
)

var (
	pipeFrameSize string
	pipeCount     int
	pipeAppend    bool
)

// pipeWindow bounds how many frames may be in flight before the reader blocks
// waiting for the oldest one, which also bounds the memory held by the pool.
const pipeWindow = 4

var pipeCmd = &cobra.Command{
	Use:   "pipe <output>...",
	Short: "Fan stdin frames out to one or more destinations",
	Long: `Read fixed-size frames from stdin and deliver each one to every given
destination through the write-behind engine. "-" writes to stdout.

Reading continues while previous frames are still being written; each
destination has its own queue and worker, so one slow destination never
stalls the others. A trailing partial frame at EOF is delivered as-is.

Examples:
  # Duplicate a raw video stream into two files
  ffmpeg ... -f rawvideo - | framepipe pipe /tmp/a.raw /tmp/b.raw

  # Tee to stdout and a file with 64KiB frames
  cat data | framepipe pipe --frame-size 64Ki - /tmp/copy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipe,
}

func init() {
	pipeCmd.Flags().StringVar(&pipeFrameSize, "frame-size", "", "Frame size (e.g. \"64Ki\"; default: engine.frame_size from config)")
	pipeCmd.Flags().IntVar(&pipeCount, "count", 0, "Stop after this many frames (0 = until EOF)")
	pipeCmd.Flags().BoolVar(&pipeAppend, "append", false, "Append to destination files instead of truncating")
}

func runPipe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	metricsServer := startMetricsServer(cfg)
	defer stopMetricsServer(metricsServer)

	frameSize := cfg.Engine.FrameSize.Int()
	if pipeFrameSize != "" {
		size, err := bytesize.ParseByteSize(pipeFrameSize)
		if err != nil {
			return fmt.Errorf("invalid --frame-size: %w", err)
		}
		frameSize = size.Int()
	}

	fds, closeOutputs, err := openOutputs(args)
	if err != nil {
		return err
	}
	defer closeOutputs()

	eng := newEngine(cfg)
	defer eng.Close()

	pool := bufpool.NewPool(frameSize)
	registry := buffer.NewRegistry()

	logger.Info("Piping frames",
		"frame_size", bytesize.ByteSize(frameSize).String(),
		"destinations", len(fds))

	frames, bytes, err := pipeFrames(ctx, eng, pool, registry, fds)
	if err != nil {
		return err
	}

	drainCtx, cancelDrain := drainContext(context.Background(), cfg)
	defer cancelDrain()
	if err := eng.Drain(drainCtx); err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}
	if err := eng.Close(); err != nil {
		return err
	}

	logger.Info("Pipe finished", "frames", frames, "bytes", bytes)
	fmt.Fprintf(os.Stderr, "%d frames, %s delivered to %d destination(s)\n",
		frames, bytesize.ByteSize(bytes), len(fds))
	return nil
}

// pipeFrames runs the read/submit loop until EOF, the frame count limit, or
// cancellation. Returns the number of full or partial frames delivered and
// the total bytes read.
func pipeFrames(
	ctx context.Context,
	eng *engine.Engine,
	pool *bufpool.Pool,
	registry *buffer.Registry,
	fds []int,
) (frames int, bytes uint64, err error) {
	type inflight struct {
		ref *buffer.Tracked
		buf []byte
	}
	var window []inflight

	// recycle waits for the oldest frame to finish on every destination and
	// hands its buffer back to the pool.
	recycle := func(ctx context.Context) error {
		oldest := window[0]
		window = window[1:]
		if err := eng.DrainRef(ctx, oldest.ref); err != nil {
			return err
		}
		registry.Release(oldest.ref)
		pool.Put(oldest.buf)
		return nil
	}

	// In-flight frames are still flushed after an interrupt, so the final
	// drain runs detached from the signal context.
	defer func() {
		for len(window) > 0 {
			if recycleErr := recycle(context.Background()); recycleErr != nil && err == nil {
				err = recycleErr
			}
		}
	}()

	for pipeCount == 0 || frames < pipeCount {
		if ctx.Err() != nil {
			logger.Info("Interrupted, flushing in-flight frames")
			return frames, bytes, nil
		}

		buf := pool.Get()
		n, readErr := io.ReadFull(os.Stdin, buf)
		if n == 0 {
			pool.Put(buf)
			if readErr == nil {
				continue
			}
			if errors.Is(readErr, io.EOF) {
				return frames, bytes, nil
			}
			return frames, bytes, fmt.Errorf("stdin read failed: %w", readErr)
		}

		ref := registry.Register(buf[:n])
		for _, fd := range fds {
			if submitErr := eng.Submit(ref, fd); submitErr != nil {
				registry.Release(ref)
				return frames, bytes, fmt.Errorf("submit to fd %d failed: %w", fd, submitErr)
			}
		}
		window = append(window, inflight{ref: ref, buf: buf})
		frames++
		bytes += uint64(n)

		if readErr != nil {
			if errors.Is(readErr, io.ErrUnexpectedEOF) || errors.Is(readErr, io.EOF) {
				return frames, bytes, nil
			}
			return frames, bytes, fmt.Errorf("stdin read failed: %w", readErr)
		}

		if len(window) >= pipeWindow {
			if err := recycle(ctx); err != nil {
				return frames, bytes, err
			}
		}
	}
	return frames, bytes, nil
}

// openOutputs opens every destination path ("-" means stdout) and returns
// their descriptors plus a close function for the opened files.
func openOutputs(paths []string) ([]int, func(), error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if pipeAppend {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	fds := make([]int, 0, len(paths))
	for _, path := range paths {
		if path == "-" {
			fds = append(fds, int(os.Stdout.Fd()))
			continue
		}
		f, err := os.OpenFile(path, flags, 0644)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		files = append(files, f)
		fds = append(fds, int(f.Fd()))
	}
	return fds, closeAll, nil
}
