package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/keyrx/keyrx/artifact"
	"github.com/keyrx/keyrx/clistatus"
	"github.com/keyrx/keyrx/errs"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/platform"
	"github.com/keyrx/keyrx/processor"
)

// tickInterval bounds how stale a pending tap-hold timeout can be
// observed: the processor itself never samples a clock, so something
// has to drive Tick between input events.
const tickInterval = 5 * time.Millisecond

type serveCommand struct {
	artifactPath string
	backend      string
	devicePaths  []string
	status       bool
	cmd          *cobra.Command
}

func newServeCommand() *cobra.Command {
	sc := &serveCommand{}
	sc.cmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the event loop against a live platform backend",
		RunE:  sc.Execute,
	}
	sc.cmd.Flags().StringVar(&sc.artifactPath, "artifact", "", "compiled artifact path (required)")
	sc.cmd.Flags().StringVar(&sc.backend, "backend", "linux", `platform backend: "linux" or "tty"`)
	sc.cmd.Flags().StringSliceVar(&sc.devicePaths, "device", nil, "evdev device path(s), linux backend only")
	sc.cmd.Flags().BoolVar(&sc.status, "status", true, "print a live status line to stderr")
	_ = sc.cmd.MarkFlagRequired("artifact")
	return sc.cmd
}

// servedUnit is one (Source, Processor, Sink) triple driving a single
// physical or virtual device end to end.
type servedUnit struct {
	deviceID string
	source   platform.Source
	sink     platform.Sink
	proc     *processor.Processor
}

func (s *serveCommand) Execute(_ *cobra.Command, _ []string) error {
	sealed, err := os.ReadFile(s.artifactPath)
	if err != nil {
		return fmt.Errorf("keyrx: reading %s: %w", s.artifactPath, err)
	}
	root, err := artifact.Decode(sealed, artifact.DecodeOptions{})
	if err != nil {
		return fmt.Errorf("keyrx: loading %s: %w", s.artifactPath, err)
	}

	sink := observability.NewLogSink(newLogger())

	units, closeUnits, err := s.openUnits(root, sink)
	if err != nil {
		return err
	}
	defer closeUnits()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		u := u
		group.Go(func() error { return runUnit(gctx, u, s.status) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

type eventOrErr struct {
	ev  keycode.Event
	err error
}

// runUnit grabs u's source, then alternates between delivering input
// events to u.proc and driving a fixed-interval Tick so tap-hold
// timeouts fire even while the device is idle. Both paths flush
// through u.sink and, if enabled, refresh the terminal status line.
func runUnit(ctx context.Context, u servedUnit, showStatus bool) error {
	if err := u.source.Grab(); err != nil {
		return fmt.Errorf("keyrx: grabbing %s: %w", u.deviceID, err)
	}
	defer u.source.Release()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	events := make(chan eventOrErr)
	go func() {
		for {
			ev, err := u.source.NextEvent(ctx)
			select {
			case events <- eventOrErr{ev, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var buf keycode.Buffer
	prevWidth := 0
	refreshStatus := func() {
		if showStatus {
			prevWidth = clistatus.Fprint(os.Stderr, u.proc.Snapshot(), prevWidth)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			buf.Reset()
			u.proc.Tick(uint64(time.Now().UnixMicro()), &buf)
			if err := flushBuffer(u.sink, &buf); err != nil {
				return err
			}
			refreshStatus()

		case item := <-events:
			if item.err != nil {
				if errors.Is(item.err, errs.ErrEndOfStream) {
					return nil
				}
				return fmt.Errorf("keyrx: reading from %s: %w", u.deviceID, item.err)
			}
			buf.Reset()
			// Process's own error returns are non-fatal (spec.md
			// section 7): the buffer still holds whatever output it
			// produced before returning.
			_ = u.proc.Process(item.ev, &buf)
			if err := flushBuffer(u.sink, &buf); err != nil {
				return err
			}
			refreshStatus()
		}
	}
}

func flushBuffer(sink platform.Sink, buf *keycode.Buffer) error {
	for _, ev := range buf.Events() {
		if err := sink.Inject(ev); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrInjectionFailed, err)
		}
	}
	return nil
}
