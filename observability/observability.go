// Package observability is the structured-event sink the event
// processor tees per-event telemetry into. The processor never
// performs I/O itself; it only ever calls Sink.Emit, and Emit must
// never block processing.
package observability

import (
	charmlog "github.com/charmbracelet/log"

	"github.com/keyrx/keyrx/keycode"
)

// Level mirrors the handful of severities the processor actually uses.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Kind names the processor lifecycle event a Record describes.
type Kind uint8

const (
	KindDispatched Kind = iota
	KindPassthrough
	KindModifierIgnored
	KindLockToggled
	KindLayerPopMismatch
	KindTapHoldDemoted
	KindTapHoldTap
	KindTapHoldHold
	KindCapacityExceeded
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindPassthrough:
		return "passthrough"
	case KindModifierIgnored:
		return "modifier_ignored"
	case KindLockToggled:
		return "lock_toggled"
	case KindLayerPopMismatch:
		return "layer_pop_mismatch"
	case KindTapHoldDemoted:
		return "tap_hold_demoted"
	case KindTapHoldTap:
		return "tap_hold_tap"
	case KindTapHoldHold:
		return "tap_hold_hold"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindInvariantViolation:
		return "invariant_violation"
	default:
		return "dispatched"
	}
}

// Record is a single structured telemetry event. Detail is only
// populated for the anomalous Kinds (mistyped ids, demotions,
// mismatches); the common per-event path leaves it empty so the hot
// path never has to format a string.
type Record struct {
	TimestampUs uint64
	Level       Level
	Kind        Kind
	DeviceID    string
	Key         keycode.KeyCode
	Detail      string
}

// Sink receives Records from an Event Processor. Implementations must
// make Emit non-blocking: a full queue drops the record rather than
// stalling the caller.
type Sink interface {
	Emit(Record)
}

// BoundedSink is a channel-backed Sink with a fixed capacity. Emit
// never blocks: once the channel is full, records are dropped and
// Dropped is incremented. The CLI does not use it: serve wires a
// LogSink and simulate a CollectingSink.
type BoundedSink struct {
	ch      chan Record
	dropped uint64
}

// NewBoundedSink returns a BoundedSink whose internal queue holds up
// to capacity records.
func NewBoundedSink(capacity int) *BoundedSink {
	if capacity <= 0 {
		capacity = 256
	}
	return &BoundedSink{ch: make(chan Record, capacity)}
}

// Emit implements Sink.
func (s *BoundedSink) Emit(r Record) {
	select {
	case s.ch <- r:
	default:
		s.dropped++
	}
}

// Records returns the channel records can be drained from. Consumers
// (the CLI's log forwarder, or a test) range over it.
func (s *BoundedSink) Records() <-chan Record {
	return s.ch
}

// Dropped reports how many records have been discarded because the
// queue was full. Not safe to read concurrently with Emit without
// external synchronization, matching the single-writer-per-device
// model the rest of the core assumes.
func (s *BoundedSink) Dropped() uint64 {
	return s.dropped
}

// NopSink discards every record. Useful for benchmarks and tests that
// don't care about telemetry.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Record) {}

// CollectingSink accumulates every Record in memory, unbounded. It
// exists for tests that want to assert on the exact telemetry a run
// produced (spec.md section 4.10: "pluggable so tests can assert on
// records directly").
type CollectingSink struct {
	Records []Record
}

// Emit implements Sink.
func (s *CollectingSink) Emit(r Record) {
	s.Records = append(s.Records, r)
}

// LogSink adapts a *charmlog.Logger into a Sink, giving a CLI run
// human-readable, leveled output instead of a channel a caller has to
// drain themselves. Emit has no queue: charmlog writes synchronously
// to its own io.Writer, so Emit returns only once that write does, and
// it carries none of BoundedSink's drop bookkeeping.
type LogSink struct {
	logger *charmlog.Logger
}

// NewLogSink wraps logger as a Sink.
func NewLogSink(logger *charmlog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink, routing r to the charmlog level matching its
// own and attaching device/key/kind as structured fields.
func (s *LogSink) Emit(r Record) {
	fields := []interface{}{
		"device", r.DeviceID,
		"kind", r.Kind.String(),
		"ts_us", r.TimestampUs,
	}
	if r.Key != keycode.Invalid {
		fields = append(fields, "key", r.Key.String())
	}
	if r.Detail != "" {
		fields = append(fields, "detail", r.Detail)
	}
	switch r.Level {
	case LevelDebug:
		s.logger.Debug("processor event", fields...)
	case LevelWarn:
		s.logger.Warn("processor event", fields...)
	case LevelError:
		s.logger.Error("processor event", fields...)
	default:
		s.logger.Info("processor event", fields...)
	}
}
