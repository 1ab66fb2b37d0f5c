// Package simulator is the deterministic replay engine (C10): it
// drives a processor.Processor over a recorded Scenario using a
// virtual clock, and reports the output trace, a latency histogram,
// and — if the scenario carries an expected trace — a diff against
// it with the first divergence highlighted.
package simulator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/keyrx/keyrx/keycode"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/processor"
)

// RawEvent is the YAML-friendly mirror of keycode.Event: scenario
// files name keys and kinds as strings, not numeric codes.
type RawEvent struct {
	Key         string `yaml:"key"`
	Kind        string `yaml:"kind"`
	TimestampUs uint64 `yaml:"timestamp_us"`
}

// ClockStep advances the virtual clock to TimestampUs before the next
// event is processed, independent of any event arriving at that time —
// this is how a scenario exercises tap-hold timeouts with no matching
// key event.
type ClockStep struct {
	TimestampUs uint64 `yaml:"timestamp_us"`
}

// Scenario is the deterministic replay input: a seed (recorded for the
// report but not consumed by anything in the core, since the Processor
// itself has no randomness), the input events, an optional expected
// output trace, and an optional virtual-clock advancement plan.
type Scenario struct {
	Seed      uint64      `yaml:"seed"`
	Events    []RawEvent  `yaml:"events"`
	Expected  []RawEvent  `yaml:"expected,omitempty"`
	ClockPlan []ClockStep `yaml:"clock,omitempty"`
}

func toEvent(r RawEvent) (keycode.Event, error) {
	key, ok := keycode.Lookup(r.Key)
	if !ok {
		return keycode.Event{}, fmt.Errorf("simulator: unknown key %q", r.Key)
	}
	var kind keycode.EventType
	switch r.Kind {
	case "Press":
		kind = keycode.Press
	case "Release":
		kind = keycode.Release
	default:
		return keycode.Event{}, fmt.Errorf("simulator: unknown event kind %q", r.Kind)
	}
	return keycode.New(key, kind, r.TimestampUs), nil
}

// Histogram holds latency statistics over a run's per-event processing
// times, in microseconds. Built once from a fixed, known-size sample
// slice (a scenario's event count is known up front), so there is no
// need for a streaming reservoir.
type Histogram struct {
	Min, Max       uint64
	Avg            float64
	P50, P95, P99  uint64
}

func buildHistogram(samples []uint64) Histogram {
	if len(samples) == 0 {
		return Histogram{}
	}
	sorted := make([]uint64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum uint64
	for _, s := range sorted {
		sum += s
	}
	pick := func(pct float64) uint64 {
		idx := int(pct * float64(len(sorted)-1))
		return sorted[idx]
	}
	return Histogram{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: float64(sum) / float64(len(sorted)),
		P50: pick(0.50),
		P95: pick(0.95),
		P99: pick(0.99),
	}
}

// Divergence describes the first point at which the actual output
// trace disagreed with a scenario's expected trace.
type Divergence struct {
	Index    int
	Expected keycode.Event
	Actual   keycode.Event
}

// Report is the result of one Run. Every field except RunID is
// byte-identical across repeated runs given the same scenario, seed,
// and artifact (spec.md section 4.8), since nothing else here touches
// the wall clock or any other source of nondeterminism. RunID comes
// from Run's newUUID argument; with the default generator (uuid.New)
// it differs from run to run.
type Report struct {
	RunID      string
	Seed       uint64
	Trace      []keycode.Event
	Histogram  Histogram
	Divergence *Divergence
}

// Run replays scenario against proc, a Processor already built from a
// compiled artifact for one device, and returns the deterministic
// Report. newUUID lets callers (and tests) supply a deterministic
// correlation ID generator; when it is nil, Run uses uuid.New, which
// reads system randomness.
func Run(scenario Scenario, proc *processor.Processor, newUUID func() string) (*Report, error) {
	if newUUID == nil {
		newUUID = func() string { return uuid.New().String() }
	}

	events := make([]keycode.Event, 0, len(scenario.Events))
	for _, r := range scenario.Events {
		ev, err := toEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	expected := make([]keycode.Event, 0, len(scenario.Expected))
	for _, r := range scenario.Expected {
		ev, err := toEvent(r)
		if err != nil {
			return nil, err
		}
		expected = append(expected, ev)
	}

	clockIdx := 0
	trace := make([]keycode.Event, 0, len(events))
	samples := make([]uint64, 0, len(events))
	var buf keycode.Buffer

	advanceClockTo := func(tsUs uint64) {
		for clockIdx < len(scenario.ClockPlan) && scenario.ClockPlan[clockIdx].TimestampUs <= tsUs {
			buf.Reset()
			proc.Tick(scenario.ClockPlan[clockIdx].TimestampUs, &buf)
			trace = append(trace, buf.Events()...)
			clockIdx++
		}
	}

	for _, ev := range events {
		advanceClockTo(ev.TimestampUs)

		buf.Reset()
		// Process's own error returns (CapacityExceeded,
		// InvariantViolation) are the non-fatal kinds spec.md section
		// 7 describes: the Processor has already demoted/logged and
		// produced its best-effort output before returning them, so
		// the replay keeps going rather than aborting the run.
		_ = proc.Process(ev, &buf)
		trace = append(trace, buf.Events()...)
		samples = append(samples, estimateCostUs(buf.Len()))
	}
	for clockIdx < len(scenario.ClockPlan) {
		buf.Reset()
		proc.Tick(scenario.ClockPlan[clockIdx].TimestampUs, &buf)
		trace = append(trace, buf.Events()...)
		clockIdx++
	}

	report := &Report{
		RunID:     newUUID(),
		Seed:      scenario.Seed,
		Trace:     trace,
		Histogram: buildHistogram(samples),
	}
	if len(scenario.Expected) > 0 {
		report.Divergence = diff(trace, expected)
	}
	return report, nil
}

// baseCostUs and perWriteCostUs model the fixed and variable per-event
// cost named in spec.md's latency budget (one bucket lookup, bounded
// condition evaluation, up to eight output writes). The simulator
// never reads a wall clock, so this is a deterministic cost estimate
// rather than a measurement — the only way the histogram in Report
// can be byte-identical across repeated runs of the same scenario.
const (
	baseCostUs     = 8
	perWriteCostUs = 3
)

func estimateCostUs(outputs int) uint64 {
	return baseCostUs + uint64(outputs)*perWriteCostUs
}

func diff(actual, expected []keycode.Event) *Divergence {
	n := len(actual)
	if len(expected) < n {
		n = len(expected)
	}
	for i := 0; i < n; i++ {
		if actual[i] != expected[i] {
			return &Divergence{Index: i, Expected: expected[i], Actual: actual[i]}
		}
	}
	if len(actual) != len(expected) {
		idx := n
		var exp, act keycode.Event
		if idx < len(expected) {
			exp = expected[idx]
		}
		if idx < len(actual) {
			act = actual[idx]
		}
		return &Divergence{Index: idx, Expected: exp, Actual: act}
	}
	return nil
}

// LogDivergence emits a single ERROR record summarizing the first
// divergence to sink, for CLI/serve callers that want the mismatch to
// flow through the same observability path as everything else.
func LogDivergence(sink observability.Sink, deviceID string, d *Divergence) {
	if d == nil {
		return
	}
	sink.Emit(observability.Record{
		Level:    observability.LevelError,
		Kind:     observability.KindInvariantViolation,
		DeviceID: deviceID,
		Detail: fmt.Sprintf("divergence at index %d: expected %s, got %s",
			d.Index, d.Expected, d.Actual),
	})
}
