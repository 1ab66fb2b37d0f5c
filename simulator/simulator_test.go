package simulator

import (
	"testing"

	"github.com/keyrx/keyrx/lookup"
	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/processor"
)

func newTestProcessor(t *testing.T, entries []mapping.Entry) *processor.Processor {
	t.Helper()
	table, err := lookup.Build(entries)
	if err != nil {
		t.Fatalf("lookup.Build: %v", err)
	}
	return processor.New("dev0", table, observability.NopSink{})
}

func TestRunSimpleMapping(t *testing.T) {
	entries := []mapping.Entry{
		{Key: 1, Mapping: mapping.Simple{To: 2}}, // A -> B
	}
	proc := newTestProcessor(t, entries)
	scenario := Scenario{
		Seed: 42,
		Events: []RawEvent{
			{Key: "A", Kind: "Press", TimestampUs: 1000},
			{Key: "A", Kind: "Release", TimestampUs: 1500},
		},
	}
	report, err := Run(scenario, proc, func() string { return "fixed-id" })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.RunID != "fixed-id" {
		t.Fatalf("unexpected run id: %s", report.RunID)
	}
	if len(report.Trace) != 2 {
		t.Fatalf("unexpected trace: %#v", report.Trace)
	}
	if report.Trace[0].Key != 2 || report.Trace[1].Key != 2 {
		t.Fatalf("expected both events remapped to B: %#v", report.Trace)
	}
}

func TestRunByteIdenticalAcrossRepeatedRuns(t *testing.T) {
	entries := []mapping.Entry{
		{Key: 1, Mapping: mapping.Simple{To: 2}},
	}
	scenario := Scenario{
		Seed: 7,
		Events: []RawEvent{
			{Key: "A", Kind: "Press", TimestampUs: 1000},
			{Key: "A", Kind: "Release", TimestampUs: 2000},
		},
	}
	fixedID := func() string { return "same-id" }

	proc1 := newTestProcessor(t, entries)
	report1, err := Run(scenario, proc1, fixedID)
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	proc2 := newTestProcessor(t, entries)
	report2, err := Run(scenario, proc2, fixedID)
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	if report1.Histogram != report2.Histogram {
		t.Fatalf("expected identical histograms: %#v vs %#v", report1.Histogram, report2.Histogram)
	}
	if len(report1.Trace) != len(report2.Trace) {
		t.Fatalf("expected identical trace lengths")
	}
	for i := range report1.Trace {
		if report1.Trace[i] != report2.Trace[i] {
			t.Fatalf("trace diverged at %d: %#v vs %#v", i, report1.Trace[i], report2.Trace[i])
		}
	}
}

func TestRunDivergenceReported(t *testing.T) {
	entries := []mapping.Entry{
		{Key: 1, Mapping: mapping.Simple{To: 2}},
	}
	proc := newTestProcessor(t, entries)
	scenario := Scenario{
		Events: []RawEvent{
			{Key: "A", Kind: "Press", TimestampUs: 1000},
		},
		Expected: []RawEvent{
			{Key: "A", Kind: "Press", TimestampUs: 1000}, // actual output is B (remapped); A != B
		},
	}
	report, err := Run(scenario, proc, func() string { return "id" })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Divergence == nil {
		t.Fatal("expected a divergence")
	}
	if report.Divergence.Index != 0 {
		t.Fatalf("unexpected divergence index: %d", report.Divergence.Index)
	}
}

func TestRunNoDivergenceWhenMatching(t *testing.T) {
	entries := []mapping.Entry{
		{Key: 1, Mapping: mapping.Simple{To: 2}},
	}
	proc := newTestProcessor(t, entries)
	scenario := Scenario{
		Events: []RawEvent{
			{Key: "A", Kind: "Press", TimestampUs: 1000},
		},
		Expected: []RawEvent{
			{Key: "B", Kind: "Press", TimestampUs: 1000},
		},
	}
	report, err := Run(scenario, proc, func() string { return "id" })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Divergence != nil {
		t.Fatalf("unexpected divergence: %#v", report.Divergence)
	}
}

func TestRunClockPlanDrivesTickIndependentlyOfEvents(t *testing.T) {
	// A is a tap-hold whose hold sets modifier 5; C dispatches to D only
	// while modifier 5 is active. The clock plan commits A's hold well
	// before C is ever pressed, with no event of A's own in between —
	// this is what "tick is the sole time source, independent of
	// events" (spec.md section 5) actually buys a caller.
	entries := []mapping.Entry{
		{Key: 1, Mapping: mapping.TapHold{Tap: 2, HoldMod: 5, ThresholdMs: 200}},
		{Key: 3, Mapping: mapping.Conditional{
			Condition: mapping.ModifierActive{ID: 5},
			Then:      mapping.Simple{To: 4},
		}},
	}
	proc := newTestProcessor(t, entries)
	scenario := Scenario{
		Events: []RawEvent{
			{Key: "A", Kind: "Press", TimestampUs: 1000},
			{Key: "C", Kind: "Press", TimestampUs: 300000},
		},
		ClockPlan: []ClockStep{
			{TimestampUs: 1000},
			{TimestampUs: 250000},
		},
	}
	report, err := Run(scenario, proc, func() string { return "id" })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Trace) != 1 || report.Trace[0].Key != 4 {
		t.Fatalf("expected C to resolve to D once the hold committed: %#v", report.Trace)
	}
}

func TestRunUnknownKeyErrors(t *testing.T) {
	proc := newTestProcessor(t, nil)
	scenario := Scenario{
		Events: []RawEvent{{Key: "NOT_A_KEY", Kind: "Press", TimestampUs: 1}},
	}
	if _, err := Run(scenario, proc, func() string { return "id" }); err == nil {
		t.Fatal("expected an error for an unknown key")
	}
}

func TestLogDivergenceNilIsNoop(t *testing.T) {
	sink := &observability.CollectingSink{}
	LogDivergence(sink, "dev0", nil)
	if len(sink.Records) != 0 {
		t.Fatalf("expected no records: %#v", sink.Records)
	}
}

func TestLogDivergenceEmitsRecord(t *testing.T) {
	sink := &observability.CollectingSink{}
	LogDivergence(sink, "dev0", &Divergence{Index: 3})
	if len(sink.Records) != 1 {
		t.Fatalf("expected one record: %#v", sink.Records)
	}
	if sink.Records[0].Kind != observability.KindInvariantViolation {
		t.Fatalf("unexpected kind: %v", sink.Records[0].Kind)
	}
}
