package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keyrx/keyrx/artifact"
	"github.com/keyrx/keyrx/mapping"
	"github.com/keyrx/keyrx/observability"
	"github.com/keyrx/keyrx/simulator"
)

type simulateCommand struct {
	artifactPath string
	scenarioPath string
	deviceID     string
	cmd          *cobra.Command
}

func newSimulateCommand() *cobra.Command {
	sc := &simulateCommand{}
	sc.cmd = &cobra.Command{
		Use:   "simulate",
		Short: "Replay a recorded scenario against a compiled artifact",
		RunE:  sc.Execute,
	}
	sc.cmd.Flags().StringVar(&sc.artifactPath, "artifact", "", "compiled artifact path (required)")
	sc.cmd.Flags().StringVar(&sc.scenarioPath, "scenario", "", "scenario YAML path (required)")
	sc.cmd.Flags().StringVar(&sc.deviceID, "device", mapping.GlobalDeviceID, "device id within the artifact to simulate")
	_ = sc.cmd.MarkFlagRequired("artifact")
	_ = sc.cmd.MarkFlagRequired("scenario")
	return sc.cmd
}

func (s *simulateCommand) Execute(_ *cobra.Command, _ []string) error {
	sealed, err := os.ReadFile(s.artifactPath)
	if err != nil {
		return fmt.Errorf("keyrx: reading %s: %w", s.artifactPath, err)
	}
	root, err := artifact.Decode(sealed, artifact.DecodeOptions{})
	if err != nil {
		return fmt.Errorf("keyrx: loading %s: %w", s.artifactPath, err)
	}

	scenarioBytes, err := os.ReadFile(s.scenarioPath)
	if err != nil {
		return fmt.Errorf("keyrx: reading %s: %w", s.scenarioPath, err)
	}
	var scenario simulator.Scenario
	if err := yaml.Unmarshal(scenarioBytes, &scenario); err != nil {
		return fmt.Errorf("keyrx: parsing %s: %w", s.scenarioPath, err)
	}

	entries, err := entriesForDeviceID(root, s.deviceID)
	if err != nil {
		return err
	}
	sink := &observability.CollectingSink{}
	proc, err := newProcessor(s.deviceID, entries, sink)
	if err != nil {
		return err
	}

	report, err := simulator.Run(scenario, proc, nil)
	if err != nil {
		return fmt.Errorf("keyrx: running scenario: %w", err)
	}

	fmt.Printf("run %s (seed %d): %d output events\n", report.RunID, report.Seed, len(report.Trace))
	for _, ev := range report.Trace {
		fmt.Println(" ", ev)
	}
	fmt.Printf("latency(us): min=%d avg=%.1f p50=%d p95=%d p99=%d max=%d\n",
		report.Histogram.Min, report.Histogram.Avg,
		report.Histogram.P50, report.Histogram.P95, report.Histogram.P99, report.Histogram.Max)

	if report.Divergence != nil {
		simulator.LogDivergence(sink, s.deviceID, report.Divergence)
		fmt.Printf("DIVERGED at index %d: expected %s, got %s\n",
			report.Divergence.Index, report.Divergence.Expected, report.Divergence.Actual)
		return fmt.Errorf("keyrx: scenario diverged from its expected trace")
	}
	return nil
}
