package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/AlexsanderHamir/entitypool/facade"
	"github.com/AlexsanderHamir/entitypool/migration"
	"github.com/AlexsanderHamir/entitypool/pool"
	"github.com/AlexsanderHamir/entitypool/registry"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// snapshot is the structured form of the report command's output.
type snapshot struct {
	Session        string                       `json:"session" yaml:"session"`
	Implementation string                       `json:"implementation" yaml:"implementation"`
	Effective      string                       `json:"effective" yaml:"effective"`
	ABTesting      bool                         `json:"ab_testing" yaml:"ab_testing"`
	ABRatio        float64                      `json:"ab_ratio" yaml:"ab_ratio"`
	State          string                       `json:"state" yaml:"state"`
	Workload       workloadResult               `json:"workload" yaml:"workload"`
	Migration      migration.Stats              `json:"migration" yaml:"migration"`
	Subsystem      registry.SubsystemStats      `json:"subsystem" yaml:"subsystem"`
	Pools          map[string][]pool.Statistics `json:"pools" yaml:"pools"`
	Hotspots       []registry.Hotspot           `json:"hotspots" yaml:"hotspots"`
}

func takeSnapshot(f *facade.Facade, res workloadResult) snapshot {
	m := f.Manager()
	original, simplified := m.Registries()
	enabled, ratio := m.ABTesting()

	return snapshot{
		Session:        m.SessionID(),
		Implementation: m.CurrentImplementation().String(),
		Effective:      m.EffectiveImplementation().String(),
		ABTesting:      enabled,
		ABRatio:        ratio,
		State:          m.State().String(),
		Workload:       res,
		Migration:      m.Stats(),
		Subsystem:      f.Original().SubsystemStats(),
		Pools: map[string][]pool.Statistics{
			original.Name():   original.AllStats(),
			simplified.Name(): simplified.AllStats(),
		},
		Hotspots: f.Hotspots(registry.DefaultHotspotThresholds()),
	}
}

func writeSnapshot(w io.Writer, f *facade.Facade, s snapshot, format string) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case "text", "":
		fmt.Fprintln(w, f.ConfigurationSummary())
		fmt.Fprintln(w, f.MigrationReport())
		fmt.Fprintln(w, f.Original().PerformanceReport())
		fmt.Fprintln(w, f.DebugSummary(registry.DefaultHotspotThresholds()))
		for _, st := range f.AllStats() {
			fmt.Fprintln(w, st.String())
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q (want text, json or yaml)", format)
	}
}

func (a *app) reportCmd() *cobra.Command {
	var (
		format string
		w      workload
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Bootstrap the pools, run a short workload and print statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(format) {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown report format %q (want text, json or yaml)", format)
			}
			if !cmd.Flags().Changed("batch") {
				w.BatchSize = a.cfg.Simulation.BatchSize
			}

			f, types, err := a.startEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := runWorkload(cmd.Context(), f, types, w, a.log)
			if err != nil {
				return fmt.Errorf("workload failed: %w", err)
			}

			return writeSnapshot(cmd.OutOrStdout(), f, takeSnapshot(f, res), format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	cmd.Flags().IntVarP(&w.Workers, "workers", "w", 2, "Number of concurrent workers")
	cmd.Flags().IntVarP(&w.Iterations, "iterations", "n", 100, "Acquire/release rounds per worker before reporting")
	cmd.Flags().IntVar(&w.BatchSize, "batch", 8, "Maximum instances acquired per round")

	return cmd
}
