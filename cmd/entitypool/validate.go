package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("implementation consistency validation failed")

func (a *app) validateCmd() *cobra.Command {
	var samples, iterations int

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare the original and simplified registries",
		Long: `Run paired consistency probes and timed acquire/release comparisons for
every configured pool type. Exits non-zero when any type falls below the
configured pass threshold.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("samples") {
				samples = a.cfg.Migration.ValidationSamples
			}
			if !cmd.Flags().Changed("iterations") {
				iterations = a.cfg.Migration.CompareIterations
			}

			f, types, err := a.startEngine(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer f.Close()

			m := f.Manager()
			out := cmd.OutOrStdout()
			failed := 0

			fmt.Fprintln(out, "========== Consistency Validation ==========")
			for _, t := range types {
				rep := m.CheckConsistency(t, samples)
				perf := m.ComparePerformance(t, iterations)

				status := "PASS"
				if !rep.OK {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(out, "%-4s %-24s pass=%6.2f%% (%d/%d)  improvement=%7.2f%%\n",
					status, t, rep.PassRate*100, rep.Passed, rep.Samples, perf.ImprovementPercentage)
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, m.PerformanceReport())

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d types", errValidationFailed, failed, len(types))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&samples, "samples", 100, "Paired probes per type")
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "Timed round trips per type and implementation")

	return cmd
}
