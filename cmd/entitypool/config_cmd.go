package main

import (
	"fmt"

	"github.com/AlexsanderHamir/entitypool/config"
	"github.com/AlexsanderHamir/entitypool/pool"

	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}

	var (
		output string
		force  bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "-" {
				return config.Write(cmd.OutOrStdout(), config.Example())
			}
			if err := config.WriteFile(output, config.Example(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "entitypool.yaml", "Destination file, or - for stdout")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Write(cmd.OutOrStdout(), *a.cfg)
		},
	}

	templatesCmd := &cobra.Command{
		Use:   "templates",
		Short: "List the pool presets usable as a pool template",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range pool.Presets() {
				b, _ := pool.NewPresetBuilder(name)
				cfg, err := b.Build()
				if err != nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s initial_size=%d hard_limit=%d prewarm_on_register=%t verbose=%t\n",
					name, cfg.InitialSize(), cfg.HardLimit(), cfg.PrewarmOnRegister(), cfg.Verbose())
			}
		},
	}

	cmd.AddCommand(initCmd, showCmd, templatesCmd)
	return cmd
}
