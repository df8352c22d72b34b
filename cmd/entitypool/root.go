package main

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"

	"github.com/AlexsanderHamir/entitypool/config"
	"github.com/AlexsanderHamir/entitypool/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

type app struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "entitypool",
		Short: "Entity pool engine with staged migration between registry implementations",
		Long: `entitypool drives the entity pool engine from the command line.

It can run a synthetic acquire/release workload, validate that the original
and simplified registries behave the same, and emit statistics reports.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Dotenv file loaded before the configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entitypool %s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(a.simulateCmd(), a.validateCmd(), a.reportCmd(), a.configCmd())

	return root
}

// setup loads the environment, the configuration and the logger. Logs go
// to stderr unless configured otherwise so reports on stdout stay clean.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}

	l, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	logger.Set(l)

	a.cfg = cfg
	a.log = l.Named("cli")
	return nil
}
