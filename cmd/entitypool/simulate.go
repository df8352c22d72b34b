package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/AlexsanderHamir/entitypool/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) simulateCmd() *cobra.Command {
	var (
		w           workload
		metricsAddr string
		profile     bool
		hold        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic acquire/release workload",
		Long: `Run a synthetic acquire/release workload against the configured pools.

Workers pick a random pool type, acquire a batch of instances and release it
again. With a metrics address the Prometheus endpoint is served on /metrics
for the duration of the run (plus --hold), and --pprof adds /debug/pprof.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("workers") {
				w.Workers = a.cfg.Simulation.Workers
			}
			if !flags.Changed("iterations") {
				w.Iterations = a.cfg.Simulation.Iterations
			}
			if !flags.Changed("batch") {
				w.BatchSize = a.cfg.Simulation.BatchSize
			}
			if !flags.Changed("seed") {
				w.Seed = uint64(a.cfg.Simulation.Seed)
			}
			if !flags.Changed("metrics-addr") && a.cfg.Metrics.Enabled {
				metricsAddr = a.cfg.Metrics.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return a.simulate(ctx, cmd, w, metricsAddr, profile, hold)
		},
	}

	cmd.Flags().IntVarP(&w.Workers, "workers", "w", 4, "Number of concurrent workers")
	cmd.Flags().IntVarP(&w.Iterations, "iterations", "n", 1000, "Acquire/release rounds per worker")
	cmd.Flags().IntVar(&w.BatchSize, "batch", 8, "Maximum instances acquired per round")
	cmd.Flags().Uint64Var(&w.Seed, "seed", 0, "Seed for the workers' type and batch size choices")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&profile, "pprof", false, "Also serve /debug/pprof on the metrics address")
	cmd.Flags().DurationVar(&hold, "hold", 0, "Keep serving metrics this long after the workload finishes")

	return cmd
}

func (a *app) simulate(ctx context.Context, cmd *cobra.Command, w workload, metricsAddr string, profile bool, hold time.Duration) error {
	var collector *metrics.Collector
	if metricsAddr != "" {
		collector = metrics.NewCollector(metrics.DefaultNamespace, a.cfg.Metrics.Runtime)
		srv := startMetricsServer(metricsAddr, collector, profile, a.log)
		defer shutdownServer(srv, a.log)
	}

	f, types, err := a.startEngine(ctx, collector)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := runWorkload(ctx, f, types, w, a.log)
	f.PublishMetrics()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("workload failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Acquired %d, released %d in %s\n\n", res.Acquired, res.Released, res.Duration.Round(time.Millisecond))
	fmt.Fprintln(out, f.MigrationReport())
	fmt.Fprintln(out, f.Original().PerformanceReport())
	for _, s := range f.AllStats() {
		fmt.Fprintln(out, s.String())
	}

	if collector != nil && hold > 0 {
		a.log.Info("holding metrics endpoint open", zap.Duration("hold", hold))
		select {
		case <-time.After(hold):
		case <-ctx.Done():
		}
	}
	return nil
}

func startMetricsServer(addr string, c *metrics.Collector, profile bool, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	if profile {
		runtime.SetMutexProfileFraction(1)
		runtime.SetBlockProfileRate(1)

		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", zap.String("addr", addr), zap.Bool("pprof", profile))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func shutdownServer(srv *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
}
