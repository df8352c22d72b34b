package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/AlexsanderHamir/entitypool/config"
	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/facade"
	"github.com/AlexsanderHamir/entitypool/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// poolSpecs returns the configured pools, or the example set when the
// configuration declares none.
func (a *app) poolSpecs() []config.PoolSpec {
	if len(a.cfg.Pools) > 0 {
		return a.cfg.Pools
	}
	a.log.Info("no pools configured, using the example pool set")
	return config.Example().Pools
}

// startEngine builds an arena for the pool types, the facade over it, and
// bootstraps every pool.
func (a *app) startEngine(ctx context.Context, collector *metrics.Collector) (*facade.Facade, []entity.TypeKey, error) {
	specs := a.poolSpecs()

	arena := entity.NewArena()
	types := make([]entity.TypeKey, 0, len(specs))
	for _, s := range specs {
		t := entity.TypeKey(s.Type)
		if err := arena.Register(t, nil); err != nil {
			return nil, nil, fmt.Errorf("pool %q: %w", s.Type, err)
		}
		types = append(types, t)
	}

	opts := []facade.Option{facade.WithLogger(a.log.Named("engine"))}
	if collector != nil {
		opts = append(opts, facade.WithMetrics(collector))
	}

	f, err := facade.FromConfig(arena, a.cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Bootstrap(ctx, specs); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, types, nil
}

type workload struct {
	Workers    int
	Iterations int
	BatchSize  int
	Seed       uint64
}

func (w workload) normalized() workload {
	w.Workers = max(w.Workers, 1)
	w.Iterations = max(w.Iterations, 0)
	w.BatchSize = max(w.BatchSize, 1)
	return w
}

type workloadResult struct {
	Acquired uint64        `json:"acquired" yaml:"acquired"`
	Released uint64        `json:"released" yaml:"released"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// runWorkload spawns the workers. Each iteration acquires a random-sized
// batch of one random type and releases it again.
func runWorkload(ctx context.Context, f *facade.Facade, types []entity.TypeKey, w workload, log *zap.Logger) (workloadResult, error) {
	w = w.normalized()
	if len(types) == 0 {
		return workloadResult{}, nil
	}

	var acquired, released atomic.Uint64
	start := time.Now()

	log.Info("workload starting",
		zap.Int("workers", w.Workers),
		zap.Int("iterations", w.Iterations),
		zap.Int("batch_size", w.BatchSize))

	g, ctx := errgroup.WithContext(ctx)
	for id := range w.Workers {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(w.Seed, uint64(id)))
			placements := make([]entity.Placement, 0, w.BatchSize)

			for i := range w.Iterations {
				if err := ctx.Err(); err != nil {
					return err
				}

				t := types[rng.IntN(len(types))]
				placements = placements[:0]
				for j := range 1 + rng.IntN(w.BatchSize) {
					placements = append(placements, entity.At(float64(i), float64(j), float64(id)))
				}

				handles := f.AcquireBatch(t, placements)
				acquired.Add(uint64(len(handles)))
				released.Add(uint64(f.ReleaseBatch(handles)))
			}
			return nil
		})
	}

	err := g.Wait()
	res := workloadResult{
		Acquired: acquired.Load(),
		Released: released.Load(),
		Duration: time.Since(start),
	}

	log.Info("workload finished",
		zap.Uint64("acquired", res.Acquired),
		zap.Uint64("released", res.Released),
		zap.Duration("duration", res.Duration))

	return res, err
}
