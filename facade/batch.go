package facade

import (
	"context"
	"fmt"

	"github.com/AlexsanderHamir/entitypool/config"
	"github.com/AlexsanderHamir/entitypool/entity"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AcquireBatch acquires one instance of t per placement. Every slot of the
// result holds a usable handle.
func (f *Facade) AcquireBatch(t entity.TypeKey, placements []entity.Placement) []entity.Handle {
	out := make([]entity.Handle, len(placements))
	for i, pl := range placements {
		out[i] = f.Acquire(t, pl)
	}
	return out
}

// ReleaseBatch releases every handle and returns how many were accepted.
func (f *Facade) ReleaseBatch(handles []entity.Handle) int {
	released := 0
	for _, h := range handles {
		if f.Release(h) {
			released++
		}
	}
	return released
}

// Bootstrap registers every pool entry on both registries and prewarms the ones
// that do not prewarm on registration. Pools are set up concurrently. The
// emergency reserve is primed first so the last fallback level never has
// to create under load.
func (f *Facade) Bootstrap(ctx context.Context, specs []config.PoolSpec) error {
	f.reserve.Prime(f.factory)

	g, ctx := errgroup.WithContext(ctx)
	for _, ps := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			cfg, err := ps.PoolConfig()
			if err != nil {
				return fmt.Errorf("pool %s: %w", ps.Type, err)
			}

			t := entity.TypeKey(ps.Type)
			if !f.RegisterTypeWithConfig(t, cfg) {
				return fmt.Errorf("%w: %s", ErrRegister, ps.Type)
			}

			created := 0
			if !cfg.PrewarmOnRegister() && cfg.InitialSize() > 0 {
				created = f.Prewarm(t, cfg.InitialSize())
			}

			f.logger.Info("pool bootstrapped",
				zap.Stringer("type", t),
				zap.Int("initial_size", cfg.InitialSize()),
				zap.Int("hard_limit", cfg.HardLimit()),
				zap.Int("prewarmed", created))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	return nil
}
