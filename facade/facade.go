// Package facade is the caller-facing entry point to the entity pools.
//
// A Facade owns both registries and the migration manager that picks
// between them. Acquire never fails; Release finds the registry that issued
// the handle regardless of the current selection, so switching
// implementations mid-flight does not strand outstanding instances.
package facade

import (
	"errors"
	"fmt"

	"github.com/AlexsanderHamir/entitypool/config"
	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/logger"
	"github.com/AlexsanderHamir/entitypool/metrics"
	"github.com/AlexsanderHamir/entitypool/migration"
	"github.com/AlexsanderHamir/entitypool/pool"
	"github.com/AlexsanderHamir/entitypool/registry"

	"go.uber.org/zap"
)

var (
	ErrNilFactory = errors.New("facade: factory is required")
	ErrRegister   = errors.New("facade: pool registration failed")
)

type Facade struct {
	factory    entity.Factory
	manager    *migration.Manager
	original   *registry.Original
	simplified *registry.Simplified
	reserve    *registry.EmergencyReserve
	collector  *metrics.Collector
	logger     *zap.Logger
}

type options struct {
	logger     *zap.Logger
	collector  *metrics.Collector
	reserve    *registry.EmergencyReserve
	managerOps []migration.Option
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics reports registry and migration events to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

func WithEmergencyReserve(e *registry.EmergencyReserve) Option {
	return func(o *options) {
		if e != nil {
			o.reserve = e
		}
	}
}

// WithManagerOptions forwards options to the migration manager.
func WithManagerOptions(opts ...migration.Option) Option {
	return func(o *options) {
		o.managerOps = append(o.managerOps, opts...)
	}
}

// New wires both registries over factory, builds and initializes the
// migration manager, and returns the facade.
func New(factory entity.Factory, opts ...Option) (*Facade, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	o := options{logger: logger.Named("facade")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reserve == nil {
		o.reserve = registry.SharedEmergencyReserve(factory)
	}

	regOpts := []registry.Option{
		registry.WithLogger(o.logger.Named("registry")),
		registry.WithEmergencyReserve(o.reserve),
	}
	mgrOpts := []migration.Option{migration.WithLogger(o.logger.Named("migration"))}
	if o.collector != nil {
		regOpts = append(regOpts, registry.WithObserver(o.collector))
		mgrOpts = append(mgrOpts, migration.WithObserver(o.collector))
	}
	mgrOpts = append(mgrOpts, o.managerOps...)

	original := registry.NewOriginal(factory, regOpts...)
	simplified := registry.NewSimplified(factory, regOpts...)

	manager, err := migration.New(original, simplified, mgrOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration manager: %w", err)
	}
	manager.Initialize()

	return &Facade{
		factory:    factory,
		manager:    manager,
		original:   original,
		simplified: simplified,
		reserve:    o.reserve,
		collector:  o.collector,
		logger:     o.logger,
	}, nil
}

// FromConfig is New with the migration section of cfg applied. Pools are
// not registered; call Bootstrap with cfg.Pools for that.
func FromConfig(factory entity.Factory, cfg *config.Config, opts ...Option) (*Facade, error) {
	opts = append(opts, WithManagerOptions(
		migration.WithInitialImplementation(cfg.Implementation()),
		migration.WithPassThreshold(cfg.Migration.PassThreshold),
	))

	f, err := New(factory, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Migration.ABTesting {
		f.manager.EnableABTesting(cfg.Migration.ABRatio)
	}
	return f, nil
}

// Close logs the final migration report and flushes the logger.
func (f *Facade) Close() {
	f.manager.Shutdown()
	_ = f.logger.Sync()
}

func (f *Facade) Manager() *migration.Manager {
	return f.manager
}

// Original exposes the original registry for its subsystem statistics.
func (f *Facade) Original() *registry.Original {
	return f.original
}

// RegisterType registers t with the given sizes on both registries.
func (f *Facade) RegisterType(t entity.TypeKey, initialSize, hardLimit int) bool {
	cfg, err := pool.NewConfig(initialSize, hardLimit)
	if err != nil {
		f.logger.Warn("rejected pool configuration",
			zap.Stringer("type", t),
			zap.Int("initial_size", initialSize),
			zap.Int("hard_limit", hardLimit),
			zap.Error(err))
		return false
	}
	return f.RegisterTypeWithConfig(t, cfg)
}

// RegisterTypeWithConfig registers t on both registries. It reports true
// only if both accepted the registration.
func (f *Facade) RegisterTypeWithConfig(t entity.TypeKey, cfg *pool.Config) bool {
	okOriginal := f.original.RegisterType(t, cfg)
	okSimplified := f.simplified.RegisterType(t, cfg)
	return okOriginal && okSimplified
}

// Acquire returns an instance of t from the selected registry.
func (f *Facade) Acquire(t entity.TypeKey, pl entity.Placement) entity.Handle {
	return f.AcquireResult(t, pl).Handle
}

// AcquireResult is Acquire that also reports the fallback level used.
func (f *Facade) AcquireResult(t entity.TypeKey, pl entity.Placement) registry.Result {
	_, r := f.manager.Select()
	return r.Acquire(t, pl)
}

// Release returns h to the registry that issued it. Unknown handles report
// false and change nothing.
func (f *Facade) Release(h entity.Handle) bool {
	if r := f.owner(h); r != nil {
		return r.Release(h)
	}
	f.logger.Debug("release of unknown handle", zap.Stringer("handle", h))
	return false
}

func (f *Facade) owner(h entity.Handle) registry.Registry {
	switch {
	case h.IsZero():
		return nil
	case f.original.Owns(h):
		return f.original
	case f.simplified.Owns(h):
		return f.simplified
	default:
		return nil
	}
}

// IsPooled reports whether h is currently outstanding from either registry.
func (f *Facade) IsPooled(h entity.Handle) bool {
	return f.owner(h) != nil
}

// Prewarm prewarms t on both registries and returns the count created by
// the one currently in effect.
func (f *Facade) Prewarm(t entity.TypeKey, count int) int {
	nOriginal := f.original.Prewarm(t, count)
	nSimplified := f.simplified.Prewarm(t, count)
	if f.manager.EffectiveImplementation() == migration.Simplified {
		return nSimplified
	}
	return nOriginal
}

// Stats reads the pool statistics of the registry currently in effect.
func (f *Facade) Stats(t entity.TypeKey) (pool.Statistics, bool) {
	return f.effective().Stats(t)
}

func (f *Facade) AllStats() []pool.Statistics {
	return f.effective().AllStats()
}

func (f *Facade) IsTypeRegistered(t entity.TypeKey) bool {
	return f.effective().IsTypeRegistered(t)
}

func (f *Facade) ClearPool(t entity.TypeKey) {
	f.original.ClearPool(t)
	f.simplified.ClearPool(t)
}

func (f *Facade) ClearAll() {
	f.original.ClearAll()
	f.simplified.ClearAll()
}

// Hotspots flags pools of the registry in effect that need tuning.
func (f *Facade) Hotspots(th registry.HotspotThresholds) []registry.Hotspot {
	return registry.DetectHotspots(f.AllStats(), th)
}

func (f *Facade) DebugSummary(th registry.HotspotThresholds) string {
	return registry.DebugSummary(f.effective(), th)
}

func (f *Facade) effective() registry.Registry {
	return f.manager.Registry(f.manager.EffectiveImplementation())
}

// PublishMetrics pushes a pool statistics snapshot of both registries to
// the metrics collector, if one is attached.
func (f *Facade) PublishMetrics() {
	if f.collector == nil {
		return
	}
	f.collector.ObservePools(f.original.Name(), f.original.AllStats())
	f.collector.ObservePools(f.simplified.Name(), f.simplified.AllStats())
}
