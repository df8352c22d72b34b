package registry

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/pool"

	"go.uber.org/zap"
)

// OriginalName is the Name of the Original implementation.
const OriginalName = "original"

// SubsystemStats are registry-wide counters kept by Original.
type SubsystemStats struct {
	AcquireCalls       uint64 `json:"acquire_calls" yaml:"acquire_calls"`
	ReleaseCalls       uint64 `json:"release_calls" yaml:"release_calls"`
	PoolHits           uint64 `json:"pool_hits" yaml:"pool_hits"`
	DirectCreations    uint64 `json:"direct_creations" yaml:"direct_creations"`
	DefaultFallbacks   uint64 `json:"default_fallbacks" yaml:"default_fallbacks"`
	EmergencyFallbacks uint64 `json:"emergency_fallbacks" yaml:"emergency_fallbacks"`
	FailedReleases     uint64 `json:"failed_releases" yaml:"failed_releases"`
	PoolsCreated       uint64 `json:"pools_created" yaml:"pools_created"`
	PoolsDestroyed     uint64 `json:"pools_destroyed" yaml:"pools_destroyed"`
}

// FallbackCreations is the number of acquires served outside any pool.
func (s SubsystemStats) FallbackCreations() uint64 {
	return s.DirectCreations + s.DefaultFallbacks + s.EmergencyFallbacks
}

type subsystemCounters struct {
	acquireCalls       atomic.Uint64
	releaseCalls       atomic.Uint64
	poolHits           atomic.Uint64
	directCreations    atomic.Uint64
	defaultFallbacks   atomic.Uint64
	emergencyFallbacks atomic.Uint64
	failedReleases     atomic.Uint64
	poolsCreated       atomic.Uint64
	poolsDestroyed     atomic.Uint64
}

type cachedPool struct {
	typ  entity.TypeKey
	pool *pool.TypedPool
}

// Original is the full-featured registry. Besides the pools it keeps
// subsystem counters and caches the most recently accessed pool.
type Original struct {
	factory entity.Factory
	opts    options

	mu    *sync.RWMutex
	pools map[entity.TypeKey]*pool.TypedPool

	lastAccessed atomic.Pointer[cachedPool]
	counters     subsystemCounters
	fallback     *fallbackChain
}

var _ Registry = (*Original)(nil)

// NewOriginal returns an empty Original registry backed by factory.
func NewOriginal(factory entity.Factory, opts ...Option) *Original {
	o := buildOptions(OriginalName, factory, opts)
	return &Original{
		factory:  factory,
		opts:     o,
		mu:       &sync.RWMutex{},
		pools:    make(map[entity.TypeKey]*pool.TypedPool),
		fallback: newFallbackChain(factory, o.emergency, o.logger),
	}
}

func (r *Original) Name() string {
	return OriginalName
}

func (r *Original) RegisterType(t entity.TypeKey, cfg *pool.Config) bool {
	if !t.IsValid() {
		r.opts.logger.Warn("refusing to register invalid entity type")
		return false
	}

	r.mu.Lock()
	p, exists := r.pools[t]
	if exists {
		r.mu.Unlock()
		return p.Configure(cfg)
	}

	p, err := pool.New(t, r.factory, cfg, pool.WithLogger(r.opts.logger))
	if err != nil {
		r.mu.Unlock()
		r.opts.logger.Warn("failed to create pool", zap.Stringer("type", t), zap.Error(err))
		return false
	}
	r.pools[t] = p
	r.mu.Unlock()

	r.counters.poolsCreated.Add(1)
	r.opts.logger.Info("registered pool", zap.Stringer("type", t))

	if cfg != nil && cfg.PrewarmOnRegister() && cfg.InitialSize() > 0 {
		p.Prewarm(cfg.InitialSize())
	}

	return true
}

func (r *Original) Acquire(t entity.TypeKey, pl entity.Placement) Result {
	r.counters.acquireCalls.Add(1)

	if p := r.lookup(t); p != nil {
		h, err := p.Acquire(pl)
		if err == nil {
			r.counters.poolHits.Add(1)
			return r.opts.observeAcquire(OriginalName, t, Result{Handle: h, Kind: Pooled})
		}
		r.opts.logger.Debug("pool could not satisfy acquire", zap.Stringer("type", t), zap.Error(err))
	} else {
		r.opts.logger.Debug("no pool registered", zap.Stringer("type", t))
	}

	res := r.fallback.acquire(t, pl)
	switch res.Kind {
	case DirectlyCreated:
		r.counters.directCreations.Add(1)
	case Default:
		r.counters.defaultFallbacks.Add(1)
	case Emergency:
		r.counters.emergencyFallbacks.Add(1)
	}

	return r.opts.observeAcquire(OriginalName, t, res)
}

func (r *Original) Release(h entity.Handle) bool {
	if h.IsZero() {
		return false
	}

	if p := r.lookup(h.Type); p != nil && p.Owns(h) {
		if err := p.Release(h); err != nil {
			r.opts.logger.Warn("pool rejected release", zap.Stringer("handle", h), zap.Error(err))
			r.counters.failedReleases.Add(1)
			return r.opts.observeRelease(OriginalName, h, false)
		}
		r.counters.releaseCalls.Add(1)
		return r.opts.observeRelease(OriginalName, h, true)
	}

	if r.fallback.release(h) {
		r.counters.releaseCalls.Add(1)
		return r.opts.observeRelease(OriginalName, h, true)
	}

	r.opts.logger.Debug("release of handle this registry never issued", zap.Stringer("handle", h))
	return false
}

func (r *Original) Prewarm(t entity.TypeKey, count int) int {
	p := r.lookup(t)
	if p == nil {
		r.opts.logger.Warn("prewarm of unregistered type", zap.Stringer("type", t))
		return 0
	}
	return p.Prewarm(count)
}

func (r *Original) ClearPool(t entity.TypeKey) {
	if p := r.lookup(t); p != nil {
		p.Clear()
	}
}

func (r *Original) ClearAll() {
	for _, p := range r.snapshot() {
		p.Clear()
	}
}

// RemovePool clears the pool for t and forgets the registration.
func (r *Original) RemovePool(t entity.TypeKey) bool {
	r.mu.Lock()
	p, ok := r.pools[t]
	if ok {
		delete(r.pools, t)
		if c := r.lastAccessed.Load(); c != nil && c.typ == t {
			r.lastAccessed.Store(nil)
		}
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	p.Clear()
	r.counters.poolsDestroyed.Add(1)
	r.opts.logger.Info("removed pool", zap.Stringer("type", t))
	return true
}

func (r *Original) Stats(t entity.TypeKey) (pool.Statistics, bool) {
	p := r.lookup(t)
	if p == nil {
		return pool.Statistics{}, false
	}
	return p.Stats(), true
}

func (r *Original) AllStats() []pool.Statistics {
	pools := r.snapshot()
	out := make([]pool.Statistics, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Stats())
	}
	return out
}

func (r *Original) IsTypeRegistered(t entity.TypeKey) bool {
	return r.lookup(t) != nil
}

func (r *Original) RegisteredTypes() []entity.TypeKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]entity.TypeKey, 0, len(r.pools))
	for t := range r.pools {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func (r *Original) Owns(h entity.Handle) bool {
	if p := r.lookup(h.Type); p != nil && p.Owns(h) {
		return true
	}
	return r.fallback.owns(h)
}

// SubsystemStats returns a snapshot of the registry-wide counters.
func (r *Original) SubsystemStats() SubsystemStats {
	return SubsystemStats{
		AcquireCalls:       r.counters.acquireCalls.Load(),
		ReleaseCalls:       r.counters.releaseCalls.Load(),
		PoolHits:           r.counters.poolHits.Load(),
		DirectCreations:    r.counters.directCreations.Load(),
		DefaultFallbacks:   r.counters.defaultFallbacks.Load(),
		EmergencyFallbacks: r.counters.emergencyFallbacks.Load(),
		FailedReleases:     r.counters.failedReleases.Load(),
		PoolsCreated:       r.counters.poolsCreated.Load(),
		PoolsDestroyed:     r.counters.poolsDestroyed.Load(),
	}
}

// OutstandingDirect is the number of directly created instances not yet
// released.
func (r *Original) OutstandingDirect() int {
	return r.fallback.outstanding()
}

func (r *Original) lookup(t entity.TypeKey) *pool.TypedPool {
	if c := r.lastAccessed.Load(); c != nil && c.typ == t {
		return c.pool
	}

	// The cache is filled under the read lock so RemovePool, which clears
	// it under the write lock, cannot be overtaken by a stale store.
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pools[t]
	if !ok {
		return nil
	}
	r.lastAccessed.Store(&cachedPool{typ: t, pool: p})
	return p
}

// snapshot returns the pools sorted by type so reports are deterministic.
func (r *Original) snapshot() []*pool.TypedPool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*pool.TypedPool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *pool.TypedPool) int {
		return cmp.Compare(a.Type(), b.Type())
	})
	return out
}
