package registry

import (
	"slices"
	"sync"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/pool"

	"go.uber.org/zap"
)

// SimplifiedName is the Name of the Simplified implementation.
const SimplifiedName = "simplified"

// Simplified is the lean registry: a mutex-guarded map of pools plus the
// shared fallback chain, with no subsystem counters or caching.
type Simplified struct {
	factory entity.Factory
	opts    options

	mu    sync.Mutex
	pools map[entity.TypeKey]*pool.TypedPool

	fallback *fallbackChain
}

var _ Registry = (*Simplified)(nil)

// NewSimplified returns an empty Simplified registry backed by factory.
func NewSimplified(factory entity.Factory, opts ...Option) *Simplified {
	o := buildOptions(SimplifiedName, factory, opts)
	return &Simplified{
		factory:  factory,
		opts:     o,
		pools:    make(map[entity.TypeKey]*pool.TypedPool),
		fallback: newFallbackChain(factory, o.emergency, o.logger),
	}
}

func (r *Simplified) Name() string {
	return SimplifiedName
}

func (r *Simplified) RegisterType(t entity.TypeKey, cfg *pool.Config) bool {
	if !t.IsValid() {
		r.opts.logger.Warn("refusing to register invalid entity type")
		return false
	}

	r.mu.Lock()
	p, exists := r.pools[t]
	if !exists {
		var err error
		p, err = pool.New(t, r.factory, cfg, pool.WithLogger(r.opts.logger))
		if err != nil {
			r.mu.Unlock()
			r.opts.logger.Warn("failed to create pool", zap.Stringer("type", t), zap.Error(err))
			return false
		}
		r.pools[t] = p
	}
	r.mu.Unlock()

	if exists {
		return p.Configure(cfg)
	}

	if cfg != nil && cfg.PrewarmOnRegister() && cfg.InitialSize() > 0 {
		p.Prewarm(cfg.InitialSize())
	}
	return true
}

func (r *Simplified) Acquire(t entity.TypeKey, pl entity.Placement) Result {
	if p := r.get(t); p != nil {
		if h, err := p.Acquire(pl); err == nil {
			return r.opts.observeAcquire(SimplifiedName, t, Result{Handle: h, Kind: Pooled})
		}
	}
	return r.opts.observeAcquire(SimplifiedName, t, r.fallback.acquire(t, pl))
}

func (r *Simplified) Release(h entity.Handle) bool {
	if h.IsZero() {
		return false
	}

	if p := r.get(h.Type); p != nil && p.Owns(h) {
		return r.opts.observeRelease(SimplifiedName, h, p.Release(h) == nil)
	}

	if r.fallback.release(h) {
		return r.opts.observeRelease(SimplifiedName, h, true)
	}
	return false
}

func (r *Simplified) Prewarm(t entity.TypeKey, count int) int {
	if p := r.get(t); p != nil {
		return p.Prewarm(count)
	}
	r.opts.logger.Warn("prewarm of unregistered type", zap.Stringer("type", t))
	return 0
}

func (r *Simplified) ClearPool(t entity.TypeKey) {
	if p := r.get(t); p != nil {
		p.Clear()
	}
}

func (r *Simplified) ClearAll() {
	r.mu.Lock()
	pools := make([]*pool.TypedPool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.mu.Unlock()

	for _, p := range pools {
		p.Clear()
	}
}

func (r *Simplified) Stats(t entity.TypeKey) (pool.Statistics, bool) {
	if p := r.get(t); p != nil {
		return p.Stats(), true
	}
	return pool.Statistics{}, false
}

func (r *Simplified) AllStats() []pool.Statistics {
	types := r.RegisteredTypes()
	out := make([]pool.Statistics, 0, len(types))
	for _, t := range types {
		if s, ok := r.Stats(t); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *Simplified) IsTypeRegistered(t entity.TypeKey) bool {
	return r.get(t) != nil
}

func (r *Simplified) RegisteredTypes() []entity.TypeKey {
	r.mu.Lock()
	types := make([]entity.TypeKey, 0, len(r.pools))
	for t := range r.pools {
		types = append(types, t)
	}
	r.mu.Unlock()

	slices.Sort(types)
	return types
}

func (r *Simplified) Owns(h entity.Handle) bool {
	if p := r.get(h.Type); p != nil && p.Owns(h) {
		return true
	}
	return r.fallback.owns(h)
}

func (r *Simplified) get(t entity.TypeKey) *pool.TypedPool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pools[t]
}
