package pool

import (
	"fmt"
	"sync"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/logger"

	"go.uber.org/zap"
)

// New creates an empty pool for typ. Nothing is prewarmed; call Prewarm
// explicitly. A nil cfg uses the builder defaults.
func New(typ entity.TypeKey, factory entity.Factory, cfg *Config, opts ...Option) (*TypedPool, error) {
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidType, typ)
	}

	if factory == nil {
		return nil, ErrNilFactory
	}

	if cfg == nil {
		var err error
		cfg, err = NewConfigBuilder().Build()
		if err != nil {
			return nil, err
		}
	}

	p := &TypedPool{
		typ:     typ,
		factory: factory,
		mu:      &sync.RWMutex{},
		config:  *cfg,
		active:  make(map[entity.Handle]struct{}),
		logger:  logger.Named("pool"),
	}

	if lc, ok := factory.(entity.Lifecycle); ok {
		p.lifecycle = lc
	}

	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.Stringer("type", typ))

	return p, nil
}

// Type returns the entity type this pool recycles.
func (p *TypedPool) Type() entity.TypeKey {
	return p.typ
}

// Config returns a copy of the current configuration.
func (p *TypedPool) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Configure merges cfg into the pool. It is idempotent: applying the same
// config twice changes nothing. Lowering the hard limit destroys available
// instances until the pool fits. A hard limit below the number of active
// instances is refused and leaves the pool unchanged.
func (p *TypedPool) Configure(cfg *Config) bool {
	if cfg == nil {
		p.logger.Warn("ignoring nil pool config")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if cfg.hardLimit > 0 && cfg.hardLimit < len(p.active) {
		p.logger.Warn("refusing hard limit below active instance count",
			zap.Stringer("type", p.typ),
			zap.Int("hard_limit", cfg.hardLimit),
			zap.Int("active", len(p.active)))
		return false
	}

	p.config = *cfg
	trimmed := p.trimToLimit()

	if p.config.verbose {
		p.logger.Debug("[CONFIGURE] pool reconfigured",
			zap.Int("initial_size", p.config.initialSize),
			zap.Int("hard_limit", p.config.hardLimit),
			zap.Int("trimmed", trimmed))
	}

	return true
}

// Prewarm synchronously creates up to count instances and places them on
// the available stack. It stops early at the hard limit or on the first
// factory failure and returns how many were actually created.
func (p *TypedPool) Prewarm(count int) int {
	if count <= 0 {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.hardLimit > 0 {
		count = min(count, p.config.hardLimit-p.trackedLocked())
	}

	created := 0
	for range count {
		h, err := p.factory.CreateInstance(p.typ, entity.Identity())
		if err != nil {
			p.logger.Warn("prewarm stopped early", zap.Int("created", created), zap.Error(err))
			break
		}

		p.stats.totalCreated++
		if p.lifecycle != nil {
			p.lifecycle.OnCreated(h)
		}
		p.available = append(p.available, h)
		created++
	}

	if p.config.verbose {
		p.logger.Debug("[PREWARM] instances created", zap.Int("created", created), zap.Int("available", len(p.available)))
	}

	return created
}

// Acquire hands out one instance at placement pl. The most recently released
// instance is reused first; when the stack is empty a new instance is
// created unless the hard limit is reached, in which case ErrExhausted is
// returned with a zero handle.
func (p *TypedPool) Acquire(pl entity.Placement) (entity.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.requests++
	if freq := p.config.cleanupFrequency; freq > 0 && p.stats.requests%uint64(freq) == 0 {
		p.purgeInvalidLocked()
	}

	h, reused := p.popValidLocked()
	if reused {
		p.stats.hits++
	} else {
		if p.config.hardLimit > 0 && p.trackedLocked() >= p.config.hardLimit {
			p.stats.exhaustions++
			if p.config.verbose {
				p.logger.Debug("[EXHAUSTED] hard limit reached", zap.Int("hard_limit", p.config.hardLimit))
			}
			return entity.Handle{}, ErrExhausted
		}

		var err error
		h, err = p.factory.CreateInstance(p.typ, pl)
		if err != nil {
			return entity.Handle{}, fmt.Errorf("create %s: %w", p.typ, err)
		}

		p.stats.misses++
		p.stats.totalCreated++
		if p.lifecycle != nil {
			p.lifecycle.OnCreated(h)
		}

		if p.config.verbose {
			p.logger.Debug("[GROW] created instance on demand", zap.Stringer("handle", h), zap.Int("tracked", p.trackedLocked()+1))
		}
	}

	p.factory.ActivateInstance(h, pl)
	p.active[h] = struct{}{}
	if p.lifecycle != nil {
		p.lifecycle.OnActivated(h)
	}

	return h, nil
}

// Release resets h and pushes it back on the available stack. Handles of
// another type, handles this pool did not hand out, and handles already
// released are rejected without changing any statistics.
func (p *TypedPool) Release(h entity.Handle) error {
	if h.Type != p.typ {
		return fmt.Errorf("%w: got %s, pool holds %s", ErrInvalidType, h.Type, p.typ)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.active[h]; !ok {
		return fmt.Errorf("%w: %s", ErrNotActive, h)
	}
	delete(p.active, h)

	if !p.factory.IsValid(h) {
		p.logger.Warn("released instance was destroyed externally", zap.Stringer("handle", h))
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}

	p.stats.releases++

	p.factory.ResetInstance(h)
	if p.lifecycle != nil {
		p.lifecycle.OnReturnedToPool(h)
	}
	p.available = append(p.available, h)

	return nil
}

// Owns reports whether h is currently handed out by this pool.
func (p *TypedPool) Owns(h entity.Handle) bool {
	if h.Type != p.typ {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.active[h]
	return ok
}

// Clear destroys every available instance, and the active ones too when the
// config says so, then resets all counters. Active instances that survive a
// clear stay tracked so they can still be released.
func (p *TypedPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	destroyed := len(p.available)
	for _, h := range p.available {
		p.factory.DestroyInstance(h)
	}
	p.available = nil

	if p.config.destroyActiveOnClear {
		destroyed += len(p.active)
		for h := range p.active {
			p.factory.DestroyInstance(h)
		}
		p.active = make(map[entity.Handle]struct{})
	}

	p.stats = poolStats{}

	if p.config.verbose {
		p.logger.Debug("[CLEAR] pool cleared", zap.Int("destroyed", destroyed))
	}
}

func (p *TypedPool) trackedLocked() int {
	return len(p.available) + len(p.active)
}

// popValidLocked pops the top of the available stack, discarding entries
// whose instance was destroyed behind the pool's back.
func (p *TypedPool) popValidLocked() (entity.Handle, bool) {
	for n := len(p.available); n > 0; n = len(p.available) {
		h := p.available[n-1]
		p.available = p.available[:n-1]
		if p.factory.IsValid(h) {
			return h, true
		}
		p.stats.invalidDropped++
	}
	return entity.Handle{}, false
}

func (p *TypedPool) purgeInvalidLocked() {
	kept := p.available[:0]
	for _, h := range p.available {
		if p.factory.IsValid(h) {
			kept = append(kept, h)
			continue
		}
		p.stats.invalidDropped++
	}
	clear(p.available[len(kept):])
	p.available = kept
}

func (p *TypedPool) trimToLimit() int {
	limit := p.config.hardLimit
	if limit == 0 {
		return 0
	}

	trimmed := 0
	for p.trackedLocked() > limit && len(p.available) > 0 {
		n := len(p.available)
		p.factory.DestroyInstance(p.available[n-1])
		p.available = p.available[:n-1]
		p.stats.destroyed++
		trimmed++
	}
	return trimmed
}
