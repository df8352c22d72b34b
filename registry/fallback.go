package registry

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/AlexsanderHamir/entitypool/entity"

	"go.uber.org/zap"
)

// EmergencyReserve holds the single instance served when every other
// fallback failed. Creation is attempted at most once; if the factory
// refuses, entity.EmergencyHandle is memoized instead. The instance is never
// destroyed. A reserve belongs to the factory that created its instance and
// serves only the sentinel to any other factory.
type EmergencyReserve struct {
	mu      sync.Mutex
	ready   atomic.Bool
	handle  entity.Handle
	factory entity.Factory
}

var (
	reservesMu sync.Mutex
	reserves   = make(map[entity.Factory]*EmergencyReserve)
)

// SharedEmergencyReserve returns the process-wide reserve for f, creating it
// on first use. Factories whose dynamic type is not comparable cannot be
// keyed and get a fresh reserve on every call.
func SharedEmergencyReserve(f entity.Factory) *EmergencyReserve {
	if f == nil || !reflect.TypeOf(f).Comparable() {
		return NewEmergencyReserve()
	}

	reservesMu.Lock()
	defer reservesMu.Unlock()

	e, ok := reserves[f]
	if !ok {
		e = NewEmergencyReserve()
		reserves[f] = e
	}
	return e
}

// NewEmergencyReserve returns an empty reserve, mainly for isolated tests.
func NewEmergencyReserve() *EmergencyReserve {
	return &EmergencyReserve{}
}

// Prime creates the reserve instance now, while the factory is known to be
// healthy. It is a no-op once the reserve exists.
func (e *EmergencyReserve) Prime(f entity.Factory) entity.Handle {
	return e.get(f)
}

// Handle returns the memoized handle and whether it exists yet.
func (e *EmergencyReserve) Handle() (entity.Handle, bool) {
	if !e.ready.Load() {
		return entity.Handle{}, false
	}
	return e.handle, true
}

// Is reports whether h is the reserve instance.
func (e *EmergencyReserve) Is(h entity.Handle) bool {
	if h.IsEmergencySentinel() {
		return true
	}
	cur, ok := e.Handle()
	return ok && cur == h
}

func (e *EmergencyReserve) get(f entity.Factory) entity.Handle {
	if !e.ready.Load() {
		e.create(f)
	}
	if !sameFactory(e.factory, f) {
		return entity.EmergencyHandle
	}
	return e.handle
}

func (e *EmergencyReserve) create(f entity.Factory) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready.Load() {
		return
	}

	h, err := f.CreateInstance(entity.DefaultType, entity.Identity())
	if err != nil {
		h = entity.EmergencyHandle
	} else {
		f.ActivateInstance(h, entity.Identity())
	}

	e.handle = h
	e.factory = f
	e.ready.Store(true)
}

func sameFactory(a, b entity.Factory) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}

// fallbackChain implements levels two to four of the acquire path and owns
// the bookkeeping of instances created outside any pool.
type fallbackChain struct {
	factory   entity.Factory
	emergency *EmergencyReserve
	logger    *zap.Logger

	mu     sync.Mutex
	direct map[entity.Handle]struct{}
}

func newFallbackChain(f entity.Factory, e *EmergencyReserve, l *zap.Logger) *fallbackChain {
	return &fallbackChain{
		factory:   f,
		emergency: e,
		logger:    l,
		direct:    make(map[entity.Handle]struct{}),
	}
}

// acquire never fails. The caller already gave up on the pool for t.
func (c *fallbackChain) acquire(t entity.TypeKey, pl entity.Placement) Result {
	if t.IsValid() {
		h, err := c.factory.CreateInstance(t, pl)
		if err == nil {
			c.track(h, pl)
			return Result{Handle: h, Kind: DirectlyCreated}
		}
		c.logger.Warn("direct creation failed, falling back to default type",
			zap.Stringer("type", t), zap.Error(err))
	}

	h, err := c.factory.CreateInstance(entity.DefaultType, pl)
	if err == nil {
		c.track(h, pl)
		return Result{Handle: h, Kind: Default}
	}
	c.logger.Error("default type creation failed, serving emergency instance",
		zap.Stringer("type", t), zap.Error(err))

	return Result{Handle: c.emergency.get(c.factory), Kind: Emergency}
}

func (c *fallbackChain) track(h entity.Handle, pl entity.Placement) {
	c.factory.ActivateInstance(h, pl)

	c.mu.Lock()
	c.direct[h] = struct{}{}
	c.mu.Unlock()
}

// release destroys directly created instances and accepts the emergency
// instance as a no-op. It returns false for anything else.
func (c *fallbackChain) release(h entity.Handle) bool {
	c.mu.Lock()
	_, ok := c.direct[h]
	if ok {
		delete(c.direct, h)
	}
	c.mu.Unlock()

	if ok {
		c.factory.DestroyInstance(h)
		return true
	}

	return c.emergency.Is(h)
}

func (c *fallbackChain) owns(h entity.Handle) bool {
	c.mu.Lock()
	_, ok := c.direct[h]
	c.mu.Unlock()
	return ok || c.emergency.Is(h)
}

func (c *fallbackChain) outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.direct)
}
