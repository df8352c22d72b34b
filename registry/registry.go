// Package registry owns the per-type pools and guarantees that an acquire
// always yields a usable handle, degrading through a fixed fallback chain
// when the pool for a type is missing or exhausted.
//
// Two implementations satisfy Registry: Original, which keeps subsystem
// statistics and a last-accessed pool cache, and Simplified, a lean variant
// with the same observable contract.
package registry

import (
	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/logger"
	"github.com/AlexsanderHamir/entitypool/pool"

	"go.uber.org/zap"
)

// Kind tags how an acquire was satisfied.
type Kind int

const (
	// Pooled came from the type's pool.
	Pooled Kind = iota
	// DirectlyCreated bypassed pooling; the instance is destroyed on release.
	DirectlyCreated
	// Default is an instance of entity.DefaultType standing in for the
	// requested type.
	Default
	// Emergency is the shared process-wide reserve instance.
	Emergency
)

func (k Kind) String() string {
	switch k {
	case Pooled:
		return "pooled"
	case DirectlyCreated:
		return "direct"
	case Default:
		return "default"
	case Emergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Result is what Acquire hands back. Handle is never zero.
type Result struct {
	Handle entity.Handle
	Kind   Kind
}

// Degraded reports whether the result came from a fallback level.
func (r Result) Degraded() bool {
	return r.Kind != Pooled
}

// Registry is the never-fail front of a set of typed pools.
type Registry interface {
	// Name identifies the implementation in logs, metrics and reports.
	Name() string

	// RegisterType creates the pool for t or merges cfg into the existing
	// one. A nil cfg uses pool defaults. Invalid types return false.
	RegisterType(t entity.TypeKey, cfg *pool.Config) bool

	// Acquire returns an instance of t, or the best degraded substitute.
	Acquire(t entity.TypeKey, pl entity.Placement) Result

	// Release returns h to its pool or destroys a directly created
	// instance. Handles this registry never issued yield false and leave
	// every statistic untouched.
	Release(h entity.Handle) bool

	Prewarm(t entity.TypeKey, count int) int
	ClearPool(t entity.TypeKey)
	ClearAll()
	Stats(t entity.TypeKey) (pool.Statistics, bool)
	AllStats() []pool.Statistics
	IsTypeRegistered(t entity.TypeKey) bool
	RegisteredTypes() []entity.TypeKey

	// Owns reports whether h is currently outstanding from this registry.
	Owns(h entity.Handle) bool
}

// Observer receives registry events. Implementations must be cheap and
// safe for concurrent use.
type Observer interface {
	OnAcquire(registry string, t entity.TypeKey, kind Kind)
	OnRelease(registry string, t entity.TypeKey, ok bool)
}

type options struct {
	logger    *zap.Logger
	observer  Observer
	emergency *EmergencyReserve
}

// Option configures a registry.
type Option func(*options)

// WithLogger sets the registry logger. Pools created by the registry log
// through a child of it.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver attaches an event observer such as a metrics collector.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithEmergencyReserve overrides the process-wide reserve of the registry's
// factory. Share a reserve only between registries over the same factory.
func WithEmergencyReserve(e *EmergencyReserve) Option {
	return func(o *options) {
		if e != nil {
			o.emergency = e
		}
	}
}

func buildOptions(name string, factory entity.Factory, opts []Option) options {
	o := options{logger: logger.Named("registry")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.emergency == nil {
		o.emergency = SharedEmergencyReserve(factory)
	}
	o.logger = o.logger.With(zap.String("registry", name))
	return o
}

func (o options) observeAcquire(name string, t entity.TypeKey, r Result) Result {
	if o.observer != nil {
		o.observer.OnAcquire(name, t, r.Kind)
	}
	return r
}

func (o options) observeRelease(name string, h entity.Handle, ok bool) bool {
	if o.observer != nil {
		o.observer.OnRelease(name, h.Type, ok)
	}
	return ok
}
