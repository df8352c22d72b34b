package pool

import (
	"errors"
	"sync"

	"github.com/AlexsanderHamir/entitypool/entity"

	"go.uber.org/zap"
)

var (
	ErrExhausted     = errors.New("pool exhausted: hard limit reached")
	ErrInvalidType   = errors.New("handle type does not match pool type")
	ErrNotActive     = errors.New("handle is not active in this pool")
	ErrInvalidHandle = errors.New("handle no longer refers to a live instance")
	ErrInvalidConfig = errors.New("invalid pool config")
	ErrNilFactory    = errors.New("factory cannot be nil")
)

// Config holds the per-type pool settings. Build it with NewConfigBuilder.
type Config struct {
	initialSize          int
	hardLimit            int
	verbose              bool
	prewarmOnRegister    bool
	destroyActiveOnClear bool
	cleanupFrequency     int
}

func (c Config) InitialSize() int           { return c.initialSize }
func (c Config) HardLimit() int             { return c.hardLimit }
func (c Config) Verbose() bool              { return c.verbose }
func (c Config) PrewarmOnRegister() bool    { return c.prewarmOnRegister }
func (c Config) DestroyActiveOnClear() bool { return c.destroyActiveOnClear }
func (c Config) CleanupFrequency() int      { return c.cleanupFrequency }

// TypedPool recycles instances of exactly one entity type.
//
// Available instances form a stack: the most recently released instance is
// the next one handed out. Every handle the pool tracks is either on the
// available stack or in the active set, never both.
type TypedPool struct {
	typ       entity.TypeKey
	factory   entity.Factory
	lifecycle entity.Lifecycle

	mu        *sync.RWMutex
	config    Config
	available []entity.Handle
	active    map[entity.Handle]struct{}
	stats     poolStats

	logger *zap.Logger
}

// Option configures optional TypedPool collaborators.
type Option func(*TypedPool)

// WithLogger sets the logger used for pool diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(p *TypedPool) {
		if l != nil {
			p.logger = l
		}
	}
}
