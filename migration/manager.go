// Package migration runs the Original and Simplified registries side by side.
// A Manager decides per call which one serves a request, supports explicit
// switching and probabilistic A/B routing, and accumulates compatibility and
// performance statistics for comparing the two.
package migration

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/AlexsanderHamir/entitypool/logger"
	"github.com/AlexsanderHamir/entitypool/registry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPassThreshold is the pass rate at which two implementations are
// considered consistent.
const DefaultPassThreshold = 0.95

// Rand is the random source for A/B draws. *rand.Rand from math/rand/v2
// satisfies it. Draws happen under the manager lock, so implementations need
// not be safe for concurrent use.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Observer receives manager events, typically a metrics collector.
type Observer interface {
	OnRouted(impl string)
	OnCompatibilityCheck(passed bool)
	OnPerformanceComparison(r PerformanceResult)
}

// Manager is the single decision authority over which registry serves a
// call. Construct one at startup and pass it to every consumer.
//
// All mutable state is guarded by mu. No registry method is ever called with
// mu held, so registry and pool locks never nest inside it.
type Manager struct {
	original   registry.Registry
	simplified registry.Registry

	mu        sync.Mutex
	current   ImplementationType
	requested ImplementationType
	state     State
	abEnabled bool
	abRatio   float64
	stats     Stats
	history   []PerformanceResult
	sumImprov float64
	rng       Rand

	buildMode     BuildMode
	tagConflict   bool
	passThreshold float64
	initialized   bool

	sessionID      string
	migrationStart time.Time
	migrationEnd   time.Time

	logger   *zap.Logger
	observer Observer
}

// Option configures a Manager.
type Option func(*Manager)

// WithRand injects the random source used for A/B draws.
func WithRand(r Rand) Option {
	return func(m *Manager) {
		if r != nil {
			m.rng = r
		}
	}
}

// WithSeed is shorthand for a deterministic PCG source.
func WithSeed(seed1, seed2 uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed1, seed2)))
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBuildMode overrides the compiled build mode.
func WithBuildMode(mode BuildMode) Option {
	return func(m *Manager) {
		m.buildMode = mode
	}
}

// WithInitialImplementation requests an implementation at Initialize time
// instead of the build-mode default.
func WithInitialImplementation(t ImplementationType) Option {
	return func(m *Manager) {
		m.requested = t
	}
}

func WithObserver(obs Observer) Option {
	return func(m *Manager) {
		m.observer = obs
	}
}

// WithPassThreshold overrides DefaultPassThreshold. Values outside (0, 1]
// are ignored.
func WithPassThreshold(th float64) Option {
	return func(m *Manager) {
		if th > 0 && th <= 1 {
			m.passThreshold = th
		}
	}
}

// New builds a manager over the two registries. It starts in Auto with
// migration NotStarted; call Initialize before serving traffic.
func New(original, simplified registry.Registry, opts ...Option) (*Manager, error) {
	if original == nil || simplified == nil {
		return nil, ErrNilRegistry
	}

	m := &Manager{
		original:      original,
		simplified:    simplified,
		current:       Auto,
		requested:     Auto,
		state:         NotStarted,
		rng:           globalRand{},
		buildMode:     compiledBuildMode,
		tagConflict:   buildTagConflict,
		passThreshold: DefaultPassThreshold,
		sessionID:     uuid.NewString(),
		logger:        logger.Named("migration"),
	}

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("session", m.sessionID))

	return m, nil
}

// Initialize applies the build-mode default and any requested
// implementation, reports configuration inconsistencies, and logs the
// configuration summary. Inconsistencies never stop initialization; the
// manager continues with the best resolution available.
func (m *Manager) Initialize() {
	m.mu.Lock()

	if m.tagConflict {
		m.logger.Error("configuration inconsistency: both exclusive build tags set, running in mixed mode")
	}

	target := m.requested
	if !m.buildMode.allows(target) {
		m.logger.Error("configuration inconsistency: requested implementation excluded by build mode",
			zap.Stringer("requested", target),
			zap.Stringer("build_mode", m.buildMode))
		target = Auto
	}
	if target == Auto && m.buildMode != Mixed {
		target = m.buildMode.resolveAuto()
	}
	m.current = target
	m.initialized = true

	m.mu.Unlock()

	m.logger.Info("migration manager initialized",
		zap.Stringer("implementation", target),
		zap.Stringer("build_mode", m.buildMode))
	m.logger.Debug(m.ConfigurationSummary())
}

// Shutdown logs the final migration report.
func (m *Manager) Shutdown() {
	report := m.MigrationReport()

	m.mu.Lock()
	m.initialized = false
	m.mu.Unlock()

	m.logger.Info("migration manager shut down")
	m.logger.Debug(report)
}

// SessionID identifies this manager instance in reports and logs.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// Registry returns the registry behind t, resolving Auto.
func (m *Manager) Registry(t ImplementationType) registry.Registry {
	m.mu.Lock()
	resolved := m.resolveLocked(t)
	m.mu.Unlock()

	if resolved == Simplified {
		return m.simplified
	}
	return m.original
}

// Registries returns both registries, original first.
func (m *Manager) Registries() (registry.Registry, registry.Registry) {
	return m.original, m.simplified
}

// SetImplementationType selects t for subsequent calls. Selecting the current
// implementation again is a no-op apart from being counted. Selections the
// build mode excludes are logged as inconsistencies and refused.
func (m *Manager) SetImplementationType(t ImplementationType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(t)
}

func (m *Manager) SwitchToSimplified() bool {
	return m.SetImplementationType(Simplified)
}

func (m *Manager) SwitchToOriginal() bool {
	return m.SetImplementationType(Original)
}

// Toggle flips between the two concrete implementations. Auto counts as
// whatever it currently resolves to.
func (m *Manager) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolveLocked(m.current) == Simplified {
		return m.setLocked(Original)
	}
	return m.setLocked(Simplified)
}

func (m *Manager) setLocked(t ImplementationType) bool {
	if t < Original || t > Auto {
		m.logger.Warn("ignoring unknown implementation type", zap.Int("type", int(t)))
		return false
	}

	m.stats.SwitchRequests++

	if !m.buildMode.allows(t) {
		m.logger.Error("configuration inconsistency: switch excluded by build mode",
			zap.Stringer("requested", t),
			zap.Stringer("build_mode", m.buildMode))
		return false
	}

	if m.current == t {
		return true
	}

	m.logger.Info("switching implementation", zap.Stringer("from", m.current), zap.Stringer("to", t))
	m.current = t
	return true
}

// CurrentImplementation returns the explicit selection, which may be Auto.
func (m *Manager) CurrentImplementation() ImplementationType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// EffectiveImplementation resolves Auto but ignores A/B routing.
func (m *Manager) EffectiveImplementation() ImplementationType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(m.current)
}

// IsUsingSimplifiedImplementation resolves the implementation for one call.
// With A/B testing enabled every call makes a fresh draw against the ratio.
func (m *Manager) IsUsingSimplifiedImplementation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decideLocked() == Simplified
}

// Select resolves the implementation for one call, counts the call, and
// returns the registry that should serve it.
func (m *Manager) Select() (ImplementationType, registry.Registry) {
	m.mu.Lock()
	impl := m.decideLocked()
	m.recordCallLocked(impl)
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.OnRouted(registryName(impl))
	}

	if impl == Simplified {
		return impl, m.simplified
	}
	return impl, m.original
}

func (m *Manager) decideLocked() ImplementationType {
	if m.abEnabled {
		if m.rng.Float64() < m.abRatio {
			return Simplified
		}
		return Original
	}
	return m.resolveLocked(m.current)
}

func (m *Manager) resolveLocked(t ImplementationType) ImplementationType {
	if t == Auto {
		return m.buildMode.resolveAuto()
	}
	return t
}

// EnableABTesting routes each call to Simplified with probability ratio,
// clamped into [0, 1]. Exclusive build modes refuse it.
func (m *Manager) EnableABTesting(ratio float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buildMode != Mixed {
		m.logger.Error("configuration inconsistency: A/B testing needs both implementations",
			zap.Stringer("build_mode", m.buildMode))
		return false
	}

	m.abRatio = clampRatio(ratio)
	m.abEnabled = true
	m.logger.Info("A/B testing enabled", zap.Float64("simplified_ratio", m.abRatio))
	return true
}

// DisableABTesting returns to the explicit selection. The reported state
// falls back to the linear migration state.
func (m *Manager) DisableABTesting() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.abEnabled {
		m.logger.Info("A/B testing disabled")
	}
	m.abEnabled = false
}

// ABTesting returns whether A/B routing is on and its ratio.
func (m *Manager) ABTesting() (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abEnabled, m.abRatio
}

func clampRatio(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return min(max(r, 0), 1)
}

// StartMigration moves NotStarted to InProgress.
func (m *Manager) StartMigration() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != NotStarted {
		m.logger.Warn("cannot start migration", zap.Stringer("state", m.state))
		return false
	}
	m.state = InProgress
	m.migrationStart = time.Now()
	m.logger.Info("migration started")
	return true
}

// CompleteMigration moves InProgress to Completed.
func (m *Manager) CompleteMigration() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != InProgress {
		m.logger.Warn("cannot complete migration", zap.Stringer("state", m.state))
		return false
	}
	m.state = Completed
	m.migrationEnd = time.Now()
	m.logger.Info("migration completed", zap.Duration("duration", m.migrationEnd.Sub(m.migrationStart)))
	return true
}

// RollbackMigration is allowed from any state. It forces Original and turns
// A/B routing off.
func (m *Manager) RollbackMigration() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.buildMode.allows(Original) {
		m.logger.Error("configuration inconsistency: rollback forces original in a simplified-only build")
	}

	m.state = RolledBack
	m.migrationEnd = time.Now()
	m.abEnabled = false
	m.current = Original
	m.logger.Warn("migration rolled back, forcing original implementation")
}

// State returns Testing while A/B routing is enabled, otherwise the linear
// migration state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abEnabled {
		return Testing
	}
	return m.state
}

// MigrationState returns the linear state regardless of A/B routing.
func (m *Manager) MigrationState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RecordImplementationCall counts one call served by t. Auto is counted as
// what it resolves to.
func (m *Manager) RecordImplementationCall(t ImplementationType) {
	m.mu.Lock()
	m.recordCallLocked(m.resolveLocked(t))
	m.mu.Unlock()
}

func (m *Manager) recordCallLocked(t ImplementationType) {
	if t == Simplified {
		m.stats.SimplifiedCalls++
		return
	}
	m.stats.OriginalCalls++
}

func (m *Manager) RecordCompatibilityCheck(passed bool) {
	m.mu.Lock()
	if passed {
		m.stats.CompatibilityPassed++
	} else {
		m.stats.CompatibilityFailed++
	}
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.OnCompatibilityCheck(passed)
	}
}

// RecordPerformanceComparison appends r to the history. The average
// improvement covers the full history.
func (m *Manager) RecordPerformanceComparison(r PerformanceResult) {
	m.mu.Lock()
	m.history = append(m.history, r)
	m.sumImprov += r.ImprovementPercentage
	m.stats.PerformanceSamples = len(m.history)
	m.stats.AverageImprovement = m.sumImprov / float64(len(m.history))
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.OnPerformanceComparison(r)
	}
}

// Stats returns a snapshot of the accumulated statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// PerformanceHistory returns a copy of every recorded comparison.
func (m *Manager) PerformanceHistory() []PerformanceResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PerformanceResult, len(m.history))
	copy(out, m.history)
	return out
}

// ResetStats clears counters and performance history. Selection and
// migration state are kept.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
	m.history = nil
	m.sumImprov = 0
}

func registryName(t ImplementationType) string {
	if t == Simplified {
		return registry.SimplifiedName
	}
	return registry.OriginalName
}
