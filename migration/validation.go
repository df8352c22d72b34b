package migration

import (
	"time"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/registry"

	"go.uber.org/zap"
)

// ConsistencyReport is the outcome of a paired probe run.
type ConsistencyReport struct {
	Type      entity.TypeKey `json:"type" yaml:"type"`
	Samples   int            `json:"samples" yaml:"samples"`
	Passed    int            `json:"passed" yaml:"passed"`
	PassRate  float64        `json:"pass_rate" yaml:"pass_rate"`
	Threshold float64        `json:"threshold" yaml:"threshold"`
	OK        bool           `json:"ok" yaml:"ok"`
}

// ValidateImplementationConsistency runs sampleCount paired probes of t
// against both registries and reports whether the pass rate reaches the
// threshold. An invalid type fails without running any probe.
func (m *Manager) ValidateImplementationConsistency(t entity.TypeKey, sampleCount int) bool {
	return m.CheckConsistency(t, sampleCount).OK
}

// CheckConsistency is ValidateImplementationConsistency with the details.
//
// A probe acquires t from both registries at the same placement and passes
// when both handles are usable, were served by the same fallback level, and
// have the same type. Both instances are released before the next probe.
func (m *Manager) CheckConsistency(t entity.TypeKey, sampleCount int) ConsistencyReport {
	m.mu.Lock()
	threshold := m.passThreshold
	m.mu.Unlock()

	rep := ConsistencyReport{Type: t, Threshold: threshold}

	if !t.IsValid() {
		m.logger.Warn("consistency validation rejected invalid type")
		return rep
	}
	if sampleCount <= 0 {
		m.logger.Warn("consistency validation needs at least one sample", zap.Int("samples", sampleCount))
		return rep
	}

	for i := range sampleCount {
		pl := entity.At(float64(i), 0, 0)
		passed := probe(m.original, m.simplified, t, pl)
		m.RecordCompatibilityCheck(passed)

		rep.Samples++
		if passed {
			rep.Passed++
		}
	}

	rep.PassRate = float64(rep.Passed) / float64(rep.Samples)
	rep.OK = rep.PassRate >= threshold

	m.logger.Info("consistency validation finished",
		zap.Stringer("type", t),
		zap.Int("samples", rep.Samples),
		zap.Float64("pass_rate", rep.PassRate),
		zap.Bool("ok", rep.OK))

	return rep
}

func probe(a, b registry.Registry, t entity.TypeKey, pl entity.Placement) bool {
	ra := a.Acquire(t, pl)
	rb := b.Acquire(t, pl)
	defer a.Release(ra.Handle)
	defer b.Release(rb.Handle)

	if ra.Handle.IsZero() || rb.Handle.IsZero() {
		return false
	}
	return ra.Kind == rb.Kind && ra.Handle.Type == rb.Handle.Type
}

// ComparePerformance times iterations acquire/release round trips of t on
// each registry and records the result.
func (m *Manager) ComparePerformance(t entity.TypeKey, iterations int) PerformanceResult {
	if iterations <= 0 {
		iterations = 1
	}

	originalTime := timeRoundTrips(m.original, t, iterations)
	simplifiedTime := timeRoundTrips(m.simplified, t, iterations)

	r := NewPerformanceResult("acquire_release", originalTime, simplifiedTime)
	m.RecordPerformanceComparison(r)
	return r
}

func timeRoundTrips(r registry.Registry, t entity.TypeKey, n int) time.Duration {
	pl := entity.Identity()
	start := time.Now()
	for range n {
		res := r.Acquire(t, pl)
		r.Release(res.Handle)
	}
	return time.Since(start)
}
