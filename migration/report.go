package migration

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ConfigurationSummary describes the current selection and routing setup.
func (m *Manager) ConfigurationSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	b.WriteString("========== Migration Configuration ==========\n")
	fmt.Fprintf(&b, "Session             : %s\n", m.sessionID)
	fmt.Fprintf(&b, "Build Mode          : %s\n", m.buildMode)
	if m.tagConflict {
		b.WriteString("Build Tags          : conflicting (both exclusive tags set)\n")
	}
	fmt.Fprintf(&b, "Selected            : %s\n", m.current)
	fmt.Fprintf(&b, "Effective           : %s\n", m.resolveLocked(m.current))
	if m.abEnabled {
		fmt.Fprintf(&b, "A/B Testing         : enabled (%.1f%% simplified)\n", m.abRatio*100)
	} else {
		b.WriteString("A/B Testing         : disabled\n")
	}
	fmt.Fprintf(&b, "Migration State     : %s\n", m.state)
	fmt.Fprintf(&b, "Pass Threshold      : %.1f%%\n", m.passThreshold*100)
	fmt.Fprintf(&b, "Initialized         : %t\n", m.initialized)
	return b.String()
}

// MigrationReport summarises routing, compatibility and performance stats.
func (m *Manager) MigrationReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats

	var b strings.Builder
	b.WriteString("========== Migration Report ==========\n")
	fmt.Fprintf(&b, "Session             : %s\n", m.sessionID)
	fmt.Fprintf(&b, "State               : %s\n", m.state)
	if m.abEnabled {
		fmt.Fprintf(&b, "A/B Testing         : enabled (%.1f%% simplified)\n", m.abRatio*100)
	}
	m.writeMigrationTimesLocked(&b)

	b.WriteString("---------- Calls ----------\n")
	total := s.TotalCalls()
	fmt.Fprintf(&b, "Total               : %d\n", total)
	fmt.Fprintf(&b, "Original            : %d (%.1f%%)\n", s.OriginalCalls, percent(s.OriginalCalls, total))
	fmt.Fprintf(&b, "Simplified          : %d (%.1f%%)\n", s.SimplifiedCalls, percent(s.SimplifiedCalls, total))
	fmt.Fprintf(&b, "Switch Requests     : %d\n", s.SwitchRequests)

	b.WriteString("---------- Compatibility ----------\n")
	checks := s.CompatibilityPassed + s.CompatibilityFailed
	fmt.Fprintf(&b, "Passed              : %d\n", s.CompatibilityPassed)
	fmt.Fprintf(&b, "Failed              : %d\n", s.CompatibilityFailed)
	fmt.Fprintf(&b, "Pass Rate           : %.1f%%\n", percent(s.CompatibilityPassed, checks))

	b.WriteString("---------- Performance ----------\n")
	fmt.Fprintf(&b, "Comparisons         : %d\n", s.PerformanceSamples)
	fmt.Fprintf(&b, "Average Improvement : %.2f%%\n", s.AverageImprovement)

	return b.String()
}

// PerformanceReport groups the comparison history by operation type.
func (m *Manager) PerformanceReport() string {
	m.mu.Lock()
	history := slices.Clone(m.history)
	m.mu.Unlock()

	var b strings.Builder
	b.WriteString("========== Performance Report ==========\n")
	if len(history) == 0 {
		b.WriteString("no performance data recorded\n")
		return b.String()
	}

	type agg struct {
		n                    int
		original, simplified time.Duration
		improvement          float64
	}
	groups := make(map[string]*agg)
	for _, r := range history {
		g, ok := groups[r.OperationType]
		if !ok {
			g = &agg{}
			groups[r.OperationType] = g
		}
		g.n++
		g.original += r.OriginalTime
		g.simplified += r.SimplifiedTime
		g.improvement += r.ImprovementPercentage
	}

	ops := make([]string, 0, len(groups))
	for op := range groups {
		ops = append(ops, op)
	}
	slices.Sort(ops)

	for _, op := range ops {
		g := groups[op]
		n := time.Duration(g.n)
		fmt.Fprintf(&b, "%s (%d samples)\n", op, g.n)
		fmt.Fprintf(&b, "  Original Avg      : %.3f ms\n", ms(g.original/n))
		fmt.Fprintf(&b, "  Simplified Avg    : %.3f ms\n", ms(g.simplified/n))
		fmt.Fprintf(&b, "  Improvement Avg   : %.2f%%\n", g.improvement/float64(g.n))
	}

	return b.String()
}

// writeMigrationTimesLocked prints recorded timestamps only, so the report
// does not change while the state does not.
func (m *Manager) writeMigrationTimesLocked(b *strings.Builder) {
	if m.migrationStart.IsZero() {
		if !m.migrationEnd.IsZero() {
			fmt.Fprintf(b, "Ended               : %s\n", m.migrationEnd.Format(time.RFC3339))
		}
		return
	}
	fmt.Fprintf(b, "Started             : %s\n", m.migrationStart.Format(time.RFC3339))
	if m.migrationEnd.IsZero() {
		return
	}
	fmt.Fprintf(b, "Ended               : %s\n", m.migrationEnd.Format(time.RFC3339))
	fmt.Fprintf(b, "Duration            : %s\n", m.migrationEnd.Sub(m.migrationStart).Round(time.Millisecond))
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
