package registry

import (
	"fmt"
	"strings"
)

// PerformanceReport renders the subsystem counters and one line per pool.
func (r *Original) PerformanceReport() string {
	s := r.SubsystemStats()

	var b strings.Builder
	b.WriteString("========== Pool Subsystem Report ==========\n")
	fmt.Fprintf(&b, "Registry            : %s\n", r.Name())
	fmt.Fprintf(&b, "Pools Created       : %d\n", s.PoolsCreated)
	fmt.Fprintf(&b, "Pools Destroyed     : %d\n", s.PoolsDestroyed)
	fmt.Fprintf(&b, "Acquire Calls       : %d\n", s.AcquireCalls)
	fmt.Fprintf(&b, "Release Calls       : %d\n", s.ReleaseCalls)
	fmt.Fprintf(&b, "Failed Releases     : %d\n", s.FailedReleases)
	fmt.Fprintf(&b, "Pool Hits           : %d\n", s.PoolHits)
	fmt.Fprintf(&b, "Fallback Creations  : %d (direct %d, default %d, emergency %d)\n",
		s.FallbackCreations(), s.DirectCreations, s.DefaultFallbacks, s.EmergencyFallbacks)

	if s.AcquireCalls > 0 {
		fmt.Fprintf(&b, "Pool Hit Rate       : %.2f%%\n", float64(s.PoolHits)/float64(s.AcquireCalls)*100)
	} else {
		b.WriteString("Pool Hit Rate       : n/a\n")
	}

	stats := r.AllStats()
	if len(stats) == 0 {
		b.WriteString("---------- Pools ----------\n(none registered)\n")
		return b.String()
	}

	b.WriteString("---------- Pools ----------\n")
	for _, ps := range stats {
		fmt.Fprintf(&b, "%-24s size=%d active=%d available=%d created=%d hit_rate=%.2f%%\n",
			ps.Type, ps.PoolSize, ps.CurrentActive, ps.CurrentAvailable, ps.TotalCreated, ps.HitRate*100)
	}

	return b.String()
}
