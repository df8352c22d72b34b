package registry

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/pool"
)

// HotspotKind classifies a pool that needs tuning.
type HotspotKind string

const (
	LowHitRate     HotspotKind = "low_hit_rate"
	HighExhaustion HotspotKind = "high_exhaustion"
	NearLimit      HotspotKind = "near_limit"
	LargePool      HotspotKind = "large_pool"
)

// Hotspot is one finding about one pool. Severity is in [0, 1].
type Hotspot struct {
	Type        entity.TypeKey `json:"type" yaml:"type"`
	Kind        HotspotKind    `json:"kind" yaml:"kind"`
	Severity    float64        `json:"severity" yaml:"severity"`
	Description string         `json:"description" yaml:"description"`
	Suggestion  string         `json:"suggestion" yaml:"suggestion"`
}

// HotspotThresholds tune DetectHotspots. Rate checks are skipped for pools
// with fewer than MinRequests acquire requests.
type HotspotThresholds struct {
	LowHitRate     float64 `json:"low_hit_rate" yaml:"low_hit_rate"`
	ExhaustionRate float64 `json:"exhaustion_rate" yaml:"exhaustion_rate"`
	NearLimit      float64 `json:"near_limit" yaml:"near_limit"`
	LargePool      int     `json:"large_pool" yaml:"large_pool"`
	MinRequests    uint64  `json:"min_requests" yaml:"min_requests"`
}

func DefaultHotspotThresholds() HotspotThresholds {
	return HotspotThresholds{
		LowHitRate:     0.5,
		ExhaustionRate: 0.1,
		NearLimit:      0.9,
		LargePool:      100,
		MinRequests:    10,
	}
}

// DetectHotspots inspects pool statistics and returns the findings, most
// severe first. Ties are ordered by type, then kind.
func DetectHotspots(stats []pool.Statistics, th HotspotThresholds) []Hotspot {
	var out []Hotspot

	for _, s := range stats {
		if s.Requests >= th.MinRequests && s.Requests > 0 {
			if s.HitRate < th.LowHitRate {
				out = append(out, Hotspot{
					Type:        s.Type,
					Kind:        LowHitRate,
					Severity:    1 - s.HitRate,
					Description: fmt.Sprintf("hit rate is %.1f%%", s.HitRate*100),
					Suggestion:  "raise the initial size or prewarm the pool",
				})
			}

			rate := float64(s.Exhaustions) / float64(s.Requests)
			if rate > th.ExhaustionRate {
				out = append(out, Hotspot{
					Type:        s.Type,
					Kind:        HighExhaustion,
					Severity:    min(1, rate),
					Description: fmt.Sprintf("%.1f%% of requests hit the hard limit", rate*100),
					Suggestion:  "raise the hard limit",
				})
			}
		}

		if s.HardLimit > 0 {
			fill := float64(s.PoolSize) / float64(s.HardLimit)
			if fill >= th.NearLimit {
				out = append(out, Hotspot{
					Type:        s.Type,
					Kind:        NearLimit,
					Severity:    min(1, fill),
					Description: fmt.Sprintf("%d of %d instances tracked", s.PoolSize, s.HardLimit),
					Suggestion:  "raise the hard limit before the pool starts falling back",
				})
			}
		}

		if th.LargePool > 0 && s.PoolSize > th.LargePool {
			out = append(out, Hotspot{
				Type:        s.Type,
				Kind:        LargePool,
				Severity:    min(1, float64(s.PoolSize)/float64(2*th.LargePool)),
				Description: fmt.Sprintf("pool tracks %d instances", s.PoolSize),
				Suggestion:  "lower the hard limit or clear the pool when idle",
			})
		}
	}

	slices.SortStableFunc(out, func(a, b Hotspot) int {
		if c := cmp.Compare(b.Severity, a.Severity); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return out
}

// DebugSummary renders totals for r's pools and the hotspots found with th.
func DebugSummary(r Registry, th HotspotThresholds) string {
	stats := r.AllStats()

	var (
		total, active int
		hitRate       float64
	)
	for _, s := range stats {
		total += s.PoolSize
		active += s.CurrentActive
		hitRate += s.HitRate
	}
	if len(stats) > 0 {
		hitRate /= float64(len(stats))
	}

	hotspots := DetectHotspots(stats, th)

	var b strings.Builder
	b.WriteString("========== Pool Debug Summary ==========\n")
	fmt.Fprintf(&b, "Registry            : %s\n", r.Name())
	fmt.Fprintf(&b, "Pools               : %d\n", len(stats))
	fmt.Fprintf(&b, "Tracked Instances   : %d\n", total)
	fmt.Fprintf(&b, "Active Instances    : %d\n", active)
	fmt.Fprintf(&b, "Average Hit Rate    : %.1f%%\n", hitRate*100)
	fmt.Fprintf(&b, "Hotspots            : %d\n", len(hotspots))
	for _, h := range hotspots {
		fmt.Fprintf(&b, "  [%.2f] %-16s %s: %s (%s)\n", h.Severity, h.Kind, h.Type, h.Description, h.Suggestion)
	}
	return b.String()
}
