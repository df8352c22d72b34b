package pool

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlexsanderHamir/entitypool/entity"
)

// poolStats holds the lifetime counters. Guarded by TypedPool.mu.
type poolStats struct {
	totalCreated   uint64
	requests       uint64
	hits           uint64
	misses         uint64
	exhaustions    uint64
	releases       uint64
	destroyed      uint64
	invalidDropped uint64
}

// Statistics is a point-in-time snapshot of one pool.
type Statistics struct {
	Type             entity.TypeKey `json:"type" yaml:"type"`
	PoolSize         int            `json:"pool_size" yaml:"pool_size"`
	CurrentActive    int            `json:"current_active" yaml:"current_active"`
	CurrentAvailable int            `json:"current_available" yaml:"current_available"`
	TotalCreated     uint64         `json:"total_created" yaml:"total_created"`
	HitRate          float64        `json:"hit_rate" yaml:"hit_rate"`

	HardLimit      int    `json:"hard_limit" yaml:"hard_limit"`
	Requests       uint64 `json:"requests" yaml:"requests"`
	Hits           uint64 `json:"hits" yaml:"hits"`
	Misses         uint64 `json:"misses" yaml:"misses"`
	Exhaustions    uint64 `json:"exhaustions" yaml:"exhaustions"`
	Releases       uint64 `json:"releases" yaml:"releases"`
	Destroyed      uint64 `json:"destroyed" yaml:"destroyed"`
	InvalidDropped uint64 `json:"invalid_dropped" yaml:"invalid_dropped"`
}

// Stats returns a snapshot taken under the read lock.
//
// HitRate is hits / (hits + misses): prewarmed instances count toward
// TotalCreated but a later reuse of them is a hit, never a miss.
func (p *TypedPool) Stats() Statistics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Statistics{
		Type:             p.typ,
		CurrentActive:    len(p.active),
		CurrentAvailable: len(p.available),
		TotalCreated:     p.stats.totalCreated,
		HardLimit:        p.config.hardLimit,
		Requests:         p.stats.requests,
		Hits:             p.stats.hits,
		Misses:           p.stats.misses,
		Exhaustions:      p.stats.exhaustions,
		Releases:         p.stats.releases,
		Destroyed:        p.stats.destroyed,
		InvalidDropped:   p.stats.invalidDropped,
	}
	s.PoolSize = s.CurrentActive + s.CurrentAvailable

	if acquired := s.Hits + s.Misses; acquired > 0 {
		s.HitRate = float64(s.Hits) / float64(acquired)
	}

	return s
}

// Utilization is the fraction of tracked instances that are active.
func (s Statistics) Utilization() float64 {
	if s.PoolSize == 0 {
		return 0
	}
	return float64(s.CurrentActive) / float64(s.PoolSize)
}

func (s Statistics) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s Statistics) write(w io.Writer) {
	limit := "unbounded"
	if s.HardLimit > 0 {
		limit = fmt.Sprintf("%d", s.HardLimit)
	}

	fmt.Fprintf(w, "========== Pool Stats: %s ==========\n", s.Type)
	fmt.Fprintf(w, "Pool Size           : %d\n", s.PoolSize)
	fmt.Fprintf(w, "Hard Limit          : %s\n", limit)
	fmt.Fprintf(w, "Current Active      : %d\n", s.CurrentActive)
	fmt.Fprintf(w, "Current Available   : %d\n", s.CurrentAvailable)
	fmt.Fprintf(w, "Total Created       : %d\n", s.TotalCreated)
	fmt.Fprintf(w, "Utilization         : %.2f%%\n", s.Utilization()*100)
	fmt.Fprintln(w, "---------- Acquire ----------")
	fmt.Fprintf(w, "Requests            : %d\n", s.Requests)
	fmt.Fprintf(w, "Hits                : %d\n", s.Hits)
	fmt.Fprintf(w, "Misses              : %d\n", s.Misses)
	fmt.Fprintf(w, "Exhaustions         : %d\n", s.Exhaustions)
	fmt.Fprintf(w, "Hit Rate            : %.2f%%\n", s.HitRate*100)
	fmt.Fprintln(w, "---------- Release ----------")
	fmt.Fprintf(w, "Releases            : %d\n", s.Releases)
	fmt.Fprintf(w, "Destroyed           : %d\n", s.Destroyed)
	fmt.Fprintf(w, "Invalid Dropped     : %d\n", s.InvalidDropped)
	fmt.Fprintln(w, "=====================================")
}

// PrintPoolStats writes the current statistics to stdout.
func (p *TypedPool) PrintPoolStats() {
	p.Stats().write(os.Stdout)
}
