package migration

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNilRegistry = errors.New("migration: both registries are required")
	ErrUnknownImpl = errors.New("migration: unknown implementation type")
)

// ImplementationType selects which registry serves calls.
type ImplementationType int

const (
	Original ImplementationType = iota
	Simplified
	// Auto resolves to the build-time default.
	Auto
)

func (t ImplementationType) String() string {
	switch t {
	case Original:
		return "Original"
	case Simplified:
		return "Simplified"
	case Auto:
		return "Auto"
	default:
		return "Unknown"
	}
}

// ParseImplementationType accepts the String forms, case-insensitively.
func ParseImplementationType(s string) (ImplementationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original":
		return Original, nil
	case "simplified":
		return Simplified, nil
	case "auto", "":
		return Auto, nil
	default:
		return Auto, ErrUnknownImpl
	}
}

// State is the migration lifecycle position.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	RolledBack
	// Testing is reported while A/B routing is enabled, on top of whichever
	// linear state the migration is in.
	Testing
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case InProgress:
		return "InProgress"
	case Completed:
		return "Completed"
	case RolledBack:
		return "RolledBack"
	case Testing:
		return "Testing"
	default:
		return "Unknown"
	}
}

// BuildMode is fixed at compile time through build tags.
type BuildMode int

const (
	// Mixed compiles both implementations in; Auto resolves to Simplified.
	Mixed BuildMode = iota
	OriginalOnly
	SimplifiedOnly
)

func (m BuildMode) String() string {
	switch m {
	case Mixed:
		return "Mixed"
	case OriginalOnly:
		return "OriginalOnly"
	case SimplifiedOnly:
		return "SimplifiedOnly"
	default:
		return "Unknown"
	}
}

// allows reports whether t may be selected under this build mode.
func (m BuildMode) allows(t ImplementationType) bool {
	switch m {
	case OriginalOnly:
		return t != Simplified
	case SimplifiedOnly:
		return t != Original
	default:
		return true
	}
}

func (m BuildMode) resolveAuto() ImplementationType {
	if m == OriginalOnly {
		return Original
	}
	return Simplified
}

// PerformanceResult is one timed comparison of the two implementations.
type PerformanceResult struct {
	OperationType         string        `json:"operation_type" yaml:"operation_type"`
	OriginalTime          time.Duration `json:"original_time" yaml:"original_time"`
	SimplifiedTime        time.Duration `json:"simplified_time" yaml:"simplified_time"`
	ImprovementPercentage float64       `json:"improvement_percentage" yaml:"improvement_percentage"`
}

// NewPerformanceResult fills in the improvement of simplified over original,
// positive when simplified is faster.
func NewPerformanceResult(op string, original, simplified time.Duration) PerformanceResult {
	r := PerformanceResult{
		OperationType:  op,
		OriginalTime:   original,
		SimplifiedTime: simplified,
	}
	if original > 0 {
		r.ImprovementPercentage = float64(original-simplified) / float64(original) * 100
	}
	return r
}

// Stats are the manager's accumulated counters.
type Stats struct {
	OriginalCalls       uint64  `json:"original_calls" yaml:"original_calls"`
	SimplifiedCalls     uint64  `json:"simplified_calls" yaml:"simplified_calls"`
	SwitchRequests      uint64  `json:"switch_requests" yaml:"switch_requests"`
	CompatibilityPassed uint64  `json:"compatibility_passed" yaml:"compatibility_passed"`
	CompatibilityFailed uint64  `json:"compatibility_failed" yaml:"compatibility_failed"`
	PerformanceSamples  int     `json:"performance_samples" yaml:"performance_samples"`
	AverageImprovement  float64 `json:"average_improvement" yaml:"average_improvement"`
}

func (s Stats) TotalCalls() uint64 {
	return s.OriginalCalls + s.SimplifiedCalls
}

// SimplifiedShare is the fraction of routed calls that went to Simplified.
func (s Stats) SimplifiedShare() float64 {
	if total := s.TotalCalls(); total > 0 {
		return float64(s.SimplifiedCalls) / float64(total)
	}
	return 0
}

// CompatibilityRate is the fraction of passed compatibility checks.
func (s Stats) CompatibilityRate() float64 {
	if total := s.CompatibilityPassed + s.CompatibilityFailed; total > 0 {
		return float64(s.CompatibilityPassed) / float64(total)
	}
	return 0
}
