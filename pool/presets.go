package pool

import (
	"errors"
	"fmt"
	"slices"
)

// Preset names a ready-made pool configuration.
type Preset string

const (
	// PresetHighPerformance keeps a large warm pool for hot entity types.
	PresetHighPerformance Preset = "high-performance"
	// PresetMemoryOptimized keeps few instances around and purges often.
	PresetMemoryOptimized Preset = "memory-optimized"
	// PresetDebug is a small pool with per-operation logging.
	PresetDebug Preset = "debug"
)

var ErrUnknownPreset = errors.New("unknown pool preset")

var presets = map[Preset]func() ConfigBuilder{
	PresetHighPerformance: func() ConfigBuilder {
		return NewConfigBuilder().
			SetInitialSize(50).
			SetHardLimit(200).
			SetPrewarmOnRegister(true).
			SetCleanupFrequency(200)
	},
	PresetMemoryOptimized: func() ConfigBuilder {
		return NewConfigBuilder().
			SetInitialSize(10).
			SetHardLimit(50).
			SetCleanupFrequency(10)
	},
	PresetDebug: func() ConfigBuilder {
		return NewConfigBuilder().
			SetInitialSize(5).
			SetHardLimit(20).
			SetVerbose(true).
			SetCleanupFrequency(1)
	},
}

// Presets returns the preset names in sorted order.
func Presets() []Preset {
	names := make([]Preset, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewPresetBuilder returns a builder seeded with the named preset. Further
// setters override the preset values.
func NewPresetBuilder(name Preset) (ConfigBuilder, error) {
	newBuilder, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return newBuilder(), nil
}
