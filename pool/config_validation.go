package pool

import (
	"fmt"
)

// validateBasicConfig performs validation of the core pool configuration parameters:
// - initialSize must be non-negative
// - hardLimit must be non-negative, zero meaning unbounded
// - a bounded hardLimit must be >= initialSize
// - cleanupFrequency must be non-negative
func (b *configBuilder) validateBasicConfig() error {
	if b.config.initialSize < 0 {
		return fmt.Errorf("%w: initialSize must be >= 0, got %d", ErrInvalidConfig, b.config.initialSize)
	}

	if b.config.hardLimit < 0 {
		return fmt.Errorf("%w: hardLimit must be >= 0, got %d", ErrInvalidConfig, b.config.hardLimit)
	}

	if b.config.hardLimit > 0 && b.config.hardLimit < b.config.initialSize {
		return fmt.Errorf("%w: hardLimit (%d) must be >= initialSize (%d)", ErrInvalidConfig, b.config.hardLimit, b.config.initialSize)
	}

	if b.config.cleanupFrequency < 0 {
		return fmt.Errorf("%w: cleanupFrequency must be >= 0, got %d", ErrInvalidConfig, b.config.cleanupFrequency)
	}

	return nil
}
