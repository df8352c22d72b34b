package pool

// configBuilder is responsible for building pool configurations.
type configBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new pool configuration builder with default
// settings: nothing prewarmed, unbounded growth, active instances destroyed on
// clear, and an invalid-entry purge every 50 requests.
func NewConfigBuilder() ConfigBuilder {
	return &configBuilder{
		config: &Config{
			initialSize:          defaultInitialSize,
			hardLimit:            defaultHardLimit,
			destroyActiveOnClear: defaultDestroyActiveOnClear,
			cleanupFrequency:     defaultCleanupFrequency,
		},
	}
}

// NewConfig is shorthand for the two settings callers care about most.
func NewConfig(initialSize, hardLimit int) (*Config, error) {
	return NewConfigBuilder().
		SetInitialSize(initialSize).
		SetHardLimit(hardLimit).
		Build()
}

func (b *configBuilder) SetInitialSize(size int) ConfigBuilder {
	b.config.initialSize = size
	return b
}

func (b *configBuilder) SetHardLimit(limit int) ConfigBuilder {
	b.config.hardLimit = limit
	return b
}

func (b *configBuilder) SetVerbose(verbose bool) ConfigBuilder {
	b.config.verbose = verbose
	return b
}

func (b *configBuilder) SetPrewarmOnRegister(enabled bool) ConfigBuilder {
	b.config.prewarmOnRegister = enabled
	return b
}

func (b *configBuilder) SetDestroyActiveOnClear(enabled bool) ConfigBuilder {
	b.config.destroyActiveOnClear = enabled
	return b
}

func (b *configBuilder) SetCleanupFrequency(requests int) ConfigBuilder {
	b.config.cleanupFrequency = requests
	return b
}

// Build returns a copy of the configuration, so the builder can keep being
// reused without aliasing configs it already produced.
func (b *configBuilder) Build() (*Config, error) {
	if err := b.validateBasicConfig(); err != nil {
		return nil, err
	}

	cfg := *b.config
	return &cfg, nil
}
