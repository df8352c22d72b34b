package pool

// ConfigBuilder provides a fluent interface for configuring a TypedPool.
type ConfigBuilder interface {
	// SetInitialSize sets how many instances the owner is expected to prewarm.
	// The pool itself never prewarms implicitly unless SetPrewarmOnRegister
	// is enabled on the registry side.
	SetInitialSize(size int) ConfigBuilder

	// SetHardLimit caps the number of instances the pool tracks (available
	// plus active). Zero means unbounded.
	SetHardLimit(limit int) ConfigBuilder

	// SetVerbose enables per-operation debug logging.
	SetVerbose(verbose bool) ConfigBuilder

	// SetPrewarmOnRegister asks the registry to prewarm InitialSize instances
	// as soon as the type is registered.
	SetPrewarmOnRegister(enabled bool) ConfigBuilder

	// SetDestroyActiveOnClear controls whether Clear also destroys instances
	// that are currently handed out.
	SetDestroyActiveOnClear(enabled bool) ConfigBuilder

	// SetCleanupFrequency sets after how many acquire requests the pool
	// purges available instances that were invalidated externally.
	// Zero disables the periodic purge.
	SetCleanupFrequency(requests int) ConfigBuilder

	// Build validates the settings and returns the configuration.
	Build() (*Config, error)
}
