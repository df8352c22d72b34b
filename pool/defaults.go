package pool

const (
	defaultInitialSize          = 0
	defaultHardLimit            = 0
	defaultCleanupFrequency     = 50
	defaultDestroyActiveOnClear = true
)
