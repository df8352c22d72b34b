//go:build entitypool_simplified && !entitypool_original

package migration

const (
	compiledBuildMode = SimplifiedOnly
	buildTagConflict  = false
)
