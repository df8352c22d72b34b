//go:build entitypool_original && entitypool_simplified

package migration

// Both exclusive tags were given. The manager falls back to Mixed and
// reports the conflict when it initializes.
const (
	compiledBuildMode = Mixed
	buildTagConflict  = true
)
