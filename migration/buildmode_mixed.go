//go:build !entitypool_original && !entitypool_simplified

package migration

const (
	compiledBuildMode = Mixed
	buildTagConflict  = false
)
