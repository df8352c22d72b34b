// Package entity defines the data model shared by the pooling engine: entity
// type keys, generational handles, placement parameters, and the factory
// collaborator that actually creates and destroys instances.
package entity

import (
	"fmt"
	"math"
)

// TypeKey identifies an entity class. Pools are keyed by it.
type TypeKey string

// DefaultType is the minimal well-known entity type every factory is expected
// to construct. The registry falls back to it when the requested type cannot
// be created.
const DefaultType TypeKey = "entity.default"

// IsValid reports whether the key names a type at all.
func (t TypeKey) IsValid() bool {
	return t != ""
}

func (t TypeKey) String() string {
	if t == "" {
		return "<none>"
	}
	return string(t)
}

// Handle references one concrete instance. The generation detects stale
// handles after the slot has been destroyed and reused.
type Handle struct {
	Slot       uint32
	Generation uint32
	Type       TypeKey
}

// EmergencyHandle is handed out when the factory refuses to construct even
// the emergency instance. It is never destroyed and never pooled.
var EmergencyHandle = Handle{Slot: math.MaxUint32, Generation: math.MaxUint32, Type: DefaultType}

// IsZero reports whether h is the empty handle.
func (h Handle) IsZero() bool {
	return h.Generation == 0
}

// IsEmergencySentinel reports whether h is EmergencyHandle.
func (h Handle) IsEmergencySentinel() bool {
	return h == EmergencyHandle
}

func (h Handle) String() string {
	if h.IsZero() {
		return "handle(nil)"
	}
	return fmt.Sprintf("%s#%d.%d", h.Type, h.Slot, h.Generation)
}

// Vector3 is a plain three-component vector.
type Vector3 struct {
	X, Y, Z float64
}

// Placement carries the transform applied to an instance when it is handed
// to a caller.
type Placement struct {
	Position Vector3
	Rotation Vector3
	Scale    Vector3
}

// Identity returns a placement at the origin with unit scale.
func Identity() Placement {
	return Placement{Scale: Vector3{X: 1, Y: 1, Z: 1}}
}

// At returns an identity placement moved to the given position.
func At(x, y, z float64) Placement {
	p := Identity()
	p.Position = Vector3{X: x, Y: y, Z: z}
	return p
}
