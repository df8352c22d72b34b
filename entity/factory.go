package entity

// Factory is the host collaborator that owns real entity construction.
// Implementations must be safe for concurrent use.
type Factory interface {
	// CreateInstance constructs a new instance of t at placement p.
	CreateInstance(t TypeKey, p Placement) (Handle, error)

	// DestroyInstance permanently destroys h. Unknown handles are ignored.
	DestroyInstance(h Handle)

	// ResetInstance clears transient state before h goes back to a pool.
	ResetInstance(h Handle)

	// IsValid reports whether h still refers to a live instance.
	IsValid(h Handle) bool

	// ActivateInstance applies p to h and makes it visible to the host.
	ActivateInstance(h Handle, p Placement)
}

// Lifecycle is implemented by factories that want pool lifecycle callbacks.
// Pools detect it with a type assertion.
type Lifecycle interface {
	OnCreated(h Handle)
	OnActivated(h Handle)
	OnReturnedToPool(h Handle)
}
