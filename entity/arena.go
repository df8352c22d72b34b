package entity

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownType    = errors.New("unknown entity type")
	ErrInvalidType    = errors.New("invalid entity type")
	ErrCreateRejected = errors.New("instance creation rejected")
)

// Constructor builds the payload of a new instance.
type Constructor func() any

// Instance is the arena's view of one live entity.
type Instance struct {
	Handle    Handle
	Placement Placement
	Active    bool
	Resets    int
	Value     any
}

type slot struct {
	generation uint32
	live       bool
	instance   Instance
}

// Arena is an in-memory Factory backed by generational slots. Destroying an
// instance bumps its slot generation, so handles held after destruction stop
// validating even when the slot is reused.
type Arena struct {
	mu           *sync.Mutex
	constructors map[TypeKey]Constructor
	slots        []slot
	free         []uint32
	rejected     map[TypeKey]bool
	created      int
	destroyed    int
}

// NewArena returns an arena that already knows how to build DefaultType.
func NewArena() *Arena {
	a := &Arena{
		mu:           &sync.Mutex{},
		constructors: make(map[TypeKey]Constructor),
		rejected:     make(map[TypeKey]bool),
	}
	a.constructors[DefaultType] = func() any { return nil }
	return a
}

// Register teaches the arena to construct t. A nil constructor yields
// instances with a nil payload.
func (a *Arena) Register(t TypeKey, ctor Constructor) error {
	if !t.IsValid() {
		return ErrInvalidType
	}
	if ctor == nil {
		ctor = func() any { return nil }
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.constructors[t] = ctor
	return nil
}

// FailCreate makes every CreateInstance for t fail while reject is true.
func (a *Arena) FailCreate(t TypeKey, reject bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if reject {
		a.rejected[t] = true
		return
	}
	delete(a.rejected, t)
}

func (a *Arena) CreateInstance(t TypeKey, p Placement) (Handle, error) {
	if !t.IsValid() {
		return Handle{}, ErrInvalidType
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ctor, ok := a.constructors[t]
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	if a.rejected[t] {
		return Handle{}, fmt.Errorf("%w: %s", ErrCreateRejected, t)
	}

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot{})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.generation++
	s.live = true
	h := Handle{Slot: idx, Generation: s.generation, Type: t}
	s.instance = Instance{Handle: h, Placement: p, Value: ctor()}
	a.created++

	return h, nil
}

func (a *Arena) DestroyInstance(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(h)
	if !ok {
		return
	}
	s.live = false
	s.instance = Instance{}
	a.free = append(a.free, h.Slot)
	a.destroyed++
}

func (a *Arena) ResetInstance(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.lookup(h); ok {
		s.instance.Active = false
		s.instance.Placement = Identity()
		s.instance.Resets++
	}
}

func (a *Arena) IsValid(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.lookup(h)
	return ok
}

func (a *Arena) ActivateInstance(h Handle, p Placement) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.lookup(h); ok {
		s.instance.Active = true
		s.instance.Placement = p
	}
}

// Lookup returns a copy of the instance behind h.
func (a *Arena) Lookup(h Handle) (Instance, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(h)
	if !ok {
		return Instance{}, false
	}
	return s.instance, true
}

// Live returns the number of instances currently alive.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created - a.destroyed
}

// Created returns the lifetime number of constructed instances.
func (a *Arena) Created() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.created
}

// lookup must be called with a.mu held.
func (a *Arena) lookup(h Handle) (*slot, bool) {
	if h.IsZero() || int(h.Slot) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.Slot]
	if !s.live || s.generation != h.Generation || s.instance.Handle.Type != h.Type {
		return nil, false
	}
	return s, true
}
