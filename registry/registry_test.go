package registry_test

import (
	"sync"
	"testing"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/pool"
	"github.com/AlexsanderHamir/entitypool/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

const (
	typeA       entity.TypeKey = "enemy.grunt"
	typeB       entity.TypeKey = "projectile.bolt"
	typeUnknown entity.TypeKey = "never.constructible"
)

type constructor func(f entity.Factory, opts ...registry.Option) registry.Registry

// ContractSuite runs the behaviour every Registry implementation shares.
type ContractSuite struct {
	suite.Suite

	build     constructor
	arena     *entity.Arena
	emergency *registry.EmergencyReserve
	reg       registry.Registry
}

func (s *ContractSuite) SetupTest() {
	s.arena = entity.NewArena()
	s.Require().NoError(s.arena.Register(typeA, nil))
	s.Require().NoError(s.arena.Register(typeB, nil))

	s.emergency = registry.NewEmergencyReserve()
	s.reg = s.build(s.arena,
		registry.WithLogger(zaptest.NewLogger(s.T())),
		registry.WithEmergencyReserve(s.emergency))
}

func (s *ContractSuite) register(t entity.TypeKey, initialSize, hardLimit int) {
	cfg, err := pool.NewConfig(initialSize, hardLimit)
	s.Require().NoError(err)
	s.Require().True(s.reg.RegisterType(t, cfg))
}

func (s *ContractSuite) TestRegisterPrewarmAcquire() {
	s.register(typeA, 5, 20)
	s.True(s.reg.IsTypeRegistered(typeA))
	s.False(s.reg.IsTypeRegistered(typeB))

	s.Equal(5, s.reg.Prewarm(typeA, 5))
	stats, ok := s.reg.Stats(typeA)
	s.Require().True(ok)
	s.GreaterOrEqual(stats.PoolSize, 5)
	s.Equal(5, stats.CurrentAvailable)
	s.Equal(0, stats.CurrentActive)

	for range 5 {
		res := s.reg.Acquire(typeA, entity.Identity())
		s.Equal(registry.Pooled, res.Kind)
		s.False(res.Degraded())
	}

	stats, _ = s.reg.Stats(typeA)
	s.Equal(5, stats.CurrentActive)
	s.Equal(0, stats.CurrentAvailable)
	s.Equal(1.0, stats.HitRate)

	res := s.reg.Acquire(typeA, entity.Identity())
	s.Equal(registry.Pooled, res.Kind)
	stats, _ = s.reg.Stats(typeA)
	s.Equal(uint64(6), stats.TotalCreated)
}

func (s *ContractSuite) TestExhaustedPoolFallsBackToDirectCreation() {
	s.register(typeA, 5, 5)
	s.Require().Equal(5, s.reg.Prewarm(typeA, 5))
	for range 5 {
		s.Require().Equal(registry.Pooled, s.reg.Acquire(typeA, entity.Identity()).Kind)
	}

	res := s.reg.Acquire(typeA, entity.At(1, 1, 1))
	s.Equal(registry.DirectlyCreated, res.Kind)
	s.Equal(typeA, res.Handle.Type)
	s.True(s.arena.IsValid(res.Handle))

	stats, _ := s.reg.Stats(typeA)
	s.Equal(uint64(1), stats.Exhaustions)
	s.Equal(5, stats.PoolSize)

	s.True(s.reg.Owns(res.Handle))
	s.True(s.reg.Release(res.Handle))
	s.False(s.arena.IsValid(res.Handle), "direct instances are destroyed on release")
	s.False(s.reg.Release(res.Handle))
}

func (s *ContractSuite) TestUnregisteredTypeIsCreatedDirectly() {
	res := s.reg.Acquire(typeB, entity.Identity())
	s.Equal(registry.DirectlyCreated, res.Kind)
	s.Equal(typeB, res.Handle.Type)
	s.False(s.reg.IsTypeRegistered(typeB))
}

func (s *ContractSuite) TestUnconstructibleTypeFallsBackToDefault() {
	res := s.reg.Acquire(typeUnknown, entity.At(2, 0, 0))
	s.Equal(registry.Default, res.Kind)
	s.Equal(entity.DefaultType, res.Handle.Type)

	inst, ok := s.arena.Lookup(res.Handle)
	s.Require().True(ok)
	s.Equal(2.0, inst.Placement.Position.X, "default stands in at the requested placement")

	s.True(s.reg.Release(res.Handle))
	s.False(s.arena.IsValid(res.Handle))
}

func (s *ContractSuite) TestEmergencyWhenNothingCanBeCreated() {
	s.arena.FailCreate(typeA, true)
	s.arena.FailCreate(entity.DefaultType, true)

	first := s.reg.Acquire(typeA, entity.Identity())
	second := s.reg.Acquire("", entity.Identity())

	s.Equal(registry.Emergency, first.Kind)
	s.Equal(registry.Emergency, second.Kind)
	s.False(first.Handle.IsZero())
	s.Equal(first.Handle, second.Handle)

	s.True(s.reg.Release(first.Handle))
	s.True(s.reg.Release(first.Handle), "emergency release is always accepted")
}

func (s *ContractSuite) TestPrimedEmergencyIsRealInstance() {
	primed := s.emergency.Prime(s.arena)
	s.True(s.arena.IsValid(primed))

	s.arena.FailCreate(entity.DefaultType, true)
	res := s.reg.Acquire("", entity.Identity())
	s.Equal(registry.Emergency, res.Kind)
	s.Equal(primed, res.Handle)

	s.True(s.reg.Release(res.Handle))
	s.True(s.arena.IsValid(primed), "emergency instance is never destroyed")
}

func (s *ContractSuite) TestNeverFailForAnyType() {
	s.register(typeA, 0, 1)
	types := []entity.TypeKey{typeA, typeB, typeUnknown, "", entity.DefaultType}

	for i := range 50 {
		for _, t := range types {
			res := s.reg.Acquire(t, entity.At(float64(i), 0, 0))
			s.False(res.Handle.IsZero(), "type %q", t)
		}
	}
}

func (s *ContractSuite) TestForeignReleaseChangesNothing() {
	s.register(typeA, 2, 0)
	s.Require().Equal(2, s.reg.Prewarm(typeA, 2))
	s.reg.Acquire(typeA, entity.Identity())
	before := s.reg.AllStats()

	foreign, err := s.arena.CreateInstance(typeA, entity.Identity())
	s.Require().NoError(err)

	s.False(s.reg.Release(foreign))
	s.False(s.reg.Release(entity.Handle{}))
	s.False(s.reg.Owns(foreign))
	s.True(s.arena.IsValid(foreign), "foreign handles are not destroyed")
	s.Equal(before, s.reg.AllStats())
}

func (s *ContractSuite) TestRegisterTypeMergesAndRejectsInvalid() {
	s.False(s.reg.RegisterType("", nil))
	s.True(s.reg.RegisterType(typeA, nil))
	s.register(typeA, 2, 4)
	s.register(typeA, 2, 4)

	stats, _ := s.reg.Stats(typeA)
	s.Equal(4, stats.HardLimit)
	s.Equal([]entity.TypeKey{typeA}, s.reg.RegisteredTypes())
}

func (s *ContractSuite) TestPrewarmOnRegister() {
	cfg, err := pool.NewConfigBuilder().SetInitialSize(3).SetPrewarmOnRegister(true).Build()
	s.Require().NoError(err)
	s.Require().True(s.reg.RegisterType(typeB, cfg))

	stats, _ := s.reg.Stats(typeB)
	s.Equal(3, stats.CurrentAvailable)
}

func (s *ContractSuite) TestPrewarmUnregisteredReturnsZero() {
	s.Equal(0, s.reg.Prewarm(typeB, 10))
	_, ok := s.reg.Stats(typeB)
	s.False(ok)
}

func (s *ContractSuite) TestClearPoolAndClearAll() {
	s.register(typeA, 0, 0)
	s.register(typeB, 0, 0)
	s.Require().Equal(3, s.reg.Prewarm(typeA, 3))
	s.Require().Equal(2, s.reg.Prewarm(typeB, 2))

	s.reg.ClearPool(typeA)
	statsA, _ := s.reg.Stats(typeA)
	statsB, _ := s.reg.Stats(typeB)
	s.Equal(0, statsA.PoolSize)
	s.Equal(2, statsB.PoolSize)

	s.reg.ClearAll()
	for _, st := range s.reg.AllStats() {
		s.Equal(0, st.PoolSize, "type %s", st.Type)
	}
	s.True(s.reg.IsTypeRegistered(typeA), "clearing keeps registrations")
	s.Equal(0, s.arena.Live())
}

func (s *ContractSuite) TestAllStatsSortedByType() {
	s.register(typeB, 0, 0)
	s.register(typeA, 0, 0)

	all := s.reg.AllStats()
	s.Require().Len(all, 2)
	s.Equal(typeA, all[0].Type)
	s.Equal(typeB, all[1].Type)
}

func (s *ContractSuite) TestConcurrentMixedTypes() {
	s.register(typeA, 0, 4)
	s.register(typeB, 0, 0)

	const workers, iterations = 16, 200
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			t := typeA
			if id%2 == 1 {
				t = typeB
			}
			for range iterations {
				res := s.reg.Acquire(t, entity.Identity())
				if res.Handle.IsZero() {
					s.T().Errorf("worker %d: zero handle", id)
					return
				}
				if !s.reg.Release(res.Handle) {
					s.T().Errorf("worker %d: release of %s (%s) failed", id, res.Handle, res.Kind)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	statsA, _ := s.reg.Stats(typeA)
	s.LessOrEqual(statsA.PoolSize, 4)
	s.Equal(0, statsA.CurrentActive)
}

func TestOriginalContract(t *testing.T) {
	suite.Run(t, &ContractSuite{build: func(f entity.Factory, opts ...registry.Option) registry.Registry {
		return registry.NewOriginal(f, opts...)
	}})
}

func TestSimplifiedContract(t *testing.T) {
	suite.Run(t, &ContractSuite{build: func(f entity.Factory, opts ...registry.Option) registry.Registry {
		return registry.NewSimplified(f, opts...)
	}})
}

func TestEmergencyCreatedOnce(t *testing.T) {
	arena := entity.NewArena()
	reserve := registry.NewEmergencyReserve()

	_, ok := reserve.Handle()
	require.False(t, ok)

	const workers = 32
	handles := make([]entity.Handle, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = reserve.Prime(arena)
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, 1, arena.Created())
	assert.True(t, reserve.Is(handles[0]))
}

func TestEmergencySentinelWhenFactoryRefuses(t *testing.T) {
	arena := entity.NewArena()
	arena.FailCreate(entity.DefaultType, true)
	reserve := registry.NewEmergencyReserve()

	h := reserve.Prime(arena)
	assert.Equal(t, entity.EmergencyHandle, h)

	// memoized: a healthy factory later does not replace it
	arena.FailCreate(entity.DefaultType, false)
	assert.Equal(t, entity.EmergencyHandle, reserve.Prime(arena))
	assert.Equal(t, 0, arena.Created())
}

func TestEmergencyReservePerFactory(t *testing.T) {
	first, second := entity.NewArena(), entity.NewArena()

	assert.Same(t, registry.SharedEmergencyReserve(first), registry.SharedEmergencyReserve(first))
	assert.NotSame(t, registry.SharedEmergencyReserve(first), registry.SharedEmergencyReserve(second))

	firstHandle := registry.SharedEmergencyReserve(first).Prime(first)
	require.True(t, first.IsValid(firstHandle))

	r := registry.NewSimplified(second, registry.WithLogger(zaptest.NewLogger(t)))
	second.FailCreate(entity.DefaultType, true)

	res := r.Acquire(typeUnknown, entity.Identity())
	assert.Equal(t, registry.Emergency, res.Kind)
	assert.NotEqual(t, firstHandle, res.Handle)
	assert.Equal(t, entity.EmergencyHandle, res.Handle)
	assert.True(t, r.Release(res.Handle))
}

func TestEmergencyReservePrimedPerFactory(t *testing.T) {
	first, second := entity.NewArena(), entity.NewArena()
	registry.SharedEmergencyReserve(first).Prime(first)
	secondHandle := registry.SharedEmergencyReserve(second).Prime(second)

	r := registry.NewOriginal(second, registry.WithLogger(zaptest.NewLogger(t)))
	second.FailCreate(entity.DefaultType, true)

	res := r.Acquire(typeUnknown, entity.Identity())
	require.Equal(t, registry.Emergency, res.Kind)
	assert.Equal(t, secondHandle, res.Handle)
	assert.True(t, second.IsValid(res.Handle))
}

func TestEmergencyReserveRefusesForeignFactory(t *testing.T) {
	first, second := entity.NewArena(), entity.NewArena()
	reserve := registry.NewEmergencyReserve()

	h := reserve.Prime(first)
	require.True(t, first.IsValid(h))

	second.FailCreate(entity.DefaultType, true)
	r := registry.NewSimplified(second,
		registry.WithLogger(zaptest.NewLogger(t)),
		registry.WithEmergencyReserve(reserve))

	res := r.Acquire(typeUnknown, entity.Identity())
	assert.Equal(t, registry.Emergency, res.Kind)
	assert.Equal(t, entity.EmergencyHandle, res.Handle)
	assert.Equal(t, 0, second.Created())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pooled", registry.Pooled.String())
	assert.Equal(t, "direct", registry.DirectlyCreated.String())
	assert.Equal(t, "default", registry.Default.String())
	assert.Equal(t, "emergency", registry.Emergency.String())
	assert.Equal(t, "unknown", registry.Kind(42).String())
}
