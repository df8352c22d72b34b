package facade_test

import (
	"context"
	"testing"

	"github.com/AlexsanderHamir/entitypool/config"
	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/facade"
	"github.com/AlexsanderHamir/entitypool/metrics"
	"github.com/AlexsanderHamir/entitypool/migration"
	"github.com/AlexsanderHamir/entitypool/pool"
	"github.com/AlexsanderHamir/entitypool/registry"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	typeA entity.TypeKey = "enemy.grunt"
	typeB entity.TypeKey = "projectile.bolt"
)

func newFacade(t *testing.T, opts ...facade.Option) (*facade.Facade, *entity.Arena) {
	t.Helper()

	arena := entity.NewArena()
	require.NoError(t, arena.Register(typeA, nil))
	require.NoError(t, arena.Register(typeB, nil))

	opts = append([]facade.Option{
		facade.WithLogger(zaptest.NewLogger(t)),
		facade.WithEmergencyReserve(registry.NewEmergencyReserve()),
		facade.WithManagerOptions(migration.WithBuildMode(migration.Mixed), migration.WithSeed(1, 2)),
	}, opts...)

	f, err := facade.New(arena, opts...)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f, arena
}

func TestNewRequiresFactory(t *testing.T) {
	_, err := facade.New(nil)
	assert.ErrorIs(t, err, facade.ErrNilFactory)
}

func TestPrewarmedPoolServesHits(t *testing.T) {
	f, _ := newFacade(t)

	require.True(t, f.RegisterType(typeA, 5, 20))
	require.Equal(t, 5, f.Prewarm(typeA, 5))

	s, ok := f.Stats(typeA)
	require.True(t, ok)
	assert.GreaterOrEqual(t, s.PoolSize, 5)
	assert.Equal(t, 5, s.CurrentAvailable)
	assert.Equal(t, 0, s.CurrentActive)

	for range 5 {
		h := f.Acquire(typeA, entity.Identity())
		require.False(t, h.IsZero())
	}

	s, _ = f.Stats(typeA)
	assert.Equal(t, 5, s.CurrentActive)
	assert.Equal(t, 0, s.CurrentAvailable)
	assert.Equal(t, 1.0, s.HitRate)

	res := f.AcquireResult(typeA, entity.Identity())
	assert.Equal(t, registry.Pooled, res.Kind)
	s, _ = f.Stats(typeA)
	assert.Equal(t, uint64(6), s.TotalCreated)
}

func TestExhaustedPoolStillServesCaller(t *testing.T) {
	f, _ := newFacade(t)

	require.True(t, f.RegisterType(typeA, 5, 5))
	require.Equal(t, 5, f.Prewarm(typeA, 5))
	for range 5 {
		f.Acquire(typeA, entity.Identity())
	}

	res := f.AcquireResult(typeA, entity.Identity())
	assert.Equal(t, registry.DirectlyCreated, res.Kind)
	assert.False(t, res.Handle.IsZero())

	s, _ := f.Stats(typeA)
	assert.Equal(t, uint64(1), s.Exhaustions)
	assert.Equal(t, 5, s.CurrentActive)

	assert.True(t, f.IsPooled(res.Handle))
	assert.True(t, f.Release(res.Handle))
	assert.False(t, f.IsPooled(res.Handle))
}

func TestForeignReleaseLeavesStatsUntouched(t *testing.T) {
	f, _ := newFacade(t)
	require.True(t, f.RegisterType(typeA, 0, 4))
	h := f.Acquire(typeA, entity.Identity())

	before, _ := f.Stats(typeA)
	assert.False(t, f.Release(entity.Handle{Slot: 1234, Generation: 9, Type: typeA}))
	assert.False(t, f.Release(entity.Handle{}))
	after, _ := f.Stats(typeA)
	assert.Equal(t, before, after)

	assert.True(t, f.Release(h))
	assert.False(t, f.Release(h), "second release of the same handle")
}

func TestReleaseFollowsIssuingRegistry(t *testing.T) {
	f, _ := newFacade(t)
	require.True(t, f.RegisterType(typeA, 0, 0))

	require.True(t, f.SwitchToSimplified())
	h := f.Acquire(typeA, entity.Identity())

	require.True(t, f.SwitchToOriginal())
	require.True(t, f.Release(h))

	_, simplified := f.Manager().Registries()
	s, ok := simplified.Stats(typeA)
	require.True(t, ok)
	assert.Equal(t, 1, s.CurrentAvailable)

	s, _ = f.Original().Stats(typeA)
	assert.Equal(t, uint64(0), s.TotalCreated)
}

func TestSwitchSequence(t *testing.T) {
	f, _ := newFacade(t)

	f.SwitchToSimplified()
	f.SwitchToOriginal()
	f.Toggle()
	assert.Equal(t, migration.Simplified, f.CurrentImplementation())
}

func TestConsistencyValidation(t *testing.T) {
	f, _ := newFacade(t)
	require.True(t, f.RegisterType(typeA, 4, 16))
	f.Prewarm(typeA, 4)

	assert.True(t, f.ValidateImplementationConsistency(typeA, 100))
	assert.False(t, f.ValidateImplementationConsistency("", 100))
	assert.Contains(t, f.MigrationReport(), "Passed              : 100")
	assert.Contains(t, f.ConfigurationSummary(), "Build Mode          : Mixed")
}

func TestABTestingThroughFacade(t *testing.T) {
	f, _ := newFacade(t)
	require.True(t, f.EnableABTesting(1))
	assert.Equal(t, migration.Testing, f.Manager().State())

	for range 10 {
		f.Acquire(typeA, entity.Identity())
	}
	assert.Equal(t, uint64(10), f.Manager().Stats().SimplifiedCalls)

	f.DisableABTesting()
	assert.NotEqual(t, migration.Testing, f.Manager().State())
}

func TestUnregisteredTypeFallsBack(t *testing.T) {
	f, _ := newFacade(t)

	assert.False(t, f.IsTypeRegistered(typeB))
	res := f.AcquireResult(typeB, entity.Identity())
	assert.Equal(t, registry.DirectlyCreated, res.Kind)

	res = f.AcquireResult("never.registered", entity.Identity())
	assert.Equal(t, registry.Default, res.Kind)
	assert.True(t, f.Release(res.Handle))
}

func TestRegisterTypeRejectsBadInput(t *testing.T) {
	f, _ := newFacade(t)
	assert.False(t, f.RegisterType(typeA, 10, 2))
	assert.False(t, f.RegisterType("", 0, 0))
	assert.False(t, f.IsTypeRegistered(typeA))
	assert.Equal(t, 0, f.Prewarm(typeA, 3))
}

func TestBatchOperations(t *testing.T) {
	f, arena := newFacade(t)
	require.True(t, f.RegisterType(typeA, 0, 3))

	placements := []entity.Placement{entity.At(1, 0, 0), entity.At(2, 0, 0), entity.At(3, 0, 0), entity.At(4, 0, 0)}
	handles := f.AcquireBatch(typeA, placements)
	require.Len(t, handles, 4)
	for i, h := range handles {
		require.False(t, h.IsZero())
		inst, ok := arena.Lookup(h)
		require.True(t, ok)
		assert.Equal(t, placements[i], inst.Placement)
	}

	s, _ := f.Stats(typeA)
	assert.Equal(t, 3, s.CurrentActive)

	handles = append(handles, entity.Handle{Slot: 77, Generation: 1, Type: typeA})
	assert.Equal(t, 4, f.ReleaseBatch(handles))

	s, _ = f.Stats(typeA)
	assert.Equal(t, 3, s.CurrentAvailable)
}

func TestClearAllEmptiesBothRegistries(t *testing.T) {
	f, arena := newFacade(t)
	require.True(t, f.RegisterType(typeA, 0, 0))
	require.True(t, f.RegisterType(typeB, 0, 0))
	f.Prewarm(typeA, 3)
	f.Prewarm(typeB, 2)
	require.Equal(t, 10, arena.Live())

	f.ClearPool(typeB)
	assert.Equal(t, 6, arena.Live())

	f.ClearAll()
	assert.Equal(t, 0, arena.Live())
	for _, s := range f.AllStats() {
		assert.Equal(t, 0, s.PoolSize)
	}
}

func TestBootstrap(t *testing.T) {
	reserve := registry.NewEmergencyReserve()
	f, _ := newFacade(t, facade.WithEmergencyReserve(reserve))

	err := f.Bootstrap(context.Background(), []config.PoolSpec{
		{Type: string(typeA), InitialSize: 4, HardLimit: 8},
		{Type: string(typeB), InitialSize: 2, HardLimit: 8, PrewarmOnRegister: true},
	})
	require.NoError(t, err)

	_, ok := reserve.Handle()
	assert.True(t, ok)

	for _, r := range []registry.Registry{f.Original(), f.Manager().Registry(migration.Simplified)} {
		s, ok := r.Stats(typeA)
		require.True(t, ok, r.Name())
		assert.Equal(t, 4, s.CurrentAvailable, r.Name())

		s, ok = r.Stats(typeB)
		require.True(t, ok, r.Name())
		assert.Equal(t, 2, s.CurrentAvailable, r.Name())
	}
}

func TestBootstrapErrors(t *testing.T) {
	f, _ := newFacade(t)

	err := f.Bootstrap(context.Background(), []config.PoolSpec{
		{Type: string(typeA), InitialSize: 9, HardLimit: 3},
	})
	assert.ErrorIs(t, err, pool.ErrInvalidConfig)

	err = f.Bootstrap(context.Background(), []config.PoolSpec{{Type: ""}})
	assert.ErrorIs(t, err, facade.ErrRegister)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = f.Bootstrap(ctx, []config.PoolSpec{{Type: string(typeB)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Migration.Implementation = "original"
	cfg.Migration.PassThreshold = 0.5
	cfg.Migration.ABTesting = true
	cfg.Migration.ABRatio = 0

	arena := entity.NewArena()
	f, err := facade.FromConfig(arena, &cfg,
		facade.WithLogger(zaptest.NewLogger(t)),
		facade.WithEmergencyReserve(registry.NewEmergencyReserve()),
		facade.WithManagerOptions(migration.WithBuildMode(migration.Mixed)))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, migration.Original, f.CurrentImplementation())
	enabled, ratio := f.Manager().ABTesting()
	assert.True(t, enabled)
	assert.Equal(t, 0.0, ratio)
	assert.Contains(t, f.ConfigurationSummary(), "Pass Threshold      : 50.0%")
}

func TestPublishMetrics(t *testing.T) {
	c := metrics.NewCollector("", false)
	f, _ := newFacade(t, facade.WithMetrics(c))

	require.True(t, f.RegisterType(typeA, 0, 0))
	h := f.Acquire(typeA, entity.Identity())
	f.Release(h)
	f.PublishMetrics()

	assert.Equal(t, 2, testutil.CollectAndCount(c.Registry(), "entitypool_pool_size"))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Registry(), "entitypool_registry_acquisitions_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Registry(), "entitypool_migration_routed_calls_total"))
}

func TestEmergencyHandleBelongsToOwnFactory(t *testing.T) {
	newBare := func(arena *entity.Arena) *facade.Facade {
		f, err := facade.New(arena, facade.WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		t.Cleanup(f.Close)
		return f
	}

	first, second := entity.NewArena(), entity.NewArena()
	f1, f2 := newBare(first), newBare(second)

	require.NoError(t, f1.Bootstrap(context.Background(), nil))
	require.NoError(t, f2.Bootstrap(context.Background(), nil))

	first.FailCreate(entity.DefaultType, true)
	second.FailCreate(entity.DefaultType, true)

	r1 := f1.AcquireResult("never.registered", entity.Identity())
	r2 := f2.AcquireResult("never.registered", entity.Identity())
	require.Equal(t, registry.Emergency, r1.Kind)
	require.Equal(t, registry.Emergency, r2.Kind)

	assert.True(t, first.IsValid(r1.Handle))
	assert.True(t, second.IsValid(r2.Handle))
	assert.True(t, f2.Release(r2.Handle))
}

func TestHotspotsReadEffectiveRegistry(t *testing.T) {
	f, _ := newFacade(t)
	require.True(t, f.RegisterType(typeA, 0, 1))
	f.SwitchToSimplified()

	for range 10 {
		f.Acquire(typeA, entity.Identity())
	}

	hs := f.Hotspots(registry.DefaultHotspotThresholds())
	kinds := make([]registry.HotspotKind, 0, len(hs))
	for _, h := range hs {
		kinds = append(kinds, h.Kind)
	}
	assert.ElementsMatch(t, []registry.HotspotKind{registry.LowHitRate, registry.HighExhaustion, registry.NearLimit}, kinds)
	assert.Contains(t, f.DebugSummary(registry.DefaultHotspotThresholds()), "Registry            : simplified")

	f.SwitchToOriginal()
	assert.Empty(t, f.Hotspots(registry.DefaultHotspotThresholds()))
}
