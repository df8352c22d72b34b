package test

import (
	"testing"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/pool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrewarmThenAcquireAll(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 5, 20)

	assert.Equal(t, 5, p.Prewarm(5))

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.PoolSize, 5)
	assert.Equal(t, 5, stats.CurrentAvailable)
	assert.Equal(t, 0, stats.CurrentActive)
	assert.Equal(t, uint64(5), stats.TotalCreated)

	acquireN(t, p, 5)

	stats = p.Stats()
	assert.Equal(t, 5, stats.CurrentActive)
	assert.Equal(t, 0, stats.CurrentAvailable)
	assert.Equal(t, 1.0, stats.HitRate, "all five acquisitions reuse prewarmed instances")

	h, err := p.Acquire(entity.Identity())
	require.NoError(t, err)
	assert.False(t, h.IsZero())

	stats = p.Stats()
	assert.Equal(t, uint64(6), stats.TotalCreated)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 5.0/6.0, stats.HitRate, 1e-9)
}

func TestAcquireAtHardLimitReportsExhaustion(t *testing.T) {
	p := createTestPool(t, newRecordingFactory(t), 5, 5)
	require.Equal(t, 5, p.Prewarm(5))
	acquireN(t, p, 5)

	h, err := p.Acquire(entity.Identity())
	assert.ErrorIs(t, err, pool.ErrExhausted)
	assert.True(t, h.IsZero())

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.Exhaustions)
	assert.Equal(t, uint64(5), stats.TotalCreated)
	assert.Equal(t, 5, stats.PoolSize)
}

func TestPrewarmStopsAtHardLimit(t *testing.T) {
	p := createTestPool(t, newRecordingFactory(t), 0, 3)

	assert.Equal(t, 3, p.Prewarm(10))
	assert.Equal(t, 0, p.Prewarm(1))
	assert.Equal(t, 0, p.Prewarm(-4))
	assert.Equal(t, 3, p.Stats().CurrentAvailable)
}

func TestPrewarmStopsOnFactoryFailure(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)

	f.FailCreate(typeA, true)
	assert.Equal(t, 0, p.Prewarm(4))
	assert.Equal(t, 0, p.Stats().PoolSize)
}

func TestAcquireReusesMostRecentlyReleased(t *testing.T) {
	p := createTestPool(t, newRecordingFactory(t), 0, 0)
	handles := acquireN(t, p, 3)

	require.NoError(t, p.Release(handles[0]))
	require.NoError(t, p.Release(handles[2]))

	h, err := p.Acquire(entity.Identity())
	require.NoError(t, err)
	assert.Equal(t, handles[2], h)

	h, err = p.Acquire(entity.Identity())
	require.NoError(t, err)
	assert.Equal(t, handles[0], h)
}

func TestAcquireAppliesPlacement(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)

	h, err := p.Acquire(entity.At(4, 5, 6))
	require.NoError(t, err)

	inst, ok := f.Lookup(h)
	require.True(t, ok)
	assert.True(t, inst.Active)
	assert.Equal(t, entity.Vector3{X: 4, Y: 5, Z: 6}, inst.Placement.Position)

	require.NoError(t, p.Release(h))
	inst, _ = f.Lookup(h)
	assert.False(t, inst.Active, "release resets the instance")
}

func TestReleaseRejectsForeignHandles(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)
	h := acquireN(t, p, 1)[0]
	before := p.Stats()

	other, err := f.CreateInstance(typeB, entity.Identity())
	require.NoError(t, err)
	assert.ErrorIs(t, p.Release(other), pool.ErrInvalidType)

	stray, err := f.CreateInstance(typeA, entity.Identity())
	require.NoError(t, err)
	assert.ErrorIs(t, p.Release(stray), pool.ErrNotActive)

	assert.ErrorIs(t, p.Release(entity.Handle{}), pool.ErrInvalidType)
	assert.Equal(t, before, p.Stats())

	require.NoError(t, p.Release(h))
	assert.ErrorIs(t, p.Release(h), pool.ErrNotActive, "double release")
}

func TestReleaseOfExternallyDestroyedInstance(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)
	h := acquireN(t, p, 1)[0]

	f.DestroyInstance(h)
	assert.ErrorIs(t, p.Release(h), pool.ErrInvalidHandle)
	assert.Equal(t, 0, p.Stats().PoolSize)
}

func TestAcquireSkipsInvalidatedAvailableInstances(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)
	require.Equal(t, 2, p.Prewarm(2))

	// invalidate whatever is on top of the stack
	h := acquireN(t, p, 1)[0]
	require.NoError(t, p.Release(h))
	f.DestroyInstance(h)

	got, err := p.Acquire(entity.Identity())
	require.NoError(t, err)
	assert.NotEqual(t, h, got)
	assert.Equal(t, uint64(1), p.Stats().InvalidDropped)
}

func TestPeriodicPurgeDropsInvalidEntries(t *testing.T) {
	f := newRecordingFactory(t)
	cfg, err := pool.NewConfigBuilder().SetCleanupFrequency(2).Build()
	require.NoError(t, err)
	p, err := pool.New(typeA, f, cfg)
	require.NoError(t, err)

	handles := acquireN(t, p, 3)
	for _, h := range handles {
		require.NoError(t, p.Release(h))
	}

	// the two entries at the bottom of the stack die behind the pool's back
	f.DestroyInstance(handles[0])
	f.DestroyInstance(handles[1])

	// fourth request triggers the purge before popping
	h, err := p.Acquire(entity.Identity())
	require.NoError(t, err)
	assert.Equal(t, handles[2], h)

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.InvalidDropped)
	assert.Equal(t, 0, stats.CurrentAvailable)
	assert.Equal(t, 1, stats.CurrentActive)
}

func TestClearDestroysInstancesAndResetsCounters(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)
	require.Equal(t, 4, p.Prewarm(4))
	acquireN(t, p, 2)

	p.Clear()

	assert.Equal(t, pool.Statistics{Type: typeA}, p.Stats())
	assert.Equal(t, 0, f.Live())
}

func TestClearKeepsActiveWhenConfigured(t *testing.T) {
	f := newRecordingFactory(t)
	cfg, err := pool.NewConfigBuilder().SetDestroyActiveOnClear(false).Build()
	require.NoError(t, err)
	p, err := pool.New(typeA, f, cfg)
	require.NoError(t, err)

	require.Equal(t, 3, p.Prewarm(3))
	h := acquireN(t, p, 1)[0]

	p.Clear()
	stats := p.Stats()
	assert.Equal(t, 1, stats.CurrentActive)
	assert.Equal(t, 0, stats.CurrentAvailable)
	assert.Equal(t, uint64(0), stats.TotalCreated)

	require.NoError(t, p.Release(h))
	assert.Equal(t, 1, p.Stats().CurrentAvailable)
}

func TestConfigureIsIdempotentAndTrims(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 10)
	require.Equal(t, 6, p.Prewarm(6))
	held := acquireN(t, p, 2)

	cfg, err := pool.NewConfig(0, 10)
	require.NoError(t, err)
	assert.True(t, p.Configure(cfg))
	assert.True(t, p.Configure(cfg))
	assert.Equal(t, 6, p.Stats().PoolSize)

	tooLow, err := pool.NewConfig(0, 1)
	require.NoError(t, err)
	assert.False(t, p.Configure(tooLow), "limit below the active count is refused")
	assert.Equal(t, 10, p.Config().HardLimit())
	assert.Equal(t, 6, p.Stats().PoolSize)

	lower, err := pool.NewConfig(0, 2)
	require.NoError(t, err)
	require.True(t, p.Configure(lower))

	stats := p.Stats()
	assert.Equal(t, 2, stats.CurrentActive)
	assert.Equal(t, 0, stats.CurrentAvailable)
	assert.Equal(t, uint64(4), stats.Destroyed)
	assert.LessOrEqual(t, stats.CurrentActive+stats.CurrentAvailable, 2)

	require.NoError(t, p.Release(held[0]))
	require.NoError(t, p.Release(held[1]))

	stats = p.Stats()
	assert.Equal(t, 2, stats.PoolSize)
	assert.Equal(t, 2, stats.CurrentAvailable)
	assert.Equal(t, uint64(4), stats.Destroyed)

	assert.False(t, p.Configure(nil))
}

func TestLifecycleHooks(t *testing.T) {
	f := newRecordingFactory(t)
	p := createTestPool(t, f, 0, 0)

	require.Equal(t, 2, p.Prewarm(2))
	handles := acquireN(t, p, 3)
	for _, h := range handles {
		require.NoError(t, p.Release(h))
	}

	created, activated, returned := f.counts()
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, activated)
	assert.Equal(t, 3, returned)
}

func TestOwns(t *testing.T) {
	p := createTestPool(t, newRecordingFactory(t), 0, 0)
	h := acquireN(t, p, 1)[0]

	assert.True(t, p.Owns(h))
	require.NoError(t, p.Release(h))
	assert.False(t, p.Owns(h))
	assert.False(t, p.Owns(entity.Handle{Type: typeB, Generation: 1}))
}

func TestNewRejectsBadInput(t *testing.T) {
	f := newRecordingFactory(t)

	_, err := pool.New("", f, nil)
	assert.ErrorIs(t, err, entity.ErrInvalidType)

	_, err = pool.New(typeA, nil, nil)
	assert.ErrorIs(t, err, pool.ErrNilFactory)

	p, err := pool.New(typeA, f, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Config().HardLimit())
	assert.Equal(t, 50, p.Config().CleanupFrequency())
}

func TestStatisticsString(t *testing.T) {
	p := createTestPool(t, newRecordingFactory(t), 0, 8)
	require.Equal(t, 2, p.Prewarm(2))
	acquireN(t, p, 1)

	out := p.Stats().String()
	assert.Contains(t, out, "Pool Stats: enemy.grunt")
	assert.Contains(t, out, "Hard Limit          : 8")
	assert.Contains(t, out, "Hit Rate            : 100.00%")
}
