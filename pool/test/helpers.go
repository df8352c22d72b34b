package test

import (
	"sync"
	"testing"

	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/pool"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	typeA       entity.TypeKey = "enemy.grunt"
	typeB       entity.TypeKey = "projectile.bolt"
	typeUnknown entity.TypeKey = "never.registered"
)

// recordingFactory is an arena that also counts lifecycle callbacks.
type recordingFactory struct {
	*entity.Arena

	mu        sync.Mutex
	created   int
	activated int
	returned  int
}

func newRecordingFactory(t testing.TB) *recordingFactory {
	t.Helper()

	a := entity.NewArena()
	require.NoError(t, a.Register(typeA, func() any { return "grunt" }))
	require.NoError(t, a.Register(typeB, func() any { return "bolt" }))
	return &recordingFactory{Arena: a}
}

func (f *recordingFactory) OnCreated(entity.Handle) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
}

func (f *recordingFactory) OnActivated(entity.Handle) {
	f.mu.Lock()
	f.activated++
	f.mu.Unlock()
}

func (f *recordingFactory) OnReturnedToPool(entity.Handle) {
	f.mu.Lock()
	f.returned++
	f.mu.Unlock()
}

func (f *recordingFactory) counts() (created, activated, returned int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.activated, f.returned
}

func createTestPool(t testing.TB, factory entity.Factory, initialSize, hardLimit int) *pool.TypedPool {
	t.Helper()

	cfg, err := pool.NewConfigBuilder().
		SetInitialSize(initialSize).
		SetHardLimit(hardLimit).
		SetVerbose(true).
		Build()
	require.NoError(t, err)

	p, err := pool.New(typeA, factory, cfg, pool.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

func acquireN(t testing.TB, p *pool.TypedPool, n int) []entity.Handle {
	t.Helper()

	handles := make([]entity.Handle, 0, n)
	for range n {
		h, err := p.Acquire(entity.Identity())
		require.NoError(t, err)
		handles = append(handles, h)
	}
	return handles
}
