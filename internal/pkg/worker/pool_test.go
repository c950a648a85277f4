package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPools(t *testing.T) {
	pools, err := NewPools(context.Background(), DefaultPoolConfig())
	require.NoError(t, err)
	defer pools.Shutdown()

	assert.NotNil(t, pools.General)
	assert.NotNil(t, pools.Seed)
}

func TestPool_Submit(t *testing.T) {
	ctx := context.Background()
	pools, err := NewPools(ctx, PoolConfig{GeneralPoolSize: 10, SeedPoolSize: 1})
	require.NoError(t, err)
	defer pools.Shutdown()

	var executed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	err = pools.General.Submit(ctx, func(ctx context.Context) {
		executed.Store(true)
		wg.Done()
	})
	require.NoError(t, err)

	wg.Wait()
	assert.True(t, executed.Load())
}

func TestPool_Submit_CancelledContext(t *testing.T) {
	pools, err := NewPools(context.Background(), DefaultPoolConfig())
	require.NoError(t, err)
	defer pools.Shutdown()

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pools.General.Submit(cancelledCtx, func(ctx context.Context) {
		t.Error("Task should not execute with cancelled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPools_SubmitDetached(t *testing.T) {
	tests := []struct {
		name     string
		poolName string
	}{
		{"general pool", PoolGeneral},
		{"seed pool", PoolSeed},
		{"default fallback", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools, err := NewPools(context.Background(), DefaultPoolConfig())
			require.NoError(t, err)

			var executed atomic.Bool
			var wg sync.WaitGroup
			wg.Add(1)

			err = pools.SubmitDetached(tt.poolName, func(ctx context.Context) {
				executed.Store(true)
				wg.Done()
			})
			require.NoError(t, err)

			wg.Wait()
			pools.Shutdown()
			assert.True(t, executed.Load())
		})
	}
}

func TestPools_SeedPoolRejectsWhenBusy(t *testing.T) {
	pools, err := NewPools(context.Background(), PoolConfig{GeneralPoolSize: 1, SeedPoolSize: 1})
	require.NoError(t, err)
	defer pools.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pools.SubmitDetached(PoolSeed, func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	err = pools.SubmitDetached(PoolSeed, func(ctx context.Context) {})
	assert.Error(t, err)
	close(release)
}

func TestPools_Metrics(t *testing.T) {
	pools, err := NewPools(context.Background(), PoolConfig{GeneralPoolSize: 10, SeedPoolSize: 2})
	require.NoError(t, err)
	defer pools.Shutdown()

	m := pools.Metrics()
	assert.Equal(t, 10, m[PoolGeneral]["cap"])
	assert.Equal(t, 2, m[PoolSeed]["cap"])
}
