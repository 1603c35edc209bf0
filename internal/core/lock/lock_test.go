package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
)

func TestKeyed_MutualExclusion(t *testing.T) {
	locker := NewKeyed()
	productID := id.New()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		counter int
	)
	const workers = 50
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, productID)
			assert.NoError(t, err)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyed_IndependentProducts(t *testing.T) {
	locker := NewKeyed()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, id.New())
	require.NoError(t, err)
	defer releaseA()

	// A different product's scope is free even while A is held.
	done := make(chan struct{})
	go func() {
		releaseB, err := locker.Acquire(ctx, id.New())
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()
	<-done
}

func TestKeyed_ReleaseIdempotent(t *testing.T) {
	locker := NewKeyed()
	productID := id.New()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, productID)
	require.NoError(t, err)
	release()
	release() // second call is a no-op

	// Scope is reacquirable and the entry map is clean.
	release2, err := locker.Acquire(ctx, productID)
	require.NoError(t, err)
	release2()
	assert.Empty(t, locker.locks)
}

func TestKeyed_CancelledContext(t *testing.T) {
	locker := NewKeyed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := locker.Acquire(ctx, id.New())
	assert.Error(t, err)
}
