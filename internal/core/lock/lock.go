// Package lock provides the per-product exclusive scope required by the
// ledger and the batch allocator. Mutating operations on the same product are
// serialized; different products proceed in parallel.
package lock

import (
	"context"
	"sync"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
)

// Locker acquires an exclusive scope for one product.
type Locker interface {
	// Acquire blocks until the product's scope is held, then returns a
	// release function. The caller must invoke release exactly once.
	Acquire(ctx context.Context, productID id.ID) (release func(), err error)
}

// Keyed is an in-process Locker backed by one mutex per product.
// Suitable for a single-instance deployment; multi-instance deployments use
// RedisLocker so the exclusion spans processes.
type Keyed struct {
	mu    sync.Mutex
	locks map[id.ID]*productLock
}

type productLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyed creates an in-process keyed locker.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[id.ID]*productLock)}
}

// Acquire implements Locker. Lock entries are reference-counted and removed
// once the last holder releases, so the map does not grow unbounded.
func (k *Keyed) Acquire(ctx context.Context, productID id.ID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	pl, ok := k.locks[productID]
	if !ok {
		pl = &productLock{}
		k.locks[productID] = pl
	}
	pl.refs++
	k.mu.Unlock()

	pl.mu.Lock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			pl.mu.Unlock()
			k.mu.Lock()
			pl.refs--
			if pl.refs == 0 {
				delete(k.locks, productID)
			}
			k.mu.Unlock()
		})
	}
	return release, nil
}

var _ Locker = (*Keyed)(nil)
