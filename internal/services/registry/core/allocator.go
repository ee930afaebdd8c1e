package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

var errCounterExhausted = errors.New("record counter exhausted")

// Allocator issues record keys. The issued counter only moves through
// Commit, after the transaction that persisted the key has succeeded.
type Allocator struct {
	issued atomic.Uint64
}

// Load seeds the allocator with the persisted counter.
func (a *Allocator) Load(ctx context.Context, r storage.Reader) error {
	counter, err := r.Counter(ctx)
	if err != nil {
		return fmt.Errorf("load record counter: %w", err)
	}
	a.issued.Store(counter)
	return nil
}

// Issued returns the most recently committed key, which equals the number of
// records created.
func (a *Allocator) Issued() uint64 {
	return a.issued.Load()
}

// Next returns counter+1 without advancing anything.
func (a *Allocator) Next(ctx context.Context, r storage.Reader) (uint64, error) {
	counter, err := r.Counter(ctx)
	if err != nil {
		return 0, fmt.Errorf("read record counter: %w", err)
	}
	if issued := a.issued.Load(); counter != issued {
		return 0, fmt.Errorf("record counter is %d in storage, %d in memory", counter, issued)
	}
	if counter == math.MaxUint64 {
		return 0, errCounterExhausted
	}
	return counter + 1, nil
}

// Commit publishes key as issued. It fails if another commit got there first.
func (a *Allocator) Commit(key uint64) error {
	if !a.issued.CompareAndSwap(key-1, key) {
		return fmt.Errorf("record key %d committed out of order", key)
	}
	return nil
}
