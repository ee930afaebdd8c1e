// Package clock supplies logical clock readings for record creation.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/recordkeep/internal/platform/requestctx"
)

// Source returns the current logical clock value.
type Source interface {
	Now() uint64
}

// Func adapts a function to Source.
type Func func() uint64

// Now implements Source.
func (f Func) Now() uint64 {
	return f()
}

// Monotonic is a hybrid clock: wall-clock milliseconds, nudged forward so
// consecutive readings never repeat or go backwards.
type Monotonic struct {
	mu   sync.Mutex
	last uint64
	wall func() time.Time
}

// NewMonotonic returns a clock driven by time.Now.
func NewMonotonic() *Monotonic {
	return &Monotonic{wall: time.Now}
}

// Now returns max(last+1, wall ms).
func (m *Monotonic) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	wall := m.wall
	if wall == nil {
		wall = time.Now
	}
	next := uint64(wall().UnixMilli())
	if next <= m.last {
		next = m.last + 1
	}
	m.last = next
	return next
}

// FromContext prefers a host-supplied clock on ctx and falls back to src.
func FromContext(ctx context.Context, src Source) uint64 {
	if value, ok := requestctx.LogicalClockFromContext(ctx); ok {
		return value
	}
	if src == nil {
		return 0
	}
	return src.Now()
}
