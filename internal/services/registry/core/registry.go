// Package core implements the permissioned record registry: creation under
// field validation, owner-only mutation, and read projections.
//
// Mutations are serialized and each runs inside a single storage transaction,
// so a failed operation leaves no observable change.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

// DefaultCacheTTL is how long committed record snapshots stay cached.
const DefaultCacheTTL = time.Minute

// Invocation carries the host-supplied facts of one call.
type Invocation struct {
	Identity domain.Identity
	Clock    uint64
}

// Options configures a Registry.
type Options struct {
	// ProtocolAuthority is persisted on first initialization. Later values
	// that differ from the persisted one are ignored.
	ProtocolAuthority string
	// CacheTTL of zero disables the snapshot cache.
	CacheTTL time.Duration
	Logf     func(string, ...any)
}

// Registry is the only writer of registry state.
type Registry struct {
	store     storage.Store
	allocator Allocator
	cache     *snapshotCache
	authority domain.Identity
	logf      func(string, ...any)

	// mu serializes mutations against each other and against cache fills.
	mu sync.RWMutex
}

// New loads persisted state from store and establishes the protocol
// authority.
func New(ctx context.Context, store storage.Store, opts Options) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	r := &Registry{
		store: store,
		cache: newSnapshotCache(opts.CacheTTL),
		logf:  logf,
	}

	var configured domain.Identity
	if opts.ProtocolAuthority != "" {
		identity, err := domain.ParseIdentity(opts.ProtocolAuthority)
		if err != nil {
			return nil, fmt.Errorf("protocol authority: %w", err)
		}
		configured = identity
	}

	err := store.Update(ctx, func(w storage.Writer) error {
		if err := r.allocator.Load(ctx, w); err != nil {
			return err
		}
		stored, err := w.ProtocolAuthority(ctx)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if configured.IsZero() {
				return nil
			}
			r.authority = configured
			return w.SetProtocolAuthority(ctx, configured.String())
		case err != nil:
			return fmt.Errorf("load protocol authority: %w", err)
		}
		persisted, err := domain.ParseIdentity(stored)
		if err != nil {
			return fmt.Errorf("persisted protocol authority: %w", err)
		}
		r.authority = persisted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("initialize registry: %w", err)
	}

	switch {
	case r.authority.IsZero():
		logf("registry has no protocol authority; authority checks will report false")
	case !configured.IsZero() && configured != r.authority:
		logf("ignoring configured protocol authority %q; registry is fixed to %q", configured, r.authority)
	}
	return r, nil
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	r.cache.flush()
	return r.store.Close()
}

// mutate runs fn in one write transaction while holding the mutation lock.
// committed runs under the same lock once the transaction has committed.
func (r *Registry) mutate(ctx context.Context, fn func(storage.Writer) error, committed func() error) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("registry is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Update(ctx, fn); err != nil {
		return err
	}
	return committed()
}

func (r *Registry) view(ctx context.Context, fn func(storage.Reader) error) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("registry is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.store.View(ctx, fn)
}

func requireIdentity(identity domain.Identity, role string) error {
	if identity.IsZero() {
		return apperrors.New(apperrors.CodeInvalidOperator, role+" identity is required")
	}
	return nil
}
