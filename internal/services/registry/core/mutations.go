package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

// CreateRecord validates fields, stores a new record owned by the invoker
// with an access grant for them, and returns its key. The record, the grant,
// the counter advance, and the audit event commit together or not at all.
func (r *Registry) CreateRecord(ctx context.Context, inv Invocation, fields domain.Fields) (uint64, error) {
	if err := requireIdentity(inv.Identity, "invoker"); err != nil {
		return 0, err
	}
	if err := domain.ValidateFields(fields); err != nil {
		return 0, err
	}

	var key uint64
	var created domain.Record
	err := r.mutate(ctx, func(w storage.Writer) error {
		next, err := r.allocator.Next(ctx, w)
		if err != nil {
			return err
		}
		created = domain.Record{
			Key:          next,
			Owner:        inv.Identity,
			GenesisBlock: inv.Clock,
			Fields:       fields.Clone(),
		}
		if err := w.InsertRecord(ctx, recordToStorage(created)); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				return domain.RecordAlreadyExists(next)
			}
			return fmt.Errorf("insert record: %w", err)
		}
		if err := r.grantInitial(ctx, w, next, inv.Identity); err != nil {
			return err
		}
		if err := w.SetCounter(ctx, next); err != nil {
			return fmt.Errorf("advance record counter: %w", err)
		}
		if err := appendEvent(ctx, w, created, domain.EventRecordCreated, inv); err != nil {
			return err
		}
		key = next
		return nil
	}, func() error {
		if err := r.allocator.Commit(key); err != nil {
			return err
		}
		r.cache.put(created)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}
	return key, nil
}

// UpdateRecord replaces the four owner-editable fields. Existence is checked
// first, then ownership, then field validity.
func (r *Registry) UpdateRecord(ctx context.Context, inv Invocation, key uint64, fields domain.Fields) error {
	var updated domain.Record
	err := r.mutate(ctx, func(w storage.Writer) error {
		current, err := loadRecord(ctx, w, key)
		if err != nil {
			return err
		}
		if err := domain.RequireOwner(current, inv.Identity); err != nil {
			return err
		}
		if err := domain.ValidateFields(fields); err != nil {
			return err
		}
		updated = current
		updated.Fields = fields.Clone()
		if err := w.ReplaceRecord(ctx, recordToStorage(updated)); err != nil {
			return fmt.Errorf("replace record: %w", err)
		}
		return appendEvent(ctx, w, updated, domain.EventRecordUpdated, inv)
	}, func() error {
		r.cache.put(updated)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// TransferOwnership hands the record to newOwner. Only the owner may call it;
// transferring to oneself is a no-op that still succeeds.
func (r *Registry) TransferOwnership(ctx context.Context, inv Invocation, key uint64, newOwner domain.Identity) error {
	var transferred domain.Record
	err := r.mutate(ctx, func(w storage.Writer) error {
		current, err := loadRecord(ctx, w, key)
		if err != nil {
			return err
		}
		if err := domain.RequireOwner(current, inv.Identity); err != nil {
			return err
		}
		// Records are never ownerless.
		if err := requireIdentity(newOwner, "new owner"); err != nil {
			return err
		}
		transferred = current
		transferred.Owner = newOwner
		if err := w.ReplaceRecord(ctx, recordToStorage(transferred)); err != nil {
			return fmt.Errorf("replace record: %w", err)
		}
		return appendEvent(ctx, w, transferred, domain.EventRecordOwnerTransferred, inv)
	}, func() error {
		r.cache.put(transferred)
		return nil
	})
	if err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}
	return nil
}

func (r *Registry) grantInitial(ctx context.Context, w storage.Writer, key uint64, identity domain.Identity) error {
	err := w.InsertGrant(ctx, storage.Grant{RecordKey: key, Identity: identity.String(), Granted: true})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return domain.RecordAlreadyExists(key)
		}
		return fmt.Errorf("insert access grant: %w", err)
	}
	return nil
}

func appendEvent(ctx context.Context, w storage.Writer, record domain.Record, eventType domain.EventType, inv Invocation) error {
	_, err := w.AppendEvent(ctx, storage.Event{
		RecordKey: record.Key,
		Type:      string(eventType),
		Actor:     inv.Identity.String(),
		Owner:     record.Owner.String(),
		Clock:     inv.Clock,
	})
	if err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

func loadRecord(ctx context.Context, r storage.Reader, key uint64) (domain.Record, error) {
	row, err := r.GetRecord(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Record{}, domain.RecordNotFound(key)
		}
		return domain.Record{}, fmt.Errorf("get record %d: %w", key, err)
	}
	return recordFromStorage(row)
}
