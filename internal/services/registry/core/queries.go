package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/louisbranch/recordkeep/internal/platform/grpc/pagination"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

const (
	defaultListPageSize = 10
	maxListPageSize     = 50
)

var listPageSize = pagination.PageSizeConfig{Default: defaultListPageSize, Max: maxListPageSize}

// RecordPage is one page of records in ascending key order.
type RecordPage struct {
	Records       []domain.Record
	NextPageToken string
}

// TotalRecordCount returns the number of records created so far.
func (r *Registry) TotalRecordCount(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r == nil {
		return 0, fmt.Errorf("registry is not configured")
	}
	return r.allocator.Issued(), nil
}

// FetchFullRecord returns a snapshot of the record.
func (r *Registry) FetchFullRecord(ctx context.Context, key uint64) (domain.Record, error) {
	if r == nil {
		return domain.Record{}, fmt.Errorf("registry is not configured")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cached, ok := r.cache.get(key); ok {
		if err := ctx.Err(); err != nil {
			return domain.Record{}, err
		}
		return cached, nil
	}

	var record domain.Record
	err := r.view(ctx, func(rd storage.Reader) error {
		var err error
		record, err = loadRecord(ctx, rd, key)
		return err
	})
	if err != nil {
		return domain.Record{}, fmt.Errorf("fetch record: %w", err)
	}
	r.cache.put(record)
	return record, nil
}

func (r *Registry) FetchMetadata(ctx context.Context, key uint64) (string, error) {
	record, err := r.FetchFullRecord(ctx, key)
	return record.Metadata, err
}

func (r *Registry) FetchMetric(ctx context.Context, key uint64) (uint64, error) {
	record, err := r.FetchFullRecord(ctx, key)
	return record.Metric, err
}

func (r *Registry) FetchNotes(ctx context.Context, key uint64) (string, error) {
	record, err := r.FetchFullRecord(ctx, key)
	return record.Notes, err
}

// FetchTaxonomy returns the labels in their stored order.
func (r *Registry) FetchTaxonomy(ctx context.Context, key uint64) ([]string, error) {
	record, err := r.FetchFullRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	return slices.Clone(record.Taxonomy), nil
}

// FetchOperator returns the current owner.
func (r *Registry) FetchOperator(ctx context.Context, key uint64) (domain.Identity, error) {
	record, err := r.FetchFullRecord(ctx, key)
	return record.Owner, err
}

func (r *Registry) FetchGenesisBlock(ctx context.Context, key uint64) (uint64, error) {
	record, err := r.FetchFullRecord(ctx, key)
	return record.GenesisBlock, err
}

// CheckAccessPermission returns the stored grant flag for the pair, or
// PermissionDenied when the pair has no entry.
func (r *Registry) CheckAccessPermission(ctx context.Context, key uint64, identity domain.Identity) (bool, error) {
	var granted bool
	err := r.view(ctx, func(rd storage.Reader) error {
		grant, err := rd.GetGrant(ctx, key, identity.String())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.PermissionDenied(key)
			}
			return fmt.Errorf("get access grant: %w", err)
		}
		granted = grant.Granted
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check access permission: %w", err)
	}
	return granted, nil
}

// VerifyProtocolAuthority reports whether identity is the protocol authority.
func (r *Registry) VerifyProtocolAuthority(ctx context.Context, identity domain.Identity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r == nil {
		return false, fmt.Errorf("registry is not configured")
	}
	return !r.authority.IsZero() && r.authority == identity, nil
}

// VerifyRecordOwnership reports whether identity currently owns the record.
func (r *Registry) VerifyRecordOwnership(ctx context.Context, key uint64, identity domain.Identity) (bool, error) {
	record, err := r.FetchFullRecord(ctx, key)
	if err != nil {
		return false, err
	}
	return record.Owner == identity, nil
}

// ListRecords returns records in ascending key order. The page token is the
// NextPageToken of the previous page.
func (r *Registry) ListRecords(ctx context.Context, pageSize int32, pageToken string) (RecordPage, error) {
	afterKey, err := pagination.DecodeCursor(pageToken)
	if err != nil {
		return RecordPage{}, err
	}
	limit := pagination.ClampPageSize(pageSize, listPageSize)

	var page RecordPage
	err = r.view(ctx, func(rd storage.Reader) error {
		// One extra row tells us whether another page exists.
		rows, err := rd.ListRecords(ctx, afterKey, limit+1)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		hasMore := len(rows) > limit
		if hasMore {
			rows = rows[:limit]
		}
		page.Records = make([]domain.Record, 0, len(rows))
		for _, row := range rows {
			record, err := recordFromStorage(row)
			if err != nil {
				return err
			}
			page.Records = append(page.Records, record)
		}
		if hasMore && len(page.Records) > 0 {
			page.NextPageToken = pagination.EncodeCursor(page.Records[len(page.Records)-1].Key)
		}
		return nil
	})
	if err != nil {
		return RecordPage{}, err
	}
	return page, nil
}

// ListRecordEvents returns audit events for key with seq greater than
// afterSeq. The record must exist.
func (r *Registry) ListRecordEvents(ctx context.Context, key uint64, afterSeq uint64, pageSize int32) ([]domain.Event, error) {
	limit := pagination.ClampPageSize(pageSize, listPageSize)
	var events []domain.Event
	err := r.view(ctx, func(rd storage.Reader) error {
		if _, err := rd.GetRecord(ctx, key); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domain.RecordNotFound(key)
			}
			return fmt.Errorf("get record %d: %w", key, err)
		}
		rows, err := rd.ListEvents(ctx, key, afterSeq, limit)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		events = make([]domain.Event, 0, len(rows))
		for _, row := range rows {
			events = append(events, eventFromStorage(row))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list record events: %w", err)
	}
	return events, nil
}
