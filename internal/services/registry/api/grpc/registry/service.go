// Package registry exposes the record registry as the
// recordkeep.registry.v1.RecordRegistry gRPC service.
package registry

import (
	"context"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
	"github.com/louisbranch/recordkeep/internal/platform/grpc/pagination"
	"github.com/louisbranch/recordkeep/internal/platform/requestctx"
	grpcmeta "github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/metadata"
	"github.com/louisbranch/recordkeep/internal/services/registry/clock"
	"github.com/louisbranch/recordkeep/internal/services/registry/core"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Registry is the core surface served over gRPC.
type Registry interface {
	CreateRecord(ctx context.Context, inv core.Invocation, fields domain.Fields) (uint64, error)
	UpdateRecord(ctx context.Context, inv core.Invocation, key uint64, fields domain.Fields) error
	TransferOwnership(ctx context.Context, inv core.Invocation, key uint64, newOwner domain.Identity) error
	TotalRecordCount(ctx context.Context) (uint64, error)
	FetchFullRecord(ctx context.Context, key uint64) (domain.Record, error)
	FetchMetadata(ctx context.Context, key uint64) (string, error)
	FetchMetric(ctx context.Context, key uint64) (uint64, error)
	FetchNotes(ctx context.Context, key uint64) (string, error)
	FetchTaxonomy(ctx context.Context, key uint64) ([]string, error)
	FetchOperator(ctx context.Context, key uint64) (domain.Identity, error)
	FetchGenesisBlock(ctx context.Context, key uint64) (uint64, error)
	CheckAccessPermission(ctx context.Context, key uint64, identity domain.Identity) (bool, error)
	VerifyProtocolAuthority(ctx context.Context, identity domain.Identity) (bool, error)
	VerifyRecordOwnership(ctx context.Context, key uint64, identity domain.Identity) (bool, error)
	ListRecords(ctx context.Context, pageSize int32, pageToken string) (core.RecordPage, error)
	ListRecordEvents(ctx context.Context, key uint64, afterSeq uint64, pageSize int32) ([]domain.Event, error)
}

var _ Registry = (*core.Registry)(nil)

// Service implements RegistryServer on top of a Registry.
type Service struct {
	registry Registry
	clock    clock.Source
}

// NewService creates a registry service. A nil clock uses a Monotonic clock
// for calls that carry no logical clock header.
func NewService(registry Registry, src clock.Source) *Service {
	if src == nil {
		src = clock.NewMonotonic()
	}
	return &Service{registry: registry, clock: src}
}

func (s *Service) ready() error {
	if s == nil || s.registry == nil {
		return status.Error(codes.Internal, "registry is not configured")
	}
	return nil
}

// invocation binds the authenticated caller. Calls without an identity never
// reach the core.
func (s *Service) invocation(ctx context.Context) (core.Invocation, error) {
	identity, err := domain.ParseIdentity(requestctx.IdentityFromContext(ctx))
	if err != nil {
		return core.Invocation{}, status.Errorf(codes.Unauthenticated, "%s header is required", grpcmeta.IdentityHeader)
	}
	return core.Invocation{Identity: identity, Clock: clock.FromContext(ctx, s.clock)}, nil
}

func handleError(ctx context.Context, err error) error {
	return apperrors.HandleError(err, grpcmeta.LocaleFromContext(ctx))
}

func (s *Service) CreateRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	inv, err := s.invocation(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := fieldsFromStruct(in)
	if err != nil {
		return nil, err
	}
	key, err := s.registry.CreateRecord(ctx, inv, fields)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return newStruct(map[string]any{fieldKey: formatUint(key)})
}

func (s *Service) UpdateRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	inv, err := s.invocation(ctx)
	if err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	fields, err := fieldsFromStruct(in)
	if err != nil {
		return nil, err
	}
	if err := s.registry.UpdateRecord(ctx, inv, key, fields); err != nil {
		return nil, handleError(ctx, err)
	}
	return &structpb.Struct{}, nil
}

func (s *Service) TransferOwnership(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	inv, err := s.invocation(ctx)
	if err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	raw, err := optionalString(in, fieldNewOwner)
	if err != nil {
		return nil, err
	}
	// A blank new owner reaches the core as the zero identity, which the core
	// rejects after the ownership checks.
	newOwner, _ := domain.ParseIdentity(raw)
	if err := s.registry.TransferOwnership(ctx, inv, key, newOwner); err != nil {
		return nil, handleError(ctx, err)
	}
	return &structpb.Struct{}, nil
}

func (s *Service) TotalRecordCount(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	count, err := s.registry.TotalRecordCount(ctx)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return newStruct(map[string]any{fieldCount: formatUint(count)})
}

// FetchFullRecord returns every column of one record.
func (s *Service) FetchFullRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	record, err := s.registry.FetchFullRecord(ctx, key)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return newStruct(map[string]any{fieldRecord: recordToMap(record)})
}

func (s *Service) FetchMetadata(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return fetchField(s, ctx, in, Registry.FetchMetadata, func(v string) (string, any) {
		return fieldMetadata, v
	})
}

func (s *Service) FetchMetric(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return fetchField(s, ctx, in, Registry.FetchMetric, func(v uint64) (string, any) {
		return fieldMetric, float64(v)
	})
}

func (s *Service) FetchNotes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return fetchField(s, ctx, in, Registry.FetchNotes, func(v string) (string, any) {
		return fieldNotes, v
	})
}

func (s *Service) FetchTaxonomy(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return fetchField(s, ctx, in, Registry.FetchTaxonomy, func(v []string) (string, any) {
		return fieldTaxonomy, stringsToAny(v)
	})
}

func (s *Service) FetchOperator(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return fetchField(s, ctx, in, Registry.FetchOperator, func(v domain.Identity) (string, any) {
		return fieldOwner, v.String()
	})
}

func (s *Service) FetchGenesisBlock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return fetchField(s, ctx, in, Registry.FetchGenesisBlock, func(v uint64) (string, any) {
		return fieldGenesisBlock, formatUint(v)
	})
}

func fetchField[T any](s *Service, ctx context.Context, in *structpb.Struct, fetch func(Registry, context.Context, uint64) (T, error), encode func(T) (string, any)) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	value, err := fetch(s.registry, ctx, key)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	name, encoded := encode(value)
	return newStruct(map[string]any{name: encoded})
}

func (s *Service) CheckAccessPermission(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	identity, err := requireIdentity(in, fieldIdentity)
	if err != nil {
		return nil, err
	}
	granted, err := s.registry.CheckAccessPermission(ctx, key, identity)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return newStruct(map[string]any{fieldGranted: granted})
}

func (s *Service) VerifyProtocolAuthority(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	identity, err := requireIdentity(in, fieldIdentity)
	if err != nil {
		return nil, err
	}
	verified, err := s.registry.VerifyProtocolAuthority(ctx, identity)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return newStruct(map[string]any{fieldVerified: verified})
}

func (s *Service) VerifyRecordOwnership(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	identity, err := requireIdentity(in, fieldIdentity)
	if err != nil {
		return nil, err
	}
	verified, err := s.registry.VerifyRecordOwnership(ctx, key, identity)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return newStruct(map[string]any{fieldVerified: verified})
}

// ListRecords returns a page of records in ascending key order.
func (s *Service) ListRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	pageSize, err := optionalInt32(in, fieldPageSize)
	if err != nil {
		return nil, err
	}
	pageToken, err := optionalString(in, fieldPageToken)
	if err != nil {
		return nil, err
	}
	if _, err := pagination.DecodeCursor(pageToken); err != nil {
		return nil, invalidArgument("%v", err)
	}
	page, err := s.registry.ListRecords(ctx, pageSize, pageToken)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	records := make([]any, 0, len(page.Records))
	for _, record := range page.Records {
		records = append(records, recordToMap(record))
	}
	return newStruct(map[string]any{
		fieldRecords:       records,
		fieldNextPageToken: page.NextPageToken,
	})
}

// ListRecordEvents returns audit events of one record after a sequence number.
func (s *Service) ListRecordEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	key, err := requireUint64(in, fieldKey)
	if err != nil {
		return nil, err
	}
	afterSeq, err := optionalUint64(in, fieldAfterSeq)
	if err != nil {
		return nil, err
	}
	pageSize, err := optionalInt32(in, fieldPageSize)
	if err != nil {
		return nil, err
	}
	events, err := s.registry.ListRecordEvents(ctx, key, afterSeq, pageSize)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	out := make([]any, 0, len(events))
	for _, event := range events {
		out = append(out, eventToMap(event))
	}
	return newStruct(map[string]any{fieldEvents: out})
}

var _ RegistryServer = (*Service)(nil)
