package registry

import (
	"context"
	"net"
	"slices"
	"sync"
	"testing"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
	"github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/interceptors"
	grpcmeta "github.com/louisbranch/recordkeep/internal/services/registry/api/grpc/metadata"
	"github.com/louisbranch/recordkeep/internal/services/registry/clock"
	"github.com/louisbranch/recordkeep/internal/services/registry/core"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type auditLog struct {
	mu      sync.Mutex
	entries []interceptors.AuditEntry
}

func (a *auditLog) record(e interceptors.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *auditLog) last() interceptors.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return interceptors.AuditEntry{}
	}
	return a.entries[len(a.entries)-1]
}

type loopback struct {
	client *Client
	conn   *grpc.ClientConn
	audit  *auditLog
}

func startLoopback(t *testing.T) loopback {
	t.Helper()
	reg, err := core.New(context.Background(), memory.New(), core.Options{
		ProtocolAuthority: "root",
		CacheTTL:          core.DefaultCacheTTL,
		Logf:              t.Logf,
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	audit := &auditLog{}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcmeta.UnaryServerInterceptor(nil),
		interceptors.AuditInterceptor(audit.record),
	))
	RegisterRegistryServer(server, NewService(reg, clock.Func(func() uint64 { return 42 })))
	go func() { _ = server.Serve(listener) }()

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
		_ = reg.Close()
	})
	return loopback{client: NewClient(conn), conn: conn, audit: audit}
}

func as(identity string) context.Context {
	return grpcmeta.OutgoingContext(context.Background(), identity, nil, "")
}

func sampleFields() domain.Fields {
	return domain.Fields{Metadata: "doc-1", Metric: 500, Notes: "first", Taxonomy: []string{"alpha", "beta"}}
}

func TestLoopbackCreateAndFetch(t *testing.T) {
	lb := startLoopback(t)
	ctx := as("alice")

	key, err := lb.client.CreateRecord(ctx, sampleFields())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if key != 1 {
		t.Fatalf("key = %d, want 1", key)
	}

	record, err := lb.client.FetchFullRecord(ctx, key)
	if err != nil {
		t.Fatalf("fetch record: %v", err)
	}
	want := domain.Record{Key: 1, Owner: domain.MustIdentity("alice"), GenesisBlock: 42, Fields: sampleFields()}
	if !record.Equal(want) {
		t.Fatalf("record = %+v, want %+v", record, want)
	}

	count, err := lb.client.TotalRecordCount(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count = %d, %v; want 1", count, err)
	}
	meta, err := lb.client.FetchMetadata(ctx, key)
	if err != nil || meta != "doc-1" {
		t.Fatalf("metadata = %q, %v", meta, err)
	}
	metric, err := lb.client.FetchMetric(ctx, key)
	if err != nil || metric != 500 {
		t.Fatalf("metric = %d, %v", metric, err)
	}
	notes, err := lb.client.FetchNotes(ctx, key)
	if err != nil || notes != "first" {
		t.Fatalf("notes = %q, %v", notes, err)
	}
	taxonomy, err := lb.client.FetchTaxonomy(ctx, key)
	if err != nil || !slices.Equal(taxonomy, []string{"alpha", "beta"}) {
		t.Fatalf("taxonomy = %v, %v", taxonomy, err)
	}
	operator, err := lb.client.FetchOperator(ctx, key)
	if err != nil || operator != "alice" {
		t.Fatalf("operator = %q, %v", operator, err)
	}
	genesis, err := lb.client.FetchGenesisBlock(ctx, key)
	if err != nil || genesis != 42 {
		t.Fatalf("genesis = %d, %v", genesis, err)
	}
}

func TestLoopbackMutationsRequireIdentity(t *testing.T) {
	lb := startLoopback(t)
	_, err := lb.client.CreateRecord(context.Background(), sampleFields())
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
	count, err := lb.client.TotalRecordCount(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("count = %d, %v; want 0", count, err)
	}
}

func TestLoopbackDomainErrors(t *testing.T) {
	lb := startLoopback(t)
	key, err := lb.client.CreateRecord(as("alice"), sampleFields())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}

	tests := []struct {
		name     string
		call     func() error
		wantGRPC codes.Code
		wantCode apperrors.Code
	}{
		{
			name: "unknown key",
			call: func() error {
				_, err := lb.client.FetchFullRecord(as("alice"), key+1)
				return err
			},
			wantGRPC: codes.NotFound,
			wantCode: apperrors.CodeRecordNotFound,
		},
		{
			name: "non-owner update",
			call: func() error {
				return lb.client.UpdateRecord(as("bob"), key, sampleFields())
			},
			wantGRPC: codes.PermissionDenied,
			wantCode: apperrors.CodeAuthFailure,
		},
		{
			name: "invalid metric",
			call: func() error {
				fields := sampleFields()
				fields.Metric = 0
				_, err := lb.client.CreateRecord(as("alice"), fields)
				return err
			},
			wantGRPC: codes.InvalidArgument,
			wantCode: apperrors.CodeInvalidMetrics,
		},
		{
			name: "invalid taxonomy",
			call: func() error {
				fields := sampleFields()
				fields.Taxonomy = nil
				_, err := lb.client.CreateRecord(as("alice"), fields)
				return err
			},
			wantGRPC: codes.InvalidArgument,
			wantCode: apperrors.CodeInvalidTaxonomy,
		},
		{
			name: "no access entry",
			call: func() error {
				_, err := lb.client.CheckAccessPermission(as("alice"), key, "bob")
				return err
			},
			wantGRPC: codes.PermissionDenied,
			wantCode: apperrors.CodePermissionDenied,
		},
		{
			name: "blank new owner",
			call: func() error {
				return lb.client.TransferOwnership(as("alice"), key, "")
			},
			wantGRPC: codes.InvalidArgument,
			wantCode: apperrors.CodeInvalidOperator,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			if status.Code(err) != tc.wantGRPC {
				t.Fatalf("grpc code = %v, want %v (%v)", status.Code(err), tc.wantGRPC, err)
			}
			if got := apperrors.FromStatus(err); got != tc.wantCode {
				t.Fatalf("domain code = %v, want %v", got, tc.wantCode)
			}
		})
	}
}

func TestLoopbackTransferAndAccess(t *testing.T) {
	lb := startLoopback(t)
	key, err := lb.client.CreateRecord(as("alice"), sampleFields())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if err := lb.client.TransferOwnership(as("alice"), key, "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	owns, err := lb.client.VerifyRecordOwnership(as("carol"), key, "bob")
	if err != nil || !owns {
		t.Fatalf("bob owns = %v, %v; want true", owns, err)
	}
	owns, err = lb.client.VerifyRecordOwnership(as("carol"), key, "alice")
	if err != nil || owns {
		t.Fatalf("alice owns = %v, %v; want false", owns, err)
	}
	// The creator keeps the initial grant after a transfer.
	granted, err := lb.client.CheckAccessPermission(as("carol"), key, "alice")
	if err != nil || !granted {
		t.Fatalf("alice granted = %v, %v; want true", granted, err)
	}
	if err := lb.client.UpdateRecord(as("alice"), key, sampleFields()); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("former owner update code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}

	authority, err := lb.client.VerifyProtocolAuthority(as("carol"), "root")
	if err != nil || !authority {
		t.Fatalf("root authority = %v, %v; want true", authority, err)
	}
	authority, err = lb.client.VerifyProtocolAuthority(as("carol"), "alice")
	if err != nil || authority {
		t.Fatalf("alice authority = %v, %v; want false", authority, err)
	}
}

func TestLoopbackListRecordsPages(t *testing.T) {
	lb := startLoopback(t)
	for i := 0; i < 3; i++ {
		if _, err := lb.client.CreateRecord(as("alice"), sampleFields()); err != nil {
			t.Fatalf("create record %d: %v", i, err)
		}
	}

	page, err := lb.client.ListRecords(as("alice"), 2, "")
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(page.Records) != 2 || page.Records[0].Key != 1 || page.NextPageToken == "" {
		t.Fatalf("first page = %+v", page)
	}
	page, err = lb.client.ListRecords(as("alice"), 2, page.NextPageToken)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0].Key != 3 || page.NextPageToken != "" {
		t.Fatalf("second page = %+v", page)
	}

	_, err = lb.client.ListRecords(as("alice"), 2, "not-a-cursor")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad token code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestLoopbackEventsUseHostClock(t *testing.T) {
	lb := startLoopback(t)
	hostClock := uint64(1 << 60)
	ctx := grpcmeta.OutgoingContext(context.Background(), "alice", &hostClock, "")
	key, err := lb.client.CreateRecord(ctx, sampleFields())
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if err := lb.client.UpdateRecord(as("alice"), key, sampleFields()); err != nil {
		t.Fatalf("update record: %v", err)
	}

	events, err := lb.client.ListRecordEvents(as("alice"), key, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != domain.EventRecordCreated || events[0].Clock != hostClock {
		t.Fatalf("created event = %+v", events[0])
	}
	// No header: the server clock stamps the event.
	if events[1].Type != domain.EventRecordUpdated || events[1].Clock != 42 {
		t.Fatalf("updated event = %+v", events[1])
	}

	later, err := lb.client.ListRecordEvents(as("alice"), key, events[0].Seq, 0)
	if err != nil || len(later) != 1 || later[0].Seq != events[1].Seq {
		t.Fatalf("events after %d = %+v, %v", events[0].Seq, later, err)
	}
}

func TestLoopbackRequestIDAndAudit(t *testing.T) {
	lb := startLoopback(t)
	ctx := metadata.AppendToOutgoingContext(as("alice"), grpcmeta.RequestIDHeader, "req-7")

	var header metadata.MD
	if _, err := lb.client.CreateRecord(ctx, sampleFields(), grpc.Header(&header)); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if got := grpcmeta.FirstMetadataValue(header, grpcmeta.RequestIDHeader); got != "req-7" {
		t.Fatalf("response request id = %q, want req-7", got)
	}

	entry := lb.audit.last()
	if entry.Method != fullMethod("CreateRecord") || entry.Code != codes.OK.String() {
		t.Fatalf("audit entry = %+v", entry)
	}
	if entry.Identity != "alice" || entry.RequestID != "req-7" || entry.MethodKind != "write" {
		t.Fatalf("audit caller = %+v", entry)
	}

	header = nil
	if _, err := lb.client.TotalRecordCount(context.Background(), grpc.Header(&header)); err != nil {
		t.Fatalf("count: %v", err)
	}
	if got := grpcmeta.FirstMetadataValue(header, grpcmeta.RequestIDHeader); got == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestInvalidClockHeaderRejected(t *testing.T) {
	lb := startLoopback(t)
	ctx := metadata.AppendToOutgoingContext(as("alice"), grpcmeta.LogicalClockHeader, "yesterday")
	_, err := lb.client.CreateRecord(ctx, sampleFields())
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestMalformedKeyRejected(t *testing.T) {
	lb := startLoopback(t)
	in, err := structpb.NewStruct(map[string]any{fieldKey: "-1"})
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	out := new(structpb.Struct)
	err = lb.conn.Invoke(as("alice"), fullMethod("FetchFullRecord"), in, out)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.InvalidArgument)
	}
}

func TestNilServiceReportsInternal(t *testing.T) {
	var svc *Service
	_, err := svc.TotalRecordCount(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.Internal)
	}
}
