package mcp

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/recordkeep/internal/platform/errors"
	"github.com/louisbranch/recordkeep/internal/platform/requestctx"
	"github.com/louisbranch/recordkeep/internal/platform/timeouts"
	"github.com/louisbranch/recordkeep/internal/services/registry/clock"
	"github.com/louisbranch/recordkeep/internal/services/registry/core"
	"github.com/louisbranch/recordkeep/internal/services/registry/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Registry is the core surface exposed as tools.
type Registry interface {
	CreateRecord(ctx context.Context, inv core.Invocation, fields domain.Fields) (uint64, error)
	UpdateRecord(ctx context.Context, inv core.Invocation, key uint64, fields domain.Fields) error
	TransferOwnership(ctx context.Context, inv core.Invocation, key uint64, newOwner domain.Identity) error
	TotalRecordCount(ctx context.Context) (uint64, error)
	FetchFullRecord(ctx context.Context, key uint64) (domain.Record, error)
	CheckAccessPermission(ctx context.Context, key uint64, identity domain.Identity) (bool, error)
	VerifyProtocolAuthority(ctx context.Context, identity domain.Identity) (bool, error)
	VerifyRecordOwnership(ctx context.Context, key uint64, identity domain.Identity) (bool, error)
	ListRecords(ctx context.Context, pageSize int32, pageToken string) (core.RecordPage, error)
	ListRecordEvents(ctx context.Context, key uint64, afterSeq uint64, pageSize int32) ([]domain.Event, error)
}

var _ Registry = (*core.Registry)(nil)

// errUnauthenticated is returned by mutating tools on sessions without an
// identity.
var errUnauthenticated = errors.New("session has no caller identity")

// session holds what every tool of one MCP session shares.
type session struct {
	registry Registry
	identity domain.Identity
	clock    clock.Source
}

func (s session) invocation(ctx context.Context, logicalClock *uint64) (core.Invocation, error) {
	if s.identity.IsZero() {
		return core.Invocation{}, errUnauthenticated
	}
	if logicalClock != nil {
		ctx = requestctx.WithLogicalClock(ctx, *logicalClock)
	}
	return core.Invocation{Identity: s.identity, Clock: clock.FromContext(ctx, s.clock)}, nil
}

// toolError names the failed tool and, for registry errors, the stable code.
func toolError(tool string, err error) error {
	if code := apperrors.GetCode(err); code != apperrors.CodeUnknown {
		return fmt.Errorf("%s failed [%s]: %w", tool, code, err)
	}
	return fmt.Errorf("%s failed: %w", tool, err)
}

func parseIdentityArg(name, raw string) (domain.Identity, error) {
	identity, err := domain.ParseIdentity(raw)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%s is required", name)
	}
	return identity, nil
}

func RecordCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_create",
		Description: "Creates a record owned by the session identity and returns its key. The creator receives an access grant.",
	}
}

func (s session) recordCreate(ctx context.Context, _ *mcp.CallToolRequest, input RecordCreateInput) (*mcp.CallToolResult, RecordCreateResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	inv, err := s.invocation(runCtx, input.LogicalClock)
	if err != nil {
		return nil, RecordCreateResult{}, toolError("record create", err)
	}
	key, err := s.registry.CreateRecord(runCtx, inv, input.fields())
	if err != nil {
		return nil, RecordCreateResult{}, toolError("record create", err)
	}
	return nil, RecordCreateResult{Key: key}, nil
}

func RecordUpdateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_update",
		Description: "Replaces the metadata, metric, notes and taxonomy of a record. Only the current owner may update.",
	}
}

func (s session) recordUpdate(ctx context.Context, _ *mcp.CallToolRequest, input RecordUpdateInput) (*mcp.CallToolResult, RecordMutationResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	inv, err := s.invocation(runCtx, input.LogicalClock)
	if err != nil {
		return nil, RecordMutationResult{}, toolError("record update", err)
	}
	if err := s.registry.UpdateRecord(runCtx, inv, input.Key, input.fields()); err != nil {
		return nil, RecordMutationResult{}, toolError("record update", err)
	}
	return s.mutationResult(runCtx, "record update", input.Key)
}

func RecordTransferTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_transfer",
		Description: "Transfers ownership of a record to another identity. Only the current owner may transfer.",
	}
}

func (s session) recordTransfer(ctx context.Context, _ *mcp.CallToolRequest, input RecordTransferInput) (*mcp.CallToolResult, RecordMutationResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	inv, err := s.invocation(runCtx, input.LogicalClock)
	if err != nil {
		return nil, RecordMutationResult{}, toolError("record transfer", err)
	}
	// A blank new owner is passed through so the core reports it after the
	// ownership checks.
	newOwner, _ := domain.ParseIdentity(input.NewOwner)
	if err := s.registry.TransferOwnership(runCtx, inv, input.Key, newOwner); err != nil {
		return nil, RecordMutationResult{}, toolError("record transfer", err)
	}
	return s.mutationResult(runCtx, "record transfer", input.Key)
}

func (s session) mutationResult(ctx context.Context, tool string, key uint64) (*mcp.CallToolResult, RecordMutationResult, error) {
	record, err := s.registry.FetchFullRecord(ctx, key)
	if err != nil {
		return nil, RecordMutationResult{}, toolError(tool, err)
	}
	return nil, RecordMutationResult{Record: recordResult(record)}, nil
}

func RecordGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_get",
		Description: "Returns every field of one record.",
	}
}

func (s session) recordGet(ctx context.Context, _ *mcp.CallToolRequest, input RecordKeyInput) (*mcp.CallToolResult, RecordResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	record, err := s.registry.FetchFullRecord(runCtx, input.Key)
	if err != nil {
		return nil, RecordResult{}, toolError("record get", err)
	}
	return nil, recordResult(record), nil
}

func RecordCountTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_count",
		Description: "Returns the number of records created so far.",
	}
}

func (s session) recordCount(ctx context.Context, _ *mcp.CallToolRequest, _ RecordCountInput) (*mcp.CallToolResult, RecordCountResult, error) {
	count, err := s.registry.TotalRecordCount(ctx)
	if err != nil {
		return nil, RecordCountResult{}, toolError("record count", err)
	}
	return nil, RecordCountResult{Count: count}, nil
}

func RecordListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_list",
		Description: "Lists records in ascending key order, one page at a time.",
	}
}

func (s session) recordList(ctx context.Context, _ *mcp.CallToolRequest, input RecordListInput) (*mcp.CallToolResult, RecordListResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	page, err := s.registry.ListRecords(runCtx, input.PageSize, input.PageToken)
	if err != nil {
		return nil, RecordListResult{}, toolError("record list", err)
	}
	result := RecordListResult{
		Records:       make([]RecordResult, 0, len(page.Records)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Records {
		result.Records = append(result.Records, recordResult(record))
	}
	return nil, result, nil
}

func AccessCheckTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "access_check",
		Description: "Returns the stored access flag for an identity on a record. Fails when no entry exists.",
	}
}

func (s session) accessCheck(ctx context.Context, _ *mcp.CallToolRequest, input IdentityCheckInput) (*mcp.CallToolResult, AccessCheckResult, error) {
	identity, err := parseIdentityArg("identity", input.Identity)
	if err != nil {
		return nil, AccessCheckResult{}, toolError("access check", err)
	}
	granted, err := s.registry.CheckAccessPermission(ctx, input.Key, identity)
	if err != nil {
		return nil, AccessCheckResult{}, toolError("access check", err)
	}
	return nil, AccessCheckResult{Granted: granted}, nil
}

func AuthorityVerifyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "authority_verify",
		Description: "Reports whether an identity is the protocol authority.",
	}
}

func (s session) authorityVerify(ctx context.Context, _ *mcp.CallToolRequest, input AuthorityVerifyInput) (*mcp.CallToolResult, VerifyResult, error) {
	identity, err := parseIdentityArg("identity", input.Identity)
	if err != nil {
		return nil, VerifyResult{}, toolError("authority verify", err)
	}
	verified, err := s.registry.VerifyProtocolAuthority(ctx, identity)
	if err != nil {
		return nil, VerifyResult{}, toolError("authority verify", err)
	}
	return nil, VerifyResult{Verified: verified}, nil
}

func OwnershipVerifyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "ownership_verify",
		Description: "Reports whether an identity currently owns a record.",
	}
}

func (s session) ownershipVerify(ctx context.Context, _ *mcp.CallToolRequest, input IdentityCheckInput) (*mcp.CallToolResult, VerifyResult, error) {
	identity, err := parseIdentityArg("identity", input.Identity)
	if err != nil {
		return nil, VerifyResult{}, toolError("ownership verify", err)
	}
	verified, err := s.registry.VerifyRecordOwnership(ctx, input.Key, identity)
	if err != nil {
		return nil, VerifyResult{}, toolError("ownership verify", err)
	}
	return nil, VerifyResult{Verified: verified}, nil
}

func RecordEventsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_events",
		Description: "Lists the audit events of one record after a sequence number.",
	}
}

func (s session) recordEvents(ctx context.Context, _ *mcp.CallToolRequest, input RecordEventsInput) (*mcp.CallToolResult, RecordEventsResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
	defer cancel()

	events, err := s.registry.ListRecordEvents(runCtx, input.Key, input.AfterSeq, input.PageSize)
	if err != nil {
		return nil, RecordEventsResult{}, toolError("record events", err)
	}
	result := RecordEventsResult{Events: make([]EventResult, 0, len(events))}
	for _, event := range events {
		result.Events = append(result.Events, eventResult(event))
	}
	return nil, result, nil
}
