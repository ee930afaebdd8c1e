package mcp

import "github.com/louisbranch/recordkeep/internal/services/registry/domain"

// RecordCreateInput represents the MCP tool input for creating a record.
type RecordCreateInput struct {
	Metadata     string   `json:"metadata" jsonschema:"descriptive metadata, 1 to 64 bytes"`
	Metric       uint64   `json:"metric" jsonschema:"data metric, greater than 0 and less than 1000000000"`
	Notes        string   `json:"notes" jsonschema:"free-form notes, 1 to 128 bytes"`
	Taxonomy     []string `json:"taxonomy" jsonschema:"1 to 10 labels of 1 to 32 bytes each"`
	LogicalClock *uint64  `json:"logical_clock,omitempty" jsonschema:"optional host logical clock; the server clock is used when omitted"`
}

func (in RecordCreateInput) fields() domain.Fields {
	return domain.Fields{Metadata: in.Metadata, Metric: in.Metric, Notes: in.Notes, Taxonomy: in.Taxonomy}
}

// RecordCreateResult represents the MCP tool output for creating a record.
type RecordCreateResult struct {
	Key uint64 `json:"key" jsonschema:"key of the new record"`
}

// RecordUpdateInput represents the MCP tool input for updating a record.
type RecordUpdateInput struct {
	Key          uint64   `json:"key" jsonschema:"record key"`
	Metadata     string   `json:"metadata" jsonschema:"descriptive metadata, 1 to 64 bytes"`
	Metric       uint64   `json:"metric" jsonschema:"data metric, greater than 0 and less than 1000000000"`
	Notes        string   `json:"notes" jsonschema:"free-form notes, 1 to 128 bytes"`
	Taxonomy     []string `json:"taxonomy" jsonschema:"1 to 10 labels of 1 to 32 bytes each"`
	LogicalClock *uint64  `json:"logical_clock,omitempty" jsonschema:"optional host logical clock"`
}

func (in RecordUpdateInput) fields() domain.Fields {
	return domain.Fields{Metadata: in.Metadata, Metric: in.Metric, Notes: in.Notes, Taxonomy: in.Taxonomy}
}

// RecordTransferInput represents the MCP tool input for transferring a record.
type RecordTransferInput struct {
	Key          uint64  `json:"key" jsonschema:"record key"`
	NewOwner     string  `json:"new_owner" jsonschema:"identity of the new owner"`
	LogicalClock *uint64 `json:"logical_clock,omitempty" jsonschema:"optional host logical clock"`
}

// RecordKeyInput selects one record.
type RecordKeyInput struct {
	Key uint64 `json:"key" jsonschema:"record key"`
}

// RecordResult is a full record snapshot.
type RecordResult struct {
	Key          uint64   `json:"key" jsonschema:"record key"`
	Owner        string   `json:"owner" jsonschema:"current owner identity"`
	GenesisBlock uint64   `json:"genesis_block" jsonschema:"logical clock at creation"`
	Metadata     string   `json:"metadata" jsonschema:"descriptive metadata"`
	Metric       uint64   `json:"metric" jsonschema:"data metric"`
	Notes        string   `json:"notes" jsonschema:"free-form notes"`
	Taxonomy     []string `json:"taxonomy" jsonschema:"labels in stored order"`
}

// RecordMutationResult reports the record state after a mutation.
type RecordMutationResult struct {
	Record RecordResult `json:"record" jsonschema:"record after the change"`
}

// RecordCountInput represents the MCP tool input for counting records.
type RecordCountInput struct{}

// RecordCountResult represents the MCP tool output for counting records.
type RecordCountResult struct {
	Count uint64 `json:"count" jsonschema:"number of records created"`
}

// RecordListInput represents the MCP tool input for listing records.
type RecordListInput struct {
	PageSize  int32  `json:"page_size,omitempty" jsonschema:"maximum records to return (default 10, max 50)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"next_page_token from a previous call"`
}

// RecordListResult represents the MCP tool output for listing records.
type RecordListResult struct {
	Records       []RecordResult `json:"records" jsonschema:"records in ascending key order"`
	NextPageToken string         `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last page"`
}

// IdentityCheckInput pairs a record with an identity.
type IdentityCheckInput struct {
	Key      uint64 `json:"key" jsonschema:"record key"`
	Identity string `json:"identity" jsonschema:"identity to check"`
}

// AuthorityVerifyInput represents the MCP tool input for verifying the protocol authority.
type AuthorityVerifyInput struct {
	Identity string `json:"identity" jsonschema:"identity to check"`
}

// AccessCheckResult represents the MCP tool output for an access check.
type AccessCheckResult struct {
	Granted bool `json:"granted" jsonschema:"stored access flag"`
}

// VerifyResult is a yes/no answer.
type VerifyResult struct {
	Verified bool `json:"verified" jsonschema:"true when the identity matches"`
}

// RecordEventsInput represents the MCP tool input for listing audit events.
type RecordEventsInput struct {
	Key      uint64 `json:"key" jsonschema:"record key"`
	AfterSeq uint64 `json:"after_seq,omitempty" jsonschema:"return events with a greater sequence number"`
	PageSize int32  `json:"page_size,omitempty" jsonschema:"maximum events to return (default 10, max 50)"`
}

// EventResult is one audit event.
type EventResult struct {
	Seq       uint64 `json:"seq" jsonschema:"event sequence number"`
	RecordKey uint64 `json:"record_key" jsonschema:"record key"`
	Type      string `json:"type" jsonschema:"event type"`
	Actor     string `json:"actor" jsonschema:"identity that made the change"`
	Owner     string `json:"owner" jsonschema:"owner after the change"`
	Clock     uint64 `json:"clock" jsonschema:"logical clock of the change"`
}

// RecordEventsResult represents the MCP tool output for listing audit events.
type RecordEventsResult struct {
	Events []EventResult `json:"events" jsonschema:"events in sequence order"`
}

func recordResult(record domain.Record) RecordResult {
	taxonomy := record.Taxonomy
	if taxonomy == nil {
		taxonomy = []string{}
	}
	return RecordResult{
		Key:          record.Key,
		Owner:        record.Owner.String(),
		GenesisBlock: record.GenesisBlock,
		Metadata:     record.Metadata,
		Metric:       record.Metric,
		Notes:        record.Notes,
		Taxonomy:     taxonomy,
	}
}

func eventResult(event domain.Event) EventResult {
	return EventResult{
		Seq:       event.Seq,
		RecordKey: event.RecordKey,
		Type:      string(event.Type),
		Actor:     event.Actor.String(),
		Owner:     event.Owner.String(),
		Clock:     event.Clock,
	}
}
