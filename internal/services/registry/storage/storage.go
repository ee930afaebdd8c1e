// Package storage defines persistence contracts for registry state.
//
// Every engine exposes the same transactional surface: one Update runs all
// of its writes atomically or none of them, and View never observes a
// partially applied Update. Text columns hold UTF-8 and are returned byte
// for byte; callers validate text before it reaches an engine.
package storage

import (
	"context"
	"errors"
	"slices"
)

var (
	// ErrNotFound indicates a requested row is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates an insert collided with an existing row.
	ErrAlreadyExists = errors.New("record already exists")
)

// Record is the persisted form of one registry record.
type Record struct {
	Key          uint64
	Owner        string
	Metadata     string
	Metric       uint64
	Notes        string
	Taxonomy     []string
	GenesisBlock uint64
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	r.Taxonomy = slices.Clone(r.Taxonomy)
	return r
}

// Grant is one access-control entry.
type Grant struct {
	RecordKey uint64
	Identity  string
	Granted   bool
}

// Event is one audit log entry. Seq is assigned by AppendEvent and is
// strictly increasing across the whole log.
type Event struct {
	Seq       uint64
	RecordKey uint64
	Type      string
	Actor     string
	Owner     string
	Clock     uint64
}

// Reader exposes read access inside a transaction.
type Reader interface {
	// Counter returns the number of records ever created.
	Counter(ctx context.Context) (uint64, error)
	GetRecord(ctx context.Context, key uint64) (Record, error)
	GetGrant(ctx context.Context, key uint64, identity string) (Grant, error)
	// ProtocolAuthority returns ErrNotFound until the authority is set.
	ProtocolAuthority(ctx context.Context) (string, error)
	// ListRecords returns up to limit records with keys greater than afterKey,
	// in ascending key order.
	ListRecords(ctx context.Context, afterKey uint64, limit int) ([]Record, error)
	// ListEvents returns up to limit events with seq greater than afterSeq.
	// A zero key lists events for every record.
	ListEvents(ctx context.Context, key uint64, afterSeq uint64, limit int) ([]Event, error)
}

// Writer exposes read and write access inside a transaction.
type Writer interface {
	Reader
	SetCounter(ctx context.Context, value uint64) error
	// InsertRecord fails with ErrAlreadyExists when the key is taken.
	InsertRecord(ctx context.Context, record Record) error
	// ReplaceRecord fails with ErrNotFound when the key is unknown.
	ReplaceRecord(ctx context.Context, record Record) error
	// InsertGrant fails with ErrAlreadyExists when the pair already has an entry.
	InsertGrant(ctx context.Context, grant Grant) error
	SetProtocolAuthority(ctx context.Context, identity string) error
	AppendEvent(ctx context.Context, event Event) (Event, error)
}

// Store is a registry storage engine.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Writer) error) error
	Close() error
}
