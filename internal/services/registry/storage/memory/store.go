// Package memory provides an in-process registry storage engine.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

type grantKey struct {
	recordKey uint64
	identity  string
}

type state struct {
	counter   uint64
	authority string
	records   map[uint64]storage.Record
	grants    map[grantKey]bool
	events    []storage.Event
}

// Store keeps registry state in maps. Update stages writes in an overlay
// and merges it only when the callback returns nil.
type Store struct {
	mu     sync.RWMutex
	state  state
	closed bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		state: state{
			records: make(map[uint64]storage.Record),
			grants:  make(map[grantKey]bool),
		},
	}
}

// Close marks the store closed. Later transactions fail.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// View runs fn against committed state.
func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("storage is closed")
	}
	return fn(&txn{base: &s.state, readOnly: true})
}

// Update runs fn in a staged transaction and commits its writes when fn and
// ctx both succeed.
func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("storage is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("storage is closed")
	}

	tx := &txn{
		base:    &s.state,
		records: make(map[uint64]storage.Record),
		grants:  make(map[grantKey]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type txn struct {
	base     *state
	readOnly bool

	counter   *uint64
	authority *string
	records   map[uint64]storage.Record
	grants    map[grantKey]bool
	events    []storage.Event
}

func (t *txn) commit() {
	if t.counter != nil {
		t.base.counter = *t.counter
	}
	if t.authority != nil {
		t.base.authority = *t.authority
	}
	maps.Copy(t.base.records, t.records)
	maps.Copy(t.base.grants, t.grants)
	t.base.events = append(t.base.events, t.events...)
}

func (t *txn) Counter(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.counter != nil {
		return *t.counter, nil
	}
	return t.base.counter, nil
}

func (t *txn) GetRecord(ctx context.Context, key uint64) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	if record, ok := t.records[key]; ok {
		return record.Clone(), nil
	}
	if record, ok := t.base.records[key]; ok {
		return record.Clone(), nil
	}
	return storage.Record{}, storage.ErrNotFound
}

func (t *txn) GetGrant(ctx context.Context, key uint64, identity string) (storage.Grant, error) {
	if err := ctx.Err(); err != nil {
		return storage.Grant{}, err
	}
	gk := grantKey{recordKey: key, identity: identity}
	granted, ok := t.grants[gk]
	if !ok {
		granted, ok = t.base.grants[gk]
	}
	if !ok {
		return storage.Grant{}, storage.ErrNotFound
	}
	return storage.Grant{RecordKey: key, Identity: identity, Granted: granted}, nil
}

func (t *txn) ProtocolAuthority(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	authority := t.base.authority
	if t.authority != nil {
		authority = *t.authority
	}
	if authority == "" {
		return "", storage.ErrNotFound
	}
	return authority, nil
}

func (t *txn) ListRecords(ctx context.Context, afterKey uint64, limit int) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	keys := make([]uint64, 0, len(t.base.records)+len(t.records))
	for key := range t.base.records {
		if key > afterKey {
			keys = append(keys, key)
		}
	}
	for key := range t.records {
		if _, ok := t.base.records[key]; !ok && key > afterKey {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	records := make([]storage.Record, 0, len(keys))
	for _, key := range keys {
		record, err := t.GetRecord(ctx, key)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (t *txn) ListEvents(ctx context.Context, key uint64, afterSeq uint64, limit int) ([]storage.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	var events []storage.Event
	for _, batch := range [][]storage.Event{t.base.events, t.events} {
		for _, event := range batch {
			if event.Seq <= afterSeq || (key != 0 && event.RecordKey != key) {
				continue
			}
			events = append(events, event)
			if len(events) == limit {
				return events, nil
			}
		}
	}
	return events, nil
}

func (t *txn) SetCounter(ctx context.Context, value uint64) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	t.counter = &value
	return nil
}

func (t *txn) InsertRecord(ctx context.Context, record storage.Record) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	if _, err := t.GetRecord(ctx, record.Key); err == nil {
		return storage.ErrAlreadyExists
	}
	t.records[record.Key] = record.Clone()
	return nil
}

func (t *txn) ReplaceRecord(ctx context.Context, record storage.Record) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	if _, err := t.GetRecord(ctx, record.Key); err != nil {
		return err
	}
	t.records[record.Key] = record.Clone()
	return nil
}

func (t *txn) InsertGrant(ctx context.Context, grant storage.Grant) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	if _, err := t.GetGrant(ctx, grant.RecordKey, grant.Identity); err == nil {
		return storage.ErrAlreadyExists
	}
	t.grants[grantKey{recordKey: grant.RecordKey, identity: grant.Identity}] = grant.Granted
	return nil
}

func (t *txn) SetProtocolAuthority(ctx context.Context, identity string) error {
	if err := t.writable(ctx); err != nil {
		return err
	}
	t.authority = &identity
	return nil
}

func (t *txn) AppendEvent(ctx context.Context, event storage.Event) (storage.Event, error) {
	if err := t.writable(ctx); err != nil {
		return storage.Event{}, err
	}
	event.Seq = uint64(len(t.base.events)+len(t.events)) + 1
	t.events = append(t.events, event)
	return event, nil
}

func (t *txn) writable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.readOnly {
		return fmt.Errorf("transaction is read-only")
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
