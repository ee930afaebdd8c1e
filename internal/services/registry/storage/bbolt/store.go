// Package bbolt provides a BoltDB-backed registry storage implementation.
package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
	"go.etcd.io/bbolt"
)

const (
	recordsBucket = "records"
	grantsBucket  = "grants"
	metaBucket    = "meta"
	eventsBucket  = "events"
)

var (
	counterKey   = []byte("record_counter")
	authorityKey = []byte("protocol_authority")
)

// Store provides a BoltDB-backed registry store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// View runs fn inside a read-only BoltDB transaction.
func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&txn{tx: tx})
	})
}

// Update runs fn inside a read-write BoltDB transaction.
func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := fn(&txn{tx: tx}); err != nil {
			return err
		}
		return ctx.Err()
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{recordsBucket, grantsBucket, metaBucket, eventsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

type txn struct {
	tx *bbolt.Tx
}

type recordValue struct {
	Owner        string   `json:"owner"`
	Metadata     string   `json:"entity_metadata"`
	Metric       uint64   `json:"data_metric"`
	Notes        string   `json:"operational_notes"`
	Taxonomy     []string `json:"taxonomy_labels"`
	GenesisBlock uint64   `json:"genesis_block"`
}

type eventValue struct {
	RecordKey uint64 `json:"record_key"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	Owner     string `json:"owner"`
	Clock     uint64 `json:"logical_clock"`
}

func (t *txn) bucket(name string) (*bbolt.Bucket, error) {
	bucket := t.tx.Bucket([]byte(name))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket is missing", name)
	}
	return bucket, nil
}

func (t *txn) Counter(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	bucket, err := t.bucket(metaBucket)
	if err != nil {
		return 0, err
	}
	raw := bucket.Get(counterKey)
	if raw == nil {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("counter value is corrupt")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (t *txn) GetRecord(ctx context.Context, key uint64) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	bucket, err := t.bucket(recordsBucket)
	if err != nil {
		return storage.Record{}, err
	}
	payload := bucket.Get(uint64Key(key))
	if payload == nil {
		return storage.Record{}, storage.ErrNotFound
	}
	return decodeRecord(key, payload)
}

func (t *txn) GetGrant(ctx context.Context, key uint64, identity string) (storage.Grant, error) {
	if err := ctx.Err(); err != nil {
		return storage.Grant{}, err
	}
	bucket, err := t.bucket(grantsBucket)
	if err != nil {
		return storage.Grant{}, err
	}
	raw := bucket.Get(grantKey(key, identity))
	if raw == nil {
		return storage.Grant{}, storage.ErrNotFound
	}
	return storage.Grant{RecordKey: key, Identity: identity, Granted: len(raw) == 1 && raw[0] == 1}, nil
}

func (t *txn) ProtocolAuthority(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bucket, err := t.bucket(metaBucket)
	if err != nil {
		return "", err
	}
	raw := bucket.Get(authorityKey)
	if len(raw) == 0 {
		return "", storage.ErrNotFound
	}
	return string(raw), nil
}

func (t *txn) ListRecords(ctx context.Context, afterKey uint64, limit int) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || afterKey == ^uint64(0) {
		return nil, nil
	}
	bucket, err := t.bucket(recordsBucket)
	if err != nil {
		return nil, err
	}
	var records []storage.Record
	cursor := bucket.Cursor()
	for k, v := cursor.Seek(uint64Key(afterKey + 1)); k != nil && len(records) < limit; k, v = cursor.Next() {
		record, err := decodeRecord(binary.BigEndian.Uint64(k), v)
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
	if limit <= 0 || afterSeq == ^uint64(0) {
		return nil, nil
	}
	bucket, err := t.bucket(eventsBucket)
	if err != nil {
		return nil, err
	}
	var events []storage.Event
	cursor := bucket.Cursor()
	for k, v := cursor.Seek(uint64Key(afterSeq + 1)); k != nil && len(events) < limit; k, v = cursor.Next() {
		var value eventValue
		if err := json.Unmarshal(v, &value); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		if key != 0 && value.RecordKey != key {
			continue
		}
		events = append(events, storage.Event{
			Seq:       binary.BigEndian.Uint64(k),
			RecordKey: value.RecordKey,
			Type:      value.Type,
			Actor:     value.Actor,
			Owner:     value.Owner,
			Clock:     value.Clock,
		})
	}
	return events, nil
}

func (t *txn) SetCounter(ctx context.Context, value uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := t.bucket(metaBucket)
	if err != nil {
		return err
	}
	return bucket.Put(counterKey, uint64Key(value))
}

func (t *txn) InsertRecord(ctx context.Context, record storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := t.bucket(recordsBucket)
	if err != nil {
		return err
	}
	if bucket.Get(uint64Key(record.Key)) != nil {
		return storage.ErrAlreadyExists
	}
	return putRecord(bucket, record)
}

func (t *txn) ReplaceRecord(ctx context.Context, record storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := t.bucket(recordsBucket)
	if err != nil {
		return err
	}
	if bucket.Get(uint64Key(record.Key)) == nil {
		return storage.ErrNotFound
	}
	return putRecord(bucket, record)
}

func (t *txn) InsertGrant(ctx context.Context, grant storage.Grant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := t.bucket(grantsBucket)
	if err != nil {
		return err
	}
	key := grantKey(grant.RecordKey, grant.Identity)
	if bucket.Get(key) != nil {
		return storage.ErrAlreadyExists
	}
	flag := byte(0)
	if grant.Granted {
		flag = 1
	}
	return bucket.Put(key, []byte{flag})
}

func (t *txn) SetProtocolAuthority(ctx context.Context, identity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket, err := t.bucket(metaBucket)
	if err != nil {
		return err
	}
	return bucket.Put(authorityKey, []byte(identity))
}

func (t *txn) AppendEvent(ctx context.Context, event storage.Event) (storage.Event, error) {
	if err := ctx.Err(); err != nil {
		return storage.Event{}, err
	}
	bucket, err := t.bucket(eventsBucket)
	if err != nil {
		return storage.Event{}, err
	}
	seq, err := bucket.NextSequence()
	if err != nil {
		return storage.Event{}, fmt.Errorf("next event sequence: %w", err)
	}
	payload, err := json.Marshal(eventValue{
		RecordKey: event.RecordKey,
		Type:      event.Type,
		Actor:     event.Actor,
		Owner:     event.Owner,
		Clock:     event.Clock,
	})
	if err != nil {
		return storage.Event{}, fmt.Errorf("marshal event: %w", err)
	}
	if err := bucket.Put(uint64Key(seq), payload); err != nil {
		return storage.Event{}, err
	}
	event.Seq = seq
	return event, nil
}

func putRecord(bucket *bbolt.Bucket, record storage.Record) error {
	payload, err := json.Marshal(recordValue{
		Owner:        record.Owner,
		Metadata:     record.Metadata,
		Metric:       record.Metric,
		Notes:        record.Notes,
		Taxonomy:     record.Taxonomy,
		GenesisBlock: record.GenesisBlock,
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return bucket.Put(uint64Key(record.Key), payload)
}

func decodeRecord(key uint64, payload []byte) (storage.Record, error) {
	var value recordValue
	if err := json.Unmarshal(payload, &value); err != nil {
		return storage.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return storage.Record{
		Key:          key,
		Owner:        value.Owner,
		Metadata:     value.Metadata,
		Metric:       value.Metric,
		Notes:        value.Notes,
		Taxonomy:     value.Taxonomy,
		GenesisBlock: value.GenesisBlock,
	}, nil
}

// Big-endian keys keep cursor order equal to numeric order.
func uint64Key(value uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, value)
	return key
}

func grantKey(recordKey uint64, identity string) []byte {
	var buf bytes.Buffer
	buf.Grow(8 + len(identity))
	buf.Write(uint64Key(recordKey))
	buf.WriteString(identity)
	return buf.Bytes()
}

var _ storage.Store = (*Store)(nil)
