// Package sqlite provides a SQLite-backed registry storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sqlitemigrate "github.com/louisbranch/recordkeep/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists registry state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite registry store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	return s.run(ctx, true, func(t *txn) error { return fn(t) })
}

// Update runs fn inside a transaction committed only when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	return s.run(ctx, false, func(t *txn) error { return fn(t) })
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(*txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&txn{tx: tx, readOnly: readOnly}); err != nil {
		return err
	}
	if readOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txn struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *txn) Counter(ctx context.Context) (uint64, error) {
	var counter int64
	row := t.tx.QueryRowContext(ctx, `SELECT record_counter FROM registry_meta WHERE singleton = 1`)
	if err := row.Scan(&counter); err != nil {
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return fromInt64(counter), nil
}

func (t *txn) GetRecord(ctx context.Context, key uint64) (storage.Record, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT record_key, owner, entity_metadata, data_metric, operational_notes, taxonomy_json, genesis_block
		 FROM records WHERE record_key = ?`,
		toInt64(key),
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Record{}, storage.ErrNotFound
		}
		return storage.Record{}, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

func (t *txn) GetGrant(ctx context.Context, key uint64, identity string) (storage.Grant, error) {
	var granted bool
	row := t.tx.QueryRowContext(ctx,
		`SELECT granted FROM access_grants WHERE record_key = ? AND identity = ?`,
		toInt64(key), identity,
	)
	if err := row.Scan(&granted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Grant{}, storage.ErrNotFound
		}
		return storage.Grant{}, fmt.Errorf("get grant: %w", err)
	}
	return storage.Grant{RecordKey: key, Identity: identity, Granted: granted}, nil
}

func (t *txn) ProtocolAuthority(ctx context.Context) (string, error) {
	var authority string
	row := t.tx.QueryRowContext(ctx, `SELECT protocol_authority FROM registry_meta WHERE singleton = 1`)
	if err := row.Scan(&authority); err != nil {
		return "", fmt.Errorf("get protocol authority: %w", err)
	}
	if authority == "" {
		return "", storage.ErrNotFound
	}
	return authority, nil
}

func (t *txn) ListRecords(ctx context.Context, afterKey uint64, limit int) ([]storage.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT record_key, owner, entity_metadata, data_metric, operational_notes, taxonomy_json, genesis_block
		 FROM records
		 WHERE record_key > ?
		 ORDER BY record_key ASC
		 LIMIT ?`,
		toInt64(afterKey), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]storage.Record, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (t *txn) ListEvents(ctx context.Context, key uint64, afterSeq uint64, limit int) ([]storage.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT seq, record_key, event_type, actor, owner, logical_clock
		 FROM record_events
		 WHERE seq > ?`
	args := []any{toInt64(afterSeq)}
	if key != 0 {
		query += ` AND record_key = ?`
		args = append(args, toInt64(key))
	}
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]storage.Event, 0, limit)
	for rows.Next() {
		var (
			event     storage.Event
			seq       int64
			recordKey int64
			clock     int64
		)
		if err := rows.Scan(&seq, &recordKey, &event.Type, &event.Actor, &event.Owner, &clock); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Seq = fromInt64(seq)
		event.RecordKey = fromInt64(recordKey)
		event.Clock = fromInt64(clock)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (t *txn) SetCounter(ctx context.Context, value uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE registry_meta SET record_counter = ? WHERE singleton = 1`,
		toInt64(value),
	); err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

func (t *txn) InsertRecord(ctx context.Context, record storage.Record) error {
	if err := t.writable(); err != nil {
		return err
	}
	taxonomy, err := json.Marshal(record.Taxonomy)
	if err != nil {
		return fmt.Errorf("marshal taxonomy: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO records (record_key, owner, entity_metadata, data_metric, operational_notes, taxonomy_json, genesis_block)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		toInt64(record.Key),
		record.Owner,
		record.Metadata,
		toInt64(record.Metric),
		record.Notes,
		string(taxonomy),
		toInt64(record.GenesisBlock),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (t *txn) ReplaceRecord(ctx context.Context, record storage.Record) error {
	if err := t.writable(); err != nil {
		return err
	}
	taxonomy, err := json.Marshal(record.Taxonomy)
	if err != nil {
		return fmt.Errorf("marshal taxonomy: %w", err)
	}
	result, err := t.tx.ExecContext(ctx,
		`UPDATE records
		 SET owner = ?, entity_metadata = ?, data_metric = ?, operational_notes = ?, taxonomy_json = ?, genesis_block = ?
		 WHERE record_key = ?`,
		record.Owner,
		record.Metadata,
		toInt64(record.Metric),
		record.Notes,
		string(taxonomy),
		toInt64(record.GenesisBlock),
		toInt64(record.Key),
	)
	if err != nil {
		return fmt.Errorf("replace record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace record rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *txn) InsertGrant(ctx context.Context, grant storage.Grant) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO access_grants (record_key, identity, granted) VALUES (?, ?, ?)`,
		toInt64(grant.RecordKey), grant.Identity, grant.Granted,
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (t *txn) SetProtocolAuthority(ctx context.Context, identity string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE registry_meta SET protocol_authority = ? WHERE singleton = 1`,
		identity,
	); err != nil {
		return fmt.Errorf("set protocol authority: %w", err)
	}
	return nil
}

func (t *txn) AppendEvent(ctx context.Context, event storage.Event) (storage.Event, error) {
	if err := t.writable(); err != nil {
		return storage.Event{}, err
	}
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO record_events (record_key, event_type, actor, owner, logical_clock) VALUES (?, ?, ?, ?, ?)`,
		toInt64(event.RecordKey), event.Type, event.Actor, event.Owner, toInt64(event.Clock),
	)
	if err != nil {
		return storage.Event{}, fmt.Errorf("append event: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return storage.Event{}, fmt.Errorf("append event seq: %w", err)
	}
	event.Seq = fromInt64(seq)
	return event, nil
}

func (t *txn) writable() error {
	if t.readOnly {
		return fmt.Errorf("transaction is read-only")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (storage.Record, error) {
	var (
		record   storage.Record
		key      int64
		metric   int64
		genesis  int64
		taxonomy string
	)
	if err := row.Scan(&key, &record.Owner, &record.Metadata, &metric, &record.Notes, &taxonomy, &genesis); err != nil {
		return storage.Record{}, err
	}
	if err := json.Unmarshal([]byte(taxonomy), &record.Taxonomy); err != nil {
		return storage.Record{}, fmt.Errorf("unmarshal taxonomy: %w", err)
	}
	record.Key = fromInt64(key)
	record.Metric = fromInt64(metric)
	record.GenesisBlock = fromInt64(genesis)
	return record, nil
}

// SQLite integers are signed; unsigned values are stored bit-for-bit.
func toInt64(value uint64) int64 {
	return int64(value)
}

func fromInt64(value int64) uint64 {
	return uint64(value)
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

var _ storage.Store = (*Store)(nil)
