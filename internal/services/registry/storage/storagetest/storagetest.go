// Package storagetest holds the behavior suite every registry storage engine
// must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
)

// Opener returns a fresh, empty store. It should register cleanup with t.
type Opener func(t *testing.T) storage.Store

// Run exercises the storage contract against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(*testing.T, storage.Store)
	}{
		{name: "empty store", fn: testEmpty},
		{name: "commit persists every write", fn: testCommit},
		{name: "failed update leaves no trace", fn: testRollback},
		{name: "canceled context aborts update", fn: testCanceled},
		{name: "insert record rejects duplicate key", fn: testDuplicateRecord},
		{name: "insert grant rejects duplicate pair", fn: testDuplicateGrant},
		{name: "replace requires existing record", fn: testReplace},
		{name: "reads see staged writes", fn: testReadYourWrites},
		{name: "list records pages by key", fn: testListRecords},
		{name: "events are ordered and filterable", fn: testEvents},
		{name: "returned records are snapshots", fn: testSnapshots},
		{name: "view rejects writes", fn: testViewReadOnly},
		{name: "multibyte text is stored byte for byte", fn: testMultibyteText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

// SampleRecord returns a valid record owned by owner.
func SampleRecord(key uint64, owner string) storage.Record {
	return storage.Record{
		Key:          key,
		Owner:        owner,
		Metadata:     "doc-1",
		Metric:       500,
		Notes:        "n",
		Taxonomy:     []string{"b", "a", "b"},
		GenesisBlock: 1000 + key,
	}
}

// Seed creates count records owned by owner the way the registry does.
func Seed(t *testing.T, store storage.Store, owner string, count int) {
	t.Helper()
	ctx := context.Background()
	err := store.Update(ctx, func(w storage.Writer) error {
		counter, err := w.Counter(ctx)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			counter++
			if err := w.InsertRecord(ctx, SampleRecord(counter, owner)); err != nil {
				return err
			}
			if err := w.InsertGrant(ctx, storage.Grant{RecordKey: counter, Identity: owner, Granted: true}); err != nil {
				return err
			}
		}
		return w.SetCounter(ctx, counter)
	})
	if err != nil {
		t.Fatalf("seed records: %v", err)
	}
}

func testEmpty(t *testing.T, store storage.Store) {
	ctx := context.Background()
	err := store.View(ctx, func(r storage.Reader) error {
		counter, err := r.Counter(ctx)
		if err != nil {
			return err
		}
		if counter != 0 {
			t.Fatalf("counter = %d, want 0", counter)
		}
		if _, err := r.GetRecord(ctx, 1); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get record err = %v, want ErrNotFound", err)
		}
		if _, err := r.GetGrant(ctx, 1, "alice"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get grant err = %v, want ErrNotFound", err)
		}
		if _, err := r.ProtocolAuthority(ctx); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("authority err = %v, want ErrNotFound", err)
		}
		records, err := r.ListRecords(ctx, 0, 10)
		if err != nil {
			return err
		}
		if len(records) != 0 {
			t.Fatalf("expected no records, got %d", len(records))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testCommit(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, "alice", 1)
	err := store.Update(ctx, func(w storage.Writer) error {
		return w.SetProtocolAuthority(ctx, "root")
	})
	if err != nil {
		t.Fatalf("set authority: %v", err)
	}

	err = store.View(ctx, func(r storage.Reader) error {
		counter, err := r.Counter(ctx)
		if err != nil {
			return err
		}
		if counter != 1 {
			t.Fatalf("counter = %d, want 1", counter)
		}
		record, err := r.GetRecord(ctx, 1)
		if err != nil {
			return err
		}
		want := SampleRecord(1, "alice")
		if !recordsEqual(record, want) {
			t.Fatalf("record = %+v, want %+v", record, want)
		}
		grant, err := r.GetGrant(ctx, 1, "alice")
		if err != nil {
			return err
		}
		if !grant.Granted {
			t.Fatal("expected granted flag")
		}
		authority, err := r.ProtocolAuthority(ctx)
		if err != nil {
			return err
		}
		if authority != "root" {
			t.Fatalf("authority = %q, want root", authority)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testRollback(t *testing.T, store storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.Update(ctx, func(w storage.Writer) error {
		if err := w.InsertRecord(ctx, SampleRecord(1, "alice")); err != nil {
			return err
		}
		if err := w.InsertGrant(ctx, storage.Grant{RecordKey: 1, Identity: "alice", Granted: true}); err != nil {
			return err
		}
		if err := w.SetCounter(ctx, 1); err != nil {
			return err
		}
		if err := w.SetProtocolAuthority(ctx, "root"); err != nil {
			return err
		}
		if _, err := w.AppendEvent(ctx, storage.Event{RecordKey: 1, Type: "record.created", Actor: "alice", Owner: "alice"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("update err = %v, want boom", err)
	}
	testEmpty(t, store)
	assertEventCount(t, store, 0)
}

func testCanceled(t *testing.T, store storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Update(ctx, func(w storage.Writer) error {
		return w.SetCounter(context.Background(), 7)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("update err = %v, want context.Canceled", err)
	}
	testEmpty(t, store)
}

func testDuplicateRecord(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, "alice", 1)
	err := store.Update(ctx, func(w storage.Writer) error {
		return w.InsertRecord(ctx, SampleRecord(1, "mallory"))
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("insert err = %v, want ErrAlreadyExists", err)
	}
	assertOwner(t, store, 1, "alice")
}

func testDuplicateGrant(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, "alice", 1)
	err := store.Update(ctx, func(w storage.Writer) error {
		return w.InsertGrant(ctx, storage.Grant{RecordKey: 1, Identity: "alice", Granted: false})
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("insert grant err = %v, want ErrAlreadyExists", err)
	}
	err = store.View(ctx, func(r storage.Reader) error {
		grant, err := r.GetGrant(ctx, 1, "alice")
		if err != nil {
			return err
		}
		if !grant.Granted {
			t.Fatal("grant flag was overwritten")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testReplace(t *testing.T, store storage.Store) {
	ctx := context.Background()
	err := store.Update(ctx, func(w storage.Writer) error {
		return w.ReplaceRecord(ctx, SampleRecord(5, "alice"))
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("replace err = %v, want ErrNotFound", err)
	}

	Seed(t, store, "alice", 1)
	err = store.Update(ctx, func(w storage.Writer) error {
		record := SampleRecord(1, "bob")
		record.Taxonomy = []string{"z"}
		return w.ReplaceRecord(ctx, record)
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	assertOwner(t, store, 1, "bob")
}

func testReadYourWrites(t *testing.T, store storage.Store) {
	ctx := context.Background()
	err := store.Update(ctx, func(w storage.Writer) error {
		if err := w.InsertRecord(ctx, SampleRecord(1, "alice")); err != nil {
			return err
		}
		if err := w.SetCounter(ctx, 1); err != nil {
			return err
		}
		counter, err := w.Counter(ctx)
		if err != nil {
			return err
		}
		if counter != 1 {
			t.Fatalf("staged counter = %d, want 1", counter)
		}
		if _, err := w.GetRecord(ctx, 1); err != nil {
			t.Fatalf("staged record not visible: %v", err)
		}
		records, err := w.ListRecords(ctx, 0, 10)
		if err != nil {
			return err
		}
		if len(records) != 1 {
			t.Fatalf("staged list len = %d, want 1", len(records))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func testListRecords(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, "alice", 5)
	err := store.View(ctx, func(r storage.Reader) error {
		first, err := r.ListRecords(ctx, 0, 2)
		if err != nil {
			return err
		}
		if got := keysOf(first); !slices.Equal(got, []uint64{1, 2}) {
			t.Fatalf("first page = %v", got)
		}
		rest, err := r.ListRecords(ctx, 2, 10)
		if err != nil {
			return err
		}
		if got := keysOf(rest); !slices.Equal(got, []uint64{3, 4, 5}) {
			t.Fatalf("second page = %v", got)
		}
		none, err := r.ListRecords(ctx, 5, 10)
		if err != nil {
			return err
		}
		if len(none) != 0 {
			t.Fatalf("expected empty page, got %v", keysOf(none))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testEvents(t *testing.T, store storage.Store) {
	ctx := context.Background()
	var appended []storage.Event
	err := store.Update(ctx, func(w storage.Writer) error {
		for _, event := range []storage.Event{
			{RecordKey: 1, Type: "record.created", Actor: "alice", Owner: "alice", Clock: 10},
			{RecordKey: 2, Type: "record.created", Actor: "bob", Owner: "bob", Clock: 11},
			{RecordKey: 1, Type: "record.owner_transferred", Actor: "alice", Owner: "bob", Clock: 12},
		} {
			stored, err := w.AppendEvent(ctx, event)
			if err != nil {
				return err
			}
			appended = append(appended, stored)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}
	for i := 1; i < len(appended); i++ {
		if appended[i].Seq <= appended[i-1].Seq {
			t.Fatalf("event seqs not increasing: %d then %d", appended[i-1].Seq, appended[i].Seq)
		}
	}

	err = store.View(ctx, func(r storage.Reader) error {
		all, err := r.ListEvents(ctx, 0, 0, 10)
		if err != nil {
			return err
		}
		if len(all) != 3 {
			t.Fatalf("all events len = %d, want 3", len(all))
		}
		forOne, err := r.ListEvents(ctx, 1, 0, 10)
		if err != nil {
			return err
		}
		if len(forOne) != 2 || forOne[1].Type != "record.owner_transferred" || forOne[1].Owner != "bob" {
			t.Fatalf("record 1 events = %+v", forOne)
		}
		after, err := r.ListEvents(ctx, 1, forOne[0].Seq, 10)
		if err != nil {
			return err
		}
		if len(after) != 1 || after[0].Seq != forOne[1].Seq || after[0].Clock != 12 {
			t.Fatalf("events after first = %+v", after)
		}
		limited, err := r.ListEvents(ctx, 0, 0, 1)
		if err != nil {
			return err
		}
		if len(limited) != 1 || limited[0].Seq != appended[0].Seq {
			t.Fatalf("limited events = %+v", limited)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testSnapshots(t *testing.T, store storage.Store) {
	ctx := context.Background()
	Seed(t, store, "alice", 1)
	err := store.View(ctx, func(r storage.Reader) error {
		record, err := r.GetRecord(ctx, 1)
		if err != nil {
			return err
		}
		record.Taxonomy[0] = "mutated"
		again, err := r.GetRecord(ctx, 1)
		if err != nil {
			return err
		}
		if again.Taxonomy[0] != "b" {
			t.Fatalf("stored taxonomy changed through snapshot: %v", again.Taxonomy)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testViewReadOnly(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_ = store.View(ctx, func(r storage.Reader) error {
		w, ok := r.(storage.Writer)
		if !ok {
			return nil
		}
		if err := w.SetCounter(ctx, 9); err == nil {
			t.Fatal("expected write inside view to fail")
		}
		return nil
	})
	testEmpty(t, store)
}

func assertOwner(t *testing.T, store storage.Store, key uint64, owner string) {
	t.Helper()
	ctx := context.Background()
	err := store.View(ctx, func(r storage.Reader) error {
		record, err := r.GetRecord(ctx, key)
		if err != nil {
			return err
		}
		if record.Owner != owner {
			t.Fatalf("owner = %q, want %q", record.Owner, owner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func assertEventCount(t *testing.T, store storage.Store, want int) {
	t.Helper()
	ctx := context.Background()
	err := store.View(ctx, func(r storage.Reader) error {
		events, err := r.ListEvents(ctx, 0, 0, 100)
		if err != nil {
			return err
		}
		if len(events) != want {
			t.Fatalf("event count = %d, want %d", len(events), want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testMultibyteText(t *testing.T, store storage.Store) {
	ctx := context.Background()
	const owner = "zoë-日本"
	want := storage.Record{
		Key:          1,
		Owner:        owner,
		Metadata:     strings.Repeat("é", 32),
		Metric:       9,
		Notes:        strings.Repeat("☃", 42) + "ab",
		Taxonomy:     []string{strings.Repeat("ü", 16), "Ω"},
		GenesisBlock: 3,
	}
	err := store.Update(ctx, func(w storage.Writer) error {
		if err := w.InsertRecord(ctx, want); err != nil {
			return err
		}
		if err := w.InsertGrant(ctx, storage.Grant{RecordKey: 1, Identity: owner, Granted: true}); err != nil {
			return err
		}
		_, err := w.AppendEvent(ctx, storage.Event{RecordKey: 1, Type: "record.created", Actor: owner, Owner: owner, Clock: 3})
		return err
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = store.View(ctx, func(r storage.Reader) error {
		record, err := r.GetRecord(ctx, 1)
		if err != nil {
			return err
		}
		if !recordsEqual(record, want) {
			t.Fatalf("record = %+v, want %+v", record, want)
		}
		if len(record.Metadata) != 64 || len(record.Notes) != 128 || len(record.Taxonomy[0]) != 32 {
			t.Fatalf("text lengths changed: %d %d %d", len(record.Metadata), len(record.Notes), len(record.Taxonomy[0]))
		}
		if _, err := r.GetGrant(ctx, 1, record.Owner); err != nil {
			return fmt.Errorf("grant for stored owner: %w", err)
		}
		events, err := r.ListEvents(ctx, 1, 0, 10)
		if err != nil {
			return err
		}
		if len(events) != 1 || events[0].Actor != owner || events[0].Owner != owner {
			t.Fatalf("events = %+v", events)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func recordsEqual(a, b storage.Record) bool {
	return a.Key == b.Key &&
		a.Owner == b.Owner &&
		a.Metadata == b.Metadata &&
		a.Metric == b.Metric &&
		a.Notes == b.Notes &&
		a.GenesisBlock == b.GenesisBlock &&
		slices.Equal(a.Taxonomy, b.Taxonomy)
}

func keysOf(records []storage.Record) []uint64 {
	keys := make([]uint64, len(records))
	for i, record := range records {
		keys[i] = record.Key
	}
	return keys
}
