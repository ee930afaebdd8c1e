package bbolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTempStore(t, filepath.Join(t.TempDir(), "registry.bolt"))
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	storagetest.Seed(t, store, "alice", 3)
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened := openTempStore(t, path)
	ctx := context.Background()
	err = reopened.View(ctx, func(r storage.Reader) error {
		counter, err := r.Counter(ctx)
		if err != nil {
			return err
		}
		if counter != 3 {
			t.Fatalf("counter = %d, want 3", counter)
		}
		grant, err := r.GetGrant(ctx, 3, "alice")
		if err != nil {
			return err
		}
		if !grant.Granted {
			t.Fatal("expected grant to survive reopen")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view reopened store: %v", err)
	}
}

func TestGrantKeysDoNotCollideAcrossRecords(t *testing.T) {
	store := openTempStore(t, filepath.Join(t.TempDir(), "registry.bolt"))
	ctx := context.Background()
	err := store.Update(ctx, func(w storage.Writer) error {
		if err := w.InsertGrant(ctx, storage.Grant{RecordKey: 1, Identity: "alice", Granted: true}); err != nil {
			return err
		}
		return w.InsertGrant(ctx, storage.Grant{RecordKey: 2, Identity: "alice", Granted: true})
	})
	if err != nil {
		t.Fatalf("insert grants: %v", err)
	}
	err = store.View(ctx, func(r storage.Reader) error {
		if _, err := r.GetGrant(ctx, 3, "alice"); err != storage.ErrNotFound {
			t.Fatalf("grant for record 3 err = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestListRecordsAtMaxKey(t *testing.T) {
	store := openTempStore(t, filepath.Join(t.TempDir(), "registry.bolt"))
	ctx := context.Background()
	err := store.View(ctx, func(r storage.Reader) error {
		records, err := r.ListRecords(ctx, ^uint64(0), 10)
		if err != nil {
			return err
		}
		if len(records) != 0 {
			t.Fatalf("expected no records past max key, got %d", len(records))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func openTempStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
