package memory

import (
	"context"
	"testing"

	"github.com/louisbranch/recordkeep/internal/services/registry/storage"
	"github.com/louisbranch/recordkeep/internal/services/registry/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		store := New()
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestClosedStoreRejectsTransactions(t *testing.T) {
	store := New()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	ctx := context.Background()
	if err := store.View(ctx, func(storage.Reader) error { return nil }); err == nil {
		t.Fatal("expected view on closed store to fail")
	}
	if err := store.Update(ctx, func(storage.Writer) error { return nil }); err == nil {
		t.Fatal("expected update on closed store to fail")
	}
}

func TestNilStore(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if err := store.View(context.Background(), func(storage.Reader) error { return nil }); err == nil {
		t.Fatal("expected nil store view to fail")
	}
}
