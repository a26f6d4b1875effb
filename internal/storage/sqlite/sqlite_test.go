package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goodtune/sitetime/internal/storage/storagetest"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func TestStoreContract(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "sitetime.db"))
	defer func() { _ = store.Close() }()

	storagetest.Run(t, store)
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "sitetime.db")

	store := openTestStore(t, path)
	if err := store.Put(context.Background(), "sitetime", []byte(`{"a.com":{}}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestStore(t, path)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(context.Background(), "sitetime")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != `{"a.com":{}}` {
		t.Fatalf("unexpected value after reopen: %s", got)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
