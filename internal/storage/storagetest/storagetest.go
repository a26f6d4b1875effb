// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goodtune/sitetime/internal/storage"
)

// Run exercises store against the storage.Store contract. The store must be
// empty when passed in.
func Run(t *testing.T, store storage.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		_, err := store.Get(context.Background(), "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Put(ctx, "sitetime", []byte(`{"a":1}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := store.Get(ctx, "sitetime")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `{"a":1}` {
			t.Errorf("Get = %s, want {\"a\":1}", got)
		}
	})

	t.Run("put replaces value", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Put(ctx, "sitetime", []byte(`{"a":2}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := store.Get(ctx, "sitetime")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `{"a":2}` {
			t.Errorf("Get = %s, want {\"a\":2}", got)
		}
	})

	t.Run("keys by prefix sorted", func(t *testing.T) {
		ctx := context.Background()
		for _, key := range []string{"sitetime_backup_300", "sitetime_backup_100", "other_backup_1", "sitetime_backup_200"} {
			if err := store.Put(ctx, key, []byte("{}")); err != nil {
				t.Fatalf("Put(%s): %v", key, err)
			}
		}

		got, err := store.Keys(ctx, "sitetime_backup_")
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		want := []string{"sitetime_backup_100", "sitetime_backup_200", "sitetime_backup_300"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Keys = %v, want %v", got, want)
		}
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Delete(ctx, "sitetime_backup_100"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, "sitetime_backup_100"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Get after delete error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, "sitetime_backup_100"); err != nil {
			t.Fatalf("Delete of missing key: %v", err)
		}

		got, err := store.Keys(ctx, "sitetime_backup_")
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Keys after delete = %v, want 2 keys", got)
		}
	})

	t.Run("empty value round trip", func(t *testing.T) {
		ctx := context.Background()
		if err := store.Put(ctx, "empty", []byte{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := store.Get(ctx, "empty")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Get = %q, want empty", got)
		}
	})
}
