package memory

import (
	"context"
	"testing"

	"github.com/goodtune/sitetime/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, New())
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Put(ctx, "k", []byte("abc")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got[0] = 'x'

	again, _ := store.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value changed through returned slice: %q", again)
	}
}
