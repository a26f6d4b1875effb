package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestPutValueScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "live aggregate", key: "sitetime", value: `{"a.com":{"totalTime":5}}`},
		{name: "backup", key: "sitetime_backup_1700000000000", value: `{}`},
		{name: "overwrite", key: "sitetime", value: `{"a.com":{"totalTime":6}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := client.Eval(ctx, putValueScript, []string{
				valuePrefix + tt.key,
				indexSet,
			}, tt.key, tt.value)
			if result.Err() != nil {
				t.Fatalf("Script execution failed: %v", result.Err())
			}

			got := client.Get(ctx, valuePrefix+tt.key)
			if got.Val() != tt.value {
				t.Errorf("Expected value %s, got %s", tt.value, got.Val())
			}

			if !client.SIsMember(ctx, indexSet, tt.key).Val() {
				t.Errorf("Expected %s in index set", tt.key)
			}
		})
	}

	if n := client.SCard(ctx, indexSet).Val(); n != 2 {
		t.Errorf("Expected 2 indexed keys, got %d", n)
	}
}

func TestDeleteValueScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()
	defer mr.Close()

	ctx := context.Background()

	if err := client.Eval(ctx, putValueScript, []string{valuePrefix + "sitetime", indexSet}, "sitetime", "{}").Err(); err != nil {
		t.Fatalf("Failed to put value: %v", err)
	}

	if err := client.Eval(ctx, deleteValueScript, []string{valuePrefix + "sitetime", indexSet}, "sitetime").Err(); err != nil {
		t.Fatalf("Failed to delete value: %v", err)
	}

	if client.Exists(ctx, valuePrefix+"sitetime").Val() > 0 {
		t.Error("Value key should be deleted")
	}
	if client.SIsMember(ctx, indexSet, "sitetime").Val() {
		t.Error("Key should not be in index set after delete")
	}

	// Deleting again is a no-op
	if err := client.Eval(ctx, deleteValueScript, []string{valuePrefix + "sitetime", indexSet}, "sitetime").Err(); err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
}
