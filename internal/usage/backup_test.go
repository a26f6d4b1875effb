package usage

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBackups_CreateKeepsNewestFive(t *testing.T) {
	tracker, store := newTestTracker(t)
	c := newTestClock()
	backups := NewBackups(tracker, 0, c, zerolog.Nop())
	ctx := context.Background()

	mustApply(t, tracker, "example.com", c.Now(), 5)

	var created []BackupInfo
	for i := 0; i < 6; i++ {
		info, err := backups.Create(ctx)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		created = append(created, info)
		c.Advance(time.Minute)
	}

	listed, err := backups.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != DefaultRetention {
		t.Fatalf("retained %d backups, want %d", len(listed), DefaultRetention)
	}
	if listed[0].ID != created[5].ID {
		t.Errorf("newest backup = %s, want %s", listed[0].ID, created[5].ID)
	}
	for _, info := range listed {
		if info.ID == created[0].ID {
			t.Errorf("oldest backup %s was not pruned", info.ID)
		}
	}

	keys, err := store.Keys(ctx, "sitetime_backup_")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != DefaultRetention {
		t.Errorf("store holds %d backups, want %d", len(keys), DefaultRetention)
	}
}

func TestBackups_IDsUniqueWithinMillisecond(t *testing.T) {
	tracker, _ := newTestTracker(t)
	c := newTestClock()
	backups := NewBackups(tracker, 5, c, zerolog.Nop())

	first, err := backups.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := backups.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if first.ID == second.ID {
		t.Fatalf("duplicate backup id %s", first.ID)
	}
	want := "sitetime_backup_" + strconv.FormatInt(c.Now().UnixMilli(), 10)
	if first.ID != want {
		t.Errorf("first id = %s, want %s", first.ID, want)
	}
}

func TestBackups_ListSkipsUnparseableKeys(t *testing.T) {
	tracker, store := newTestTracker(t)
	backups := NewBackups(tracker, 5, newTestClock(), zerolog.Nop())
	ctx := context.Background()

	for _, key := range []string{"sitetime_backup_abc", "sitetime_backup_", "sitetime_backup_-5"} {
		if err := store.Put(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	if _, err := backups.Create(ctx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	listed, err := backups.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %v, want a single valid backup", listed)
	}

	// Unparseable keys are neither listed nor pruned.
	if _, err := store.Get(ctx, "sitetime_backup_abc"); err != nil {
		t.Errorf("unparseable key removed: %v", err)
	}
}

func TestBackups_Restore(t *testing.T) {
	tracker, _ := newTestTracker(t)
	c := newTestClock()
	backups := NewBackups(tracker, 5, c, zerolog.Nop())
	ctx := context.Background()

	mustApply(t, tracker, "example.com", c.Now(), 10)
	info, err := backups.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mustApply(t, tracker, "example.com", c.Now(), 5)
	mustApply(t, tracker, "other.com", c.Now(), 1)

	if err := backups.Restore(ctx, info.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	snap := mustSnapshot(t, tracker)
	if len(snap) != 1 || snap["example.com"].TotalTime != 10 {
		t.Fatalf("restored snapshot = %+v", snap)
	}
}

func TestBackups_RestoreErrors(t *testing.T) {
	tracker, store := newTestTracker(t)
	backups := NewBackups(tracker, 5, newTestClock(), zerolog.Nop())
	ctx := context.Background()

	mustApply(t, tracker, "example.com", time.Now(), 3)
	if err := store.Put(ctx, "sitetime_backup_42", []byte("{broken")); err != nil {
		t.Fatalf("seed corrupt backup: %v", err)
	}

	tests := []struct {
		name         string
		id           string
		wantNotFound bool
	}{
		{name: "missing", id: "sitetime_backup_1", wantNotFound: true},
		{name: "foreign prefix", id: "sitetime", wantNotFound: true},
		{name: "corrupt", id: "sitetime_backup_42", wantNotFound: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backups.Restore(ctx, tt.id)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrBackupNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(ErrBackupNotFound) = %v for %v", got, err)
			}
		})
	}

	if got := mustSnapshot(t, tracker)["example.com"].TotalTime; got != 3 {
		t.Fatalf("failed restores changed the live store: totalTime = %d", got)
	}
}
