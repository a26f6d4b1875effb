package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/goodtune/sitetime/internal/storage/memory"
	"github.com/rs/zerolog"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps a memory store and fails writes while failPuts is set.
type flakyStore struct {
	*memory.Store

	mu       sync.Mutex
	failPuts bool
	puts     int
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.puts++
	fail := s.failPuts
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.Store.Put(ctx, key, value)
}

func (s *flakyStore) setFailPuts(fail bool) {
	s.mu.Lock()
	s.failPuts = fail
	s.mu.Unlock()
}

func (s *flakyStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

var _ storage.Store = (*flakyStore)(nil)

func newTestTracker(t *testing.T) (*Tracker, *flakyStore) {
	t.Helper()

	store := &flakyStore{Store: memory.New()}
	tracker, err := NewTracker(store, Config{Key: "sitetime", Location: time.UTC}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tracker, store
}

func newTestClock() *clock.Manual {
	return clock.NewManual(time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC))
}

func mustApply(t *testing.T, tracker *Tracker, domain string, at time.Time, delta int64) {
	t.Helper()
	if err := tracker.Apply(context.Background(), domain, at, delta); err != nil {
		t.Fatalf("Apply(%s, %s, %d): %v", domain, at, delta, err)
	}
}

func mustSnapshot(t *testing.T, tracker *Tracker) Snapshot {
	t.Helper()
	snap, err := tracker.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

// checkTotals asserts totalTime equals the sum of the daily buckets.
func checkTotals(t *testing.T, snap Snapshot) {
	t.Helper()
	for domain, rec := range snap {
		var sum int64
		for _, v := range rec.DailyData {
			sum += v
		}
		if sum != rec.TotalTime {
			t.Errorf("%s: totalTime = %d, sum of daily buckets = %d", domain, rec.TotalTime, sum)
		}
	}
}
