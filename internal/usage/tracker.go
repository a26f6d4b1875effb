package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/keys"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultStoreKey is the storage key of the live aggregate.
const DefaultStoreKey = "sitetime"

// Config holds tracker configuration
type Config struct {
	// Key is the storage key holding the live store. Backups derive their ids from it.
	Key string

	// Location decides which calendar hour, day and week a tick lands in.
	Location *time.Location

	// KeyCacheSize bounds the memoised bucket keys. Zero uses keys.DefaultCacheSize.
	KeyCacheSize int
}

// Confirmation asks the operator to approve a destructive operation.
type Confirmation interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmation.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Confirmed approves every prompt. Use it when approval was obtained out of band.
var Confirmed Confirmation = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// MergeResult reports the outcome of merging an incoming snapshot.
type MergeResult struct {
	SitesImported int `json:"sitesImported"`
}

// Tracker is the aggregate store. Every mutation is a read-modify-write of
// the whole snapshot under a single storage key, serialised by mu within the
// process.
type Tracker struct {
	store  storage.Store
	key    string
	keys   *keys.Cache
	logger zerolog.Logger

	mu sync.Mutex

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSub     int
}

// NewTracker creates a new tracker over store
func NewTracker(store storage.Store, config Config, logger zerolog.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if config.Key == "" {
		config.Key = DefaultStoreKey
	}
	if config.KeyCacheSize <= 0 {
		config.KeyCacheSize = keys.DefaultCacheSize
	}

	cache, err := keys.NewCache(config.Location, config.KeyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}

	return &Tracker{
		store:       store,
		key:         config.Key,
		keys:        cache,
		logger:      logger.With().Str("component", "usage-tracker").Logger(),
		subscribers: make(map[int]func(Event)),
	}, nil
}

// Key returns the storage key of the live store.
func (t *Tracker) Key() string { return t.key }

// Location returns the location used for bucket keys.
func (t *Tracker) Location() *time.Location { return t.keys.Location() }

// Apply credits delta seconds to domain in the hour, day and week containing at.
func (t *Tracker) Apply(ctx context.Context, domain string, at time.Time, delta int64) error {
	if !validDomain(domain) {
		return ErrInvalidDomain
	}
	if delta < 0 {
		return ErrInvalidDelta
	}
	if delta == 0 {
		return nil
	}

	set := t.keys.For(at)

	t.mu.Lock()
	defer t.mu.Unlock()

	snap, err := t.load(ctx)
	if err != nil {
		return err
	}

	rec, ok := snap[domain]
	if !ok {
		rec = NewRecord()
		snap[domain] = rec

		t.logger.Debug().
			Str("domain", domain).
			Msg("Tracking new domain")
	}

	// Every sum is checked before the record changes.
	var sums [4]int64
	for i, current := range [4]int64{
		rec.TotalTime,
		rec.HourlyData[set.Hour],
		rec.DailyData[set.Day],
		rec.WeeklyData[set.Week],
	} {
		if sums[i], err = addSeconds(current, delta); err != nil {
			return fmt.Errorf("apply %s: %w", domain, err)
		}
	}
	rec.TotalTime = sums[0]
	rec.HourlyData[set.Hour] = sums[1]
	rec.DailyData[set.Day] = sums[2]
	rec.WeeklyData[set.Week] = sums[3]

	if err := t.save(ctx, snap); err != nil {
		return err
	}

	t.logger.Trace().
		Str("domain", domain).
		Int64("delta", delta).
		Str("hour", set.Hour).
		Msg("Applied active time")
	return nil
}

// Snapshot returns a deep copy of the live store.
func (t *Tracker) Snapshot(ctx context.Context) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// Domain returns a copy of one domain's record.
func (t *Tracker) Domain(ctx context.Context, domain string) (*Record, error) {
	if !validDomain(domain) {
		return nil, ErrInvalidDomain
	}
	snap, err := t.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := snap[domain]
	if !ok {
		return nil, ErrDomainNotFound
	}
	return rec, nil
}

// Restore replaces the live store wholesale. Nothing is merged.
func (t *Tracker) Restore(ctx context.Context, snap Snapshot) error {
	replacement := snap.Clone()

	t.mu.Lock()
	err := t.save(ctx, replacement)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.logger.Info().
		Int("sites", len(replacement)).
		Msg("Store restored")
	t.notify(Event{Kind: EventRestored, Sites: len(replacement), At: time.Now()})
	return nil
}

// Merge folds incoming into the live store and persists the result.
func (t *Tracker) Merge(ctx context.Context, incoming Snapshot) (MergeResult, error) {
	t.mu.Lock()
	current, err := t.load(ctx)
	if err != nil {
		t.mu.Unlock()
		return MergeResult{}, err
	}
	merged, err := Merge(current, incoming)
	if err != nil {
		t.mu.Unlock()
		return MergeResult{}, err
	}
	err = t.save(ctx, merged)
	t.mu.Unlock()
	if err != nil {
		return MergeResult{}, err
	}

	result := MergeResult{SitesImported: len(incoming)}
	metrics.MergesTotal.Inc()
	t.logger.Info().
		Int("sites_imported", result.SitesImported).
		Int("sites_total", len(merged)).
		Msg("Snapshot merged")
	t.notify(Event{Kind: EventMerged, Sites: len(merged), At: time.Now()})
	return result, nil
}

// ClearAll removes every record once confirm approves. Backups are kept.
func (t *Tracker) ClearAll(ctx context.Context, confirm Confirmation) error {
	if confirm == nil {
		return fmt.Errorf("%w: no confirmation available", ErrCancelled)
	}
	ok, err := confirm.Confirm(ctx, "Clear all tracked time? This cannot be undone.")
	if err != nil {
		return fmt.Errorf("confirm clear: %w", err)
	}
	if !ok {
		return ErrCancelled
	}

	t.mu.Lock()
	err = t.save(ctx, Snapshot{})
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.logger.Warn().Msg("All tracking data cleared")
	t.notify(Event{Kind: EventCleared, At: time.Now()})
	return nil
}

// Subscribe registers fn for destructive store changes. The returned
// function removes the subscription.
func (t *Tracker) Subscribe(fn func(Event)) func() {
	t.subMu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subscribers[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subscribers, id)
		t.subMu.Unlock()
	}
}

func (t *Tracker) notify(ev Event) {
	t.subMu.RLock()
	fns := make([]func(Event), 0, len(t.subscribers))
	for _, fn := range t.subscribers {
		fns = append(fns, fn)
	}
	t.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// load must be called with mu held. Missing or malformed data yields an
// empty store; backend failures are returned.
func (t *Tracker) load(ctx context.Context) (Snapshot, error) {
	data, err := t.store.Get(ctx, t.key)
	if errors.Is(err, storage.ErrNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		return Snapshot{}, nil
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("key", t.key).
			Msg("Stored data is malformed, starting from an empty store")
		return Snapshot{}, nil
	}
	return snap, nil
}

// save must be called with mu held.
func (t *Tracker) save(ctx context.Context, snap Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	if err := t.store.Put(ctx, t.key, data); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	metrics.DomainsTracked.Set(float64(len(snap)))
	return nil
}

// validDomain rejects blank names. Domains are otherwise opaque and matched
// exactly, whether they arrive from ticks, imports or restores.
func validDomain(domain string) bool {
	return strings.TrimSpace(domain) != ""
}
