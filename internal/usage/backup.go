package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/clock"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultRetention is the number of backups kept after each Create.
const DefaultRetention = 5

// BackupInfo identifies one backup.
type BackupInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backups manages timestamped copies of the live store next to it in the
// same backend.
type Backups struct {
	tracker   *Tracker
	retention int
	clock     clock.Clock
	logger    zerolog.Logger

	mu     sync.Mutex
	lastMS int64
}

// NewBackups creates a backup manager for tracker.
func NewBackups(tracker *Tracker, retention int, c clock.Clock, logger zerolog.Logger) *Backups {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if c == nil {
		c = clock.Real{}
	}
	return &Backups{
		tracker:   tracker,
		retention: retention,
		clock:     c,
		logger:    logger.With().Str("component", "backups").Logger(),
	}
}

// Retention returns the number of backups kept.
func (b *Backups) Retention() int { return b.retention }

func (b *Backups) prefix() string {
	return b.tracker.Key() + "_backup_"
}

// Create writes a copy of the live store and prunes old backups.
func (b *Backups) Create(ctx context.Context) (BackupInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.tracker.Snapshot(ctx)
	if err != nil {
		return BackupInfo{}, err
	}
	data, err := snap.Encode()
	if err != nil {
		return BackupInfo{}, err
	}

	// Ids must be unique and increasing even when two backups share a millisecond.
	ms := b.clock.Now().UnixMilli()
	if ms <= b.lastMS {
		ms = b.lastMS + 1
	}
	info := BackupInfo{
		ID:        b.prefix() + strconv.FormatInt(ms, 10),
		CreatedAt: time.UnixMilli(ms),
	}

	if err := b.tracker.store.Put(ctx, info.ID, data); err != nil {
		metrics.PersistFailures.WithLabelValues("backup").Inc()
		return BackupInfo{}, fmt.Errorf("write backup: %w", err)
	}
	b.lastMS = ms
	metrics.BackupsCreated.Inc()

	b.logger.Info().
		Str("id", info.ID).
		Int("sites", len(snap)).
		Msg("Backup created")

	if err := b.prune(ctx); err != nil {
		return info, err
	}
	return info, nil
}

// List returns backups newest first. Keys without a numeric timestamp are skipped.
func (b *Backups) List(ctx context.Context) ([]BackupInfo, error) {
	ids, err := b.tracker.store.Keys(ctx, b.prefix())
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(ids))
	for _, id := range ids {
		ms, ok := b.parseID(id)
		if !ok {
			continue
		}
		backups = append(backups, BackupInfo{ID: id, CreatedAt: time.UnixMilli(ms)})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore replaces the live store with the backup id.
func (b *Backups) Restore(ctx context.Context, id string) error {
	if _, ok := b.parseID(id); !ok {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}

	data, err := b.tracker.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("backup %s is corrupt: %w", id, err)
	}

	if err := b.tracker.Restore(ctx, snap); err != nil {
		metrics.PersistFailures.WithLabelValues("restore").Inc()
		return err
	}

	b.logger.Info().
		Str("id", id).
		Msg("Backup restored")
	return nil
}

// prune deletes everything beyond the newest retention backups.
func (b *Backups) prune(ctx context.Context) error {
	backups, err := b.List(ctx)
	if err != nil {
		return err
	}

	if len(backups) > b.retention {
		for _, old := range backups[b.retention:] {
			if err := b.tracker.store.Delete(ctx, old.ID); err != nil {
				return fmt.Errorf("delete backup %s: %w", old.ID, err)
			}
			b.logger.Debug().
				Str("id", old.ID).
				Msg("Pruned old backup")
		}
		backups = backups[:b.retention]
	}

	metrics.BackupsRetained.Set(float64(len(backups)))
	return nil
}

func (b *Backups) parseID(id string) (int64, bool) {
	suffix, ok := strings.CutPrefix(id, b.prefix())
	if !ok || suffix == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || ms < 0 {
		return 0, false
	}
	return ms, true
}
