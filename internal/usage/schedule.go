package usage

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/sitetime/internal/clock"
	"github.com/rs/zerolog"
)

// BackupScheduler creates one backup per day at a fixed local time
type BackupScheduler struct {
	backups  *Backups
	runAt    time.Time // Time of day to back up (only hour and minute are used)
	loc      *time.Location
	clock    clock.Clock
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewBackupScheduler creates a new backup scheduler
func NewBackupScheduler(backups *Backups, dailyTime string, loc *time.Location, c clock.Clock, logger zerolog.Logger) (*BackupScheduler, error) {
	// Parse backup time (HH:MM format)
	parsedTime, err := time.Parse("15:04", dailyTime)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if c == nil {
		c = clock.Real{}
	}

	return &BackupScheduler{
		backups:  backups,
		runAt:    parsedTime,
		loc:      loc,
		clock:    c,
		logger:   logger.With().Str("component", "backup-scheduler").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start begins the backup scheduler
func (bs *BackupScheduler) Start(ctx context.Context) {
	go bs.run(ctx)
	bs.logger.Info().
		Str("backup_time", bs.runAt.Format("15:04")).
		Msg("Daily backup scheduler started")
}

// Stop stops the backup scheduler and waits for an in-flight backup
func (bs *BackupScheduler) Stop() {
	bs.stopOnce.Do(func() {
		close(bs.stopChan)
		<-bs.done
		bs.logger.Info().Msg("Daily backup scheduler stopped")
	})
}

// run is the main scheduler loop
func (bs *BackupScheduler) run(ctx context.Context) {
	defer close(bs.done)
	for {
		next := bs.nextRun(bs.clock.Now())
		waitDuration := next.Sub(bs.clock.Now())

		bs.logger.Info().
			Time("next_backup", next).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next daily backup")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			bs.performBackup(ctx)
		case <-bs.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextRun calculates the next backup time after now
func (bs *BackupScheduler) nextRun(now time.Time) time.Time {
	now = now.In(bs.loc)

	// Get today's backup time
	today := time.Date(
		now.Year(), now.Month(), now.Day(),
		bs.runAt.Hour(), bs.runAt.Minute(), 0, 0,
		bs.loc,
	)

	// If we've already passed today's backup time, schedule for tomorrow
	if !now.Before(today) {
		return today.AddDate(0, 0, 1)
	}

	return today
}

// performBackup creates the daily backup
func (bs *BackupScheduler) performBackup(ctx context.Context) {
	bs.logger.Info().Msg("Performing daily backup")

	info, err := bs.backups.Create(ctx)
	if err != nil {
		bs.logger.Error().Err(err).Msg("Daily backup failed")
		return
	}

	bs.logger.Info().
		Str("id", info.ID).
		Msg("Daily backup complete")
}
