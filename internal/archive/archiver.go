package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/audit"
	"github.com/ayambilseva/varshitap-booking/internal/metrics"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

// ErrArchival wraps any failure during an archival pass.
var ErrArchival = errors.New("archival failed")

// Store is the slice of the record store archival needs.
type Store interface {
	ArchiveOlderThan(cutoff time.Time, archiveDir string) (storage.ArchiveResult, error)
}

// Backups takes a safety copy before the live file is rewritten.
type Backups interface {
	Create() (string, error)
}

// Locker serializes the rewrite against other writers.
type Locker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// Auditor records what happened to the trail.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Archiver moves old records out of the live workbook into archive
// files. Every pass is preceded by a backup; if the backup cannot be
// taken the pass does not run.
type Archiver struct {
	store   Store
	backups Backups
	locker  Locker
	auditor Auditor
	dir     string
	logger  *zap.Logger
	timeNow func() time.Time
}

func New(store Store, backups Backups, locker Locker, auditor Auditor, dir string, logger *zap.Logger) *Archiver {
	return &Archiver{
		store:   store,
		backups: backups,
		locker:  locker,
		auditor: auditor,
		dir:     dir,
		logger:  logger,
		timeNow: time.Now,
	}
}

// ArchiveOlderThanMonths archives everything dated strictly before
// now minus the given number of months.
func (a *Archiver) ArchiveOlderThanMonths(ctx context.Context, months int) (storage.ArchiveResult, error) {
	if months <= 0 {
		return storage.ArchiveResult{}, fmt.Errorf("%w: months must be positive, got %d", ErrArchival, months)
	}
	return a.ArchiveBefore(ctx, a.timeNow().AddDate(0, -months, 0))
}

// ArchiveBefore archives everything dated strictly before cutoff.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time) (storage.ArchiveResult, error) {
	if _, err := a.backups.Create(); err != nil {
		return storage.ArchiveResult{}, fmt.Errorf("%w: backup first: %w", ErrArchival, err)
	}

	var res storage.ArchiveResult
	err := a.locker.WithLock(ctx, func() error {
		var archiveErr error
		res, archiveErr = a.store.ArchiveOlderThan(cutoff, a.dir)
		return archiveErr
	})
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrArchival, err)
	}

	if res.ArchivedCount > 0 {
		metrics.ArchivedRecordsTotal.Add(float64(res.ArchivedCount))

		entry := audit.New(audit.ActionArchive, "")
		entry.Detail = fmt.Sprintf("%d records to %s", res.ArchivedCount, res.ArchivePath)
		a.auditor.Record(ctx, entry)
	}
	return res, nil
}

// Sweep runs archival on a fixed interval until ctx is done. Failures
// are logged and the next tick tries again.
func (a *Archiver) Sweep(ctx context.Context, months int, interval time.Duration) error {
	a.logger.Info("archival sweep started",
		zap.Int("months", months),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archival sweep stopped")
			return nil
		case <-ticker.C:
			res, err := a.ArchiveOlderThanMonths(ctx, months)
			if err != nil {
				a.logger.Error("archival sweep pass failed", zap.Error(err))
				continue
			}
			if res.ArchivedCount > 0 {
				a.logger.Info("archival sweep pass done",
					zap.Int("archived", res.ArchivedCount),
					zap.String("archive", res.ArchivePath),
				)
			}
		}
	}
}
