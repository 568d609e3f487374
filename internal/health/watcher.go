package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-runs the health check whenever the workbook changes on
// disk. It watches the directory rather than the file itself: the store
// swaps the file out by rename, which would silently detach a watch on
// the old inode.
type Watcher struct {
	monitor   *Monitor
	storePath string
	logger    *zap.Logger
}

func NewWatcher(monitor *Monitor, storePath string, logger *zap.Logger) *Watcher {
	return &Watcher{
		monitor:   monitor,
		storePath: storePath,
		logger:    logger,
	}
}

// Run blocks until ctx is done, logging every health status transition
// triggered by a store change.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.storePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir %s: %w", dir, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	base := filepath.Base(w.storePath)
	prev := w.monitor.Check().Status
	w.logger.Info("store watcher started",
		zap.String("dir", dir),
		zap.String("status", string(prev)),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("store watcher stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}

			report := w.monitor.Check()
			if report.Status == prev {
				continue
			}
			fields := []zap.Field{
				zap.String("from", string(prev)),
				zap.String("to", string(report.Status)),
				zap.Strings("warnings", report.Warnings),
			}
			if rank(report.Status) > rank(prev) {
				w.logger.Warn("store health degraded", fields...)
			} else {
				w.logger.Info("store health recovered", fields...)
			}
			prev = report.Status

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
