package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/metrics"
)

// ErrBackupNotFound is returned when a restore names a backup that does
// not exist in the backup directory.
var ErrBackupNotFound = errors.New("backup not found")

// Manager copies the live workbook into timestamped backup files and
// restores from them. Backups are plain file copies; a backup taken
// before every mutation is what makes the whole-file rewrite safe to
// interrupt.
type Manager struct {
	storePath string
	dir       string
	retention int
	logger    *zap.Logger
	timeNow   func() time.Time
}

// Info describes one backup file, newest first in listings.
type Info struct {
	Name    string
	Path    string
	SizeMB  float64
	Created time.Time
}

func NewManager(storePath, dir string, retention int, logger *zap.Logger) *Manager {
	return &Manager{
		storePath: storePath,
		dir:       dir,
		retention: retention,
		logger:    logger,
		timeNow:   time.Now,
	}
}

// Create copies the live store into the backup directory and prunes old
// backups past the retention count. When no store file exists yet there
// is nothing to protect and Create returns an empty path with no error.
func (m *Manager) Create() (string, error) {
	if _, err := os.Stat(m.storePath); os.IsNotExist(err) {
		m.logger.Debug("no store file yet, skipping backup")
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stat store: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(m.dir, m.backupName())
	if err := copyFile(m.storePath, path); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	metrics.BackupsCreatedTotal.Inc()
	m.logger.Info("backup created", zap.String("path", path))

	// Retention trouble must not fail the backup that just succeeded.
	if _, err := m.CleanOld(); err != nil {
		m.logger.Warn("pruning old backups failed", zap.Error(err))
	}
	return path, nil
}

// CleanOld removes the oldest backups beyond the retention count and
// returns how many were deleted.
func (m *Manager) CleanOld() (int, error) {
	backups, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(backups) <= m.retention {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[m.retention:] {
		if err := os.Remove(b.Path); err != nil {
			m.logger.Warn("could not remove old backup",
				zap.String("path", b.Path),
				zap.Error(err),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.BackupsPrunedTotal.Add(float64(removed))
		m.logger.Info("old backups pruned", zap.Int("count", removed))
	}
	return removed, nil
}

// List returns the known backups, newest first. A missing backup
// directory is an empty list, not an error.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	base, ext := m.splitStoreName()
	prefix := base + "_backup_"

	backups := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Name:    name,
			Path:    filepath.Join(m.dir, name),
			SizeMB:  float64(info.Size()) / (1024 * 1024),
			Created: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

// Restore replaces the live store with the named backup. The current
// live file, if any, is first snapshotted into the backup directory as
// corrupted_<millis> so a mistaken restore can itself be undone.
func (m *Manager) Restore(name string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid backup name %q", name)
	}

	src := filepath.Join(m.dir, name)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, name)
	} else if err != nil {
		return fmt.Errorf("stat backup: %w", err)
	}

	if _, err := os.Stat(m.storePath); err == nil {
		_, ext := m.splitStoreName()
		snap := filepath.Join(m.dir, fmt.Sprintf("corrupted_%d%s", m.timeNow().UnixMilli(), ext))
		if err := copyFile(m.storePath, snap); err != nil {
			m.logger.Warn("could not snapshot current file before restore",
				zap.Error(err))
		} else {
			m.logger.Info("current file snapshotted", zap.String("path", snap))
		}
	}

	if err := copyFile(src, m.storePath); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	m.logger.Info("store restored from backup", zap.String("backup", name))
	return nil
}

// LastBackupTime reports when the newest backup was taken. The second
// return is false when there are no backups at all.
func (m *Manager) LastBackupTime() (time.Time, bool) {
	backups, err := m.List()
	if err != nil || len(backups) == 0 {
		return time.Time{}, false
	}
	return backups[0].Created, true
}

func (m *Manager) backupName() string {
	base, ext := m.splitStoreName()
	ts := m.timeNow().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return base + "_backup_" + ts + ext
}

func (m *Manager) splitStoreName() (base, ext string) {
	name := filepath.Base(m.storePath)
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// copyFile copies src over dst through a temp file in the target
// directory, so dst is never visible half-written.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
