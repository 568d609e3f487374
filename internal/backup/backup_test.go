package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testBase = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestManager(t *testing.T, retention int) (*Manager, string, string) {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "bookings.xlsx")
	backupDir := filepath.Join(dir, "backups")

	m := NewManager(storePath, backupDir, retention, zap.NewNop())
	clock := testBase
	m.timeNow = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return m, storePath, backupDir
}

func TestCreateSkipsWhenStoreMissing(t *testing.T) {
	m, _, backupDir := newTestManager(t, 30)

	path, err := m.Create()
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = os.Stat(backupDir)
	assert.True(t, os.IsNotExist(err), "no backup dir for a skipped backup")
}

func TestCreateCopiesStoreExactly(t *testing.T) {
	m, storePath, backupDir := newTestManager(t, 30)
	content := []byte("workbook-bytes-v1")
	require.NoError(t, os.WriteFile(storePath, content, 0o644))

	path, err := m.Create()
	require.NoError(t, err)

	assert.Equal(t, backupDir, filepath.Dir(path))
	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "bookings_backup_"), "got %s", name)
	assert.True(t, strings.HasSuffix(name, ".xlsx"), "got %s", name)
	assert.NotContains(t, name, ":", "backup names must be filesystem safe")

	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, copied)
}

func TestCreateEnforcesRetention(t *testing.T) {
	m, storePath, _ := newTestManager(t, 3)
	require.NoError(t, os.WriteFile(storePath, []byte("v"), 0o644))

	var newest string
	for i := 0; i < 5; i++ {
		path, err := m.Create()
		require.NoError(t, err)
		newest = path
	}

	backups, err := m.List()
	require.NoError(t, err)
	require.Len(t, backups, 3, "retention must cap the backup count")
	assert.Equal(t, filepath.Base(newest), backups[0].Name, "the newest backup survives pruning")
}

func TestListNewestFirst(t *testing.T) {
	m, storePath, _ := newTestManager(t, 30)
	require.NoError(t, os.WriteFile(storePath, []byte("v"), 0o644))

	first, err := m.Create()
	require.NoError(t, err)
	second, err := m.Create()
	require.NoError(t, err)

	backups, err := m.List()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, filepath.Base(second), backups[0].Name)
	assert.Equal(t, filepath.Base(first), backups[1].Name)
	assert.Greater(t, backups[0].SizeMB, 0.0)
}

func TestListMissingDirIsEmpty(t *testing.T) {
	m, _, _ := newTestManager(t, 30)

	backups, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestListIgnoresForeignFiles(t *testing.T) {
	m, storePath, backupDir := newTestManager(t, 30)
	require.NoError(t, os.WriteFile(storePath, []byte("v"), 0o644))
	_, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "corrupted_123.xlsx"), []byte("x"), 0o644))

	backups, err := m.List()
	require.NoError(t, err)
	assert.Len(t, backups, 1, "only real backups belong in the listing")
}

func TestLastBackupTime(t *testing.T) {
	m, storePath, _ := newTestManager(t, 30)

	_, ok := m.LastBackupTime()
	assert.False(t, ok, "no backups yet")

	require.NoError(t, os.WriteFile(storePath, []byte("v"), 0o644))
	_, err := m.Create()
	require.NoError(t, err)

	last, ok := m.LastBackupTime()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), last, time.Minute)
}

func TestRestore(t *testing.T) {
	m, storePath, backupDir := newTestManager(t, 30)
	require.NoError(t, os.WriteFile(storePath, []byte("good"), 0o644))

	path, err := m.Create()
	require.NoError(t, err)
	name := filepath.Base(path)

	require.NoError(t, os.WriteFile(storePath, []byte("mangled"), 0o644))

	require.NoError(t, m.Restore(name))

	live, err := os.ReadFile(storePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("good"), live)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	var snapshotted bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "corrupted_") {
			snapshotted = true
			data, readErr := os.ReadFile(filepath.Join(backupDir, e.Name()))
			require.NoError(t, readErr)
			assert.Equal(t, []byte("mangled"), data, "snapshot must hold the pre-restore file")
		}
	}
	assert.True(t, snapshotted, "restoring must snapshot the replaced file")
}

func TestRestoreUnknownBackup(t *testing.T) {
	m, _, _ := newTestManager(t, 30)

	err := m.Restore("bookings_backup_2024-01-01T00-00-00-000Z.xlsx")
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

func TestRestoreRejectsBadNames(t *testing.T) {
	m, _, _ := newTestManager(t, 30)

	for _, name := range []string{"", "../etc/passwd", "sub/dir.xlsx", "a..b..xlsx/.."} {
		err := m.Restore(name)
		require.Error(t, err, "name %q must be rejected", name)
		assert.NotErrorIs(t, err, ErrBackupNotFound)
	}
}
