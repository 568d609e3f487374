package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayambilseva/varshitap-booking/internal/capacity"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

// setupEnv points every data path at a per-test directory so commands
// run against a scratch workbook.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("VRT_STORE_PATH", filepath.Join(dir, "bookings.xlsx"))
	t.Setenv("VRT_BACKUP_DIR", filepath.Join(dir, "backups"))
	t.Setenv("VRT_EXPORT_DIR", filepath.Join(dir, "exports"))
	t.Setenv("VRT_ARCHIVE_DIR", filepath.Join(dir, "archives"))
	t.Setenv("VRT_AUDIT_LOG", filepath.Join(dir, "audit.log"))
	return dir
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCommand(a)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return stdout.String(), err
}

func tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format(storage.DayFormat)
}

func TestInitCreatesStore(t *testing.T) {
	dir := setupEnv(t)

	out, err := executeCommand(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Store ready at")
	assert.FileExists(t, filepath.Join(dir, "bookings.xlsx"))
}

func TestAddGetRoundTrip(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "add", "--name", "Hansa Shah", "--date", tomorrow(), "--city", "Surat")
	require.NoError(t, err)

	var created storage.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, storage.StatusPending, created.Status)

	out, err = executeCommand(t, "get", created.ID)
	require.NoError(t, err)

	var fetched storage.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &fetched))
	assert.Equal(t, "Hansa Shah", fetched.Name)
	assert.Equal(t, "Surat", fetched.City)
}

func TestAddRejectsPastDate(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	_, err = executeCommand(t, "add", "--name", "Hansa Shah", "--date", "2020-01-01")
	assert.ErrorIs(t, err, capacity.ErrPastDate)
}

func TestUpdateRequiresFieldFlag(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	_, err = executeCommand(t, "update", "VRT-1-deadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestListFiltersByStatus(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "add", "--name", "Hansa Shah")
	require.NoError(t, err)
	var first storage.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &first))

	_, err = executeCommand(t, "add", "--name", "Jigar Mehta")
	require.NoError(t, err)

	_, err = executeCommand(t, "update", first.ID, "--status", "reviewed")
	require.NoError(t, err)

	out, err = executeCommand(t, "list", "--status", "reviewed")
	require.NoError(t, err)

	var subs []storage.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, first.ID, subs[0].ID)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	_, err = executeCommand(t, "list", "--status", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestDeleteRemovesRecord(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "add", "--name", "Hansa Shah")
	require.NoError(t, err)
	var created storage.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &created))

	out, err = executeCommand(t, "delete", created.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+created.ID)

	_, err = executeCommand(t, "get", created.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStatsOnEmptyStore(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "stats")
	require.NoError(t, err)

	var stats storage.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Pending)
}

func TestValidateDatePast(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "validate-date", "2020-01-01")
	require.NoError(t, err, "a past day is an answer, not a failure")

	var v capacity.Validation
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.False(t, v.Valid)
	assert.True(t, v.PastDate)
}

func TestNextDateOnEmptyStore(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "next-date")
	require.NoError(t, err)

	var slot capacity.DaySlot
	require.NoError(t, json.Unmarshal([]byte(out), &slot))
	assert.Equal(t, tomorrow(), slot.Date)
}

func TestNextDateFromGivenDay(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	from := time.Now().AddDate(0, 0, 14).Format(storage.DayFormat)
	out, err := executeCommand(t, "next-date", "--from", from)
	require.NoError(t, err)

	var slot capacity.DaySlot
	require.NoError(t, json.Unmarshal([]byte(out), &slot))
	assert.Equal(t, from, slot.Date, "an open starting day is itself the answer")
}

func TestBackupCreateAndList(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "backup", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "Backup written to")

	out, err = executeCommand(t, "backup", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "bookings_backup_")
}

func TestHealthMissingStoreIsHealthy(t *testing.T) {
	setupEnv(t)

	out, err := executeCommand(t, "health")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "healthy"`)
}

func TestArchiveWithNothingOld(t *testing.T) {
	setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	out, err := executeCommand(t, "archive")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to archive")
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	dir := setupEnv(t)
	_, err := executeCommand(t, "init")
	require.NoError(t, err)

	_, err = executeCommand(t, "add", "--name", "Hansa Shah")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"create"`)
}
