package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/audit"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

type fakeStore struct {
	gotCutoff time.Time
	gotDir    string
	result    storage.ArchiveResult
	err       error
}

func (f *fakeStore) ArchiveOlderThan(cutoff time.Time, dir string) (storage.ArchiveResult, error) {
	f.gotCutoff = cutoff
	f.gotDir = dir
	return f.result, f.err
}

type fakeBackups struct {
	calls int
	err   error
}

func (f *fakeBackups) Create() (string, error) {
	f.calls++
	return "b.xlsx", f.err
}

type fakeLocker struct {
	calls int
	err   error
}

func (f *fakeLocker) WithLock(_ context.Context, fn func() error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn()
}

type fakeAuditor struct {
	entries []audit.Entry
}

func (f *fakeAuditor) Record(_ context.Context, entry audit.Entry) {
	f.entries = append(f.entries, entry)
}

func newTestArchiver(store *fakeStore, backups *fakeBackups, locker *fakeLocker) (*Archiver, *fakeAuditor) {
	auditor := &fakeAuditor{}
	a := New(store, backups, locker, auditor, "archives", zap.NewNop())
	a.timeNow = func() time.Time {
		return time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	}
	return a, auditor
}

func TestArchiveOlderThanMonths(t *testing.T) {
	store := &fakeStore{result: storage.ArchiveResult{ArchivedCount: 4, ArchivePath: "archives/a.xlsx"}}
	backups := &fakeBackups{}
	locker := &fakeLocker{}
	a, auditor := newTestArchiver(store, backups, locker)

	res, err := a.ArchiveOlderThanMonths(context.Background(), 12)
	require.NoError(t, err)

	assert.Equal(t, 4, res.ArchivedCount)
	assert.Equal(t, 1, backups.calls, "a backup must precede the rewrite")
	assert.Equal(t, 1, locker.calls, "the rewrite must run under the lock")
	assert.Equal(t, "archives", store.gotDir)

	want := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	assert.True(t, store.gotCutoff.Equal(want), "cutoff must be now minus the months")

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, audit.ActionArchive, auditor.entries[0].Action)
	assert.Equal(t, "4 records to archives/a.xlsx", auditor.entries[0].Detail)
}

func TestArchiveSkipsAuditWhenNothingMoved(t *testing.T) {
	store := &fakeStore{result: storage.ArchiveResult{}}
	a, auditor := newTestArchiver(store, &fakeBackups{}, &fakeLocker{})

	_, err := a.ArchiveOlderThanMonths(context.Background(), 12)
	require.NoError(t, err)
	assert.Empty(t, auditor.entries, "a pass that moved nothing is not a mutation")
}

func TestArchiveRejectsNonPositiveMonths(t *testing.T) {
	a, _ := newTestArchiver(&fakeStore{}, &fakeBackups{}, &fakeLocker{})

	for _, months := range []int{0, -3} {
		_, err := a.ArchiveOlderThanMonths(context.Background(), months)
		assert.ErrorIs(t, err, ErrArchival)
	}
}

func TestArchiveAbortsWhenBackupFails(t *testing.T) {
	store := &fakeStore{}
	backups := &fakeBackups{err: errors.New("disk full")}
	locker := &fakeLocker{}
	a, _ := newTestArchiver(store, backups, locker)

	_, err := a.ArchiveOlderThanMonths(context.Background(), 6)
	assert.ErrorIs(t, err, ErrArchival)
	assert.Zero(t, locker.calls, "no lock and no rewrite without a backup")
	assert.True(t, store.gotCutoff.IsZero())
}

func TestArchiveWrapsLockFailure(t *testing.T) {
	lockErr := errors.New("lock busy")
	a, _ := newTestArchiver(&fakeStore{}, &fakeBackups{}, &fakeLocker{err: lockErr})

	_, err := a.ArchiveOlderThanMonths(context.Background(), 6)
	assert.ErrorIs(t, err, ErrArchival)
	assert.ErrorIs(t, err, lockErr, "the underlying cause must stay visible")
}

func TestArchiveWrapsStoreFailure(t *testing.T) {
	storeErr := errors.New("workbook unreadable")
	a, _ := newTestArchiver(&fakeStore{err: storeErr}, &fakeBackups{}, &fakeLocker{})

	_, err := a.ArchiveBefore(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrArchival)
	assert.ErrorIs(t, err, storeErr)
}

func TestSweepStopsOnCancel(t *testing.T) {
	a, _ := newTestArchiver(&fakeStore{}, &fakeBackups{}, &fakeLocker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- a.Sweep(ctx, 12, time.Hour) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Sweep must return promptly after cancellation")
	}
}

func TestSweepRunsPasses(t *testing.T) {
	store := &fakeStore{result: storage.ArchiveResult{ArchivedCount: 1, ArchivePath: "a.xlsx"}}
	backups := &fakeBackups{}
	a, _ := newTestArchiver(store, backups, &fakeLocker{})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	require.NoError(t, a.Sweep(ctx, 12, 20*time.Millisecond))
	assert.GreaterOrEqual(t, backups.calls, 2, "the sweep must fire on every tick")
}
