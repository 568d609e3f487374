package booking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/audit"
	"github.com/ayambilseva/varshitap-booking/internal/booking"
	mock_booking "github.com/ayambilseva/varshitap-booking/internal/booking/mocks"
	"github.com/ayambilseva/varshitap-booking/internal/capacity"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

type serviceMocks struct {
	store     *mock_booking.MockStore
	backups   *mock_booking.MockBackups
	locker    *mock_booking.MockLocker
	admission *mock_booking.MockAdmission
	auditor   *mock_booking.MockAuditor
	svc       *booking.Service
}

func newServiceMocks(t *testing.T) *serviceMocks {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := &serviceMocks{
		store:     mock_booking.NewMockStore(ctrl),
		backups:   mock_booking.NewMockBackups(ctrl),
		locker:    mock_booking.NewMockLocker(ctrl),
		admission: mock_booking.NewMockAdmission(ctrl),
		auditor:   mock_booking.NewMockAuditor(ctrl),
	}
	m.svc = booking.NewService(m.store, m.backups, m.locker, m.admission, m.auditor, zap.NewNop())
	return m
}

// passThroughLock makes the mocked locker actually run the guarded
// function, which is what the real manager does once acquired.
func (m *serviceMocks) passThroughLock() *gomock.Call {
	return m.locker.EXPECT().
		WithLock(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fn func() error) error {
			return fn()
		})
}

func TestCreateHappyPath(t *testing.T) {
	m := newServiceMocks(t)

	sub := storage.Submission{Name: "Asha", BookingDate: "2025-03-15"}
	stored := sub
	stored.ID = "VRT-1-aaaaaaaa"
	stored.Status = storage.StatusPending

	var recorded audit.Entry
	gomock.InOrder(
		m.admission.EXPECT().Check("2025-03-15").Return(nil),
		m.backups.EXPECT().Create().Return("backups/b1.xlsx", nil),
		m.passThroughLock(),
	)
	m.admission.EXPECT().Check("2025-03-15").Return(nil) // re-check inside the lock
	m.store.EXPECT().Add(sub).Return(stored, nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Entry) { recorded = e })

	got, err := m.svc.Create(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, stored, got)
	assert.Equal(t, audit.ActionCreate, recorded.Action)
	assert.Equal(t, stored.ID, recorded.SubmissionID)
	assert.Equal(t, "pending", recorded.NewStatus)
	assert.Contains(t, recorded.Detail, "2025-03-15")
}

func TestCreateRejectsPastDateBeforeBackup(t *testing.T) {
	m := newServiceMocks(t)

	m.admission.EXPECT().Check("2024-01-01").
		Return(capacity.ErrPastDate)
	// No backup, no lock, no add: the cheap check failing means nothing
	// else may run.

	_, err := m.svc.Create(context.Background(), storage.Submission{BookingDate: "2024-01-01"})
	assert.ErrorIs(t, err, capacity.ErrPastDate)
}

func TestCreateAbortsWhenBackupFails(t *testing.T) {
	m := newServiceMocks(t)

	m.admission.EXPECT().Check("2025-03-15").Return(nil)
	m.backups.EXPECT().Create().Return("", errors.New("disk full"))

	_, err := m.svc.Create(context.Background(), storage.Submission{BookingDate: "2025-03-15"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup before create")
}

func TestCreateLosesRaceInsideLock(t *testing.T) {
	m := newServiceMocks(t)

	gomock.InOrder(
		m.admission.EXPECT().Check("2025-03-15").Return(nil),
		m.backups.EXPECT().Create().Return("b", nil),
		m.passThroughLock(),
	)
	// By the time the lock is held, another writer filled the day.
	m.admission.EXPECT().Check("2025-03-15").
		Return(capacity.ErrCapacityExceeded)

	_, err := m.svc.Create(context.Background(), storage.Submission{BookingDate: "2025-03-15"})
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)
}

func TestCreateWithoutDateSkipsAdmission(t *testing.T) {
	m := newServiceMocks(t)

	sub := storage.Submission{Name: "Walk-in"}
	stored := sub
	stored.ID = "VRT-2-bbbbbbbb"

	m.backups.EXPECT().Create().Return("b", nil)
	m.passThroughLock()
	m.store.EXPECT().Add(sub).Return(stored, nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any())

	got, err := m.svc.Create(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
}

func TestCreatePropagatesLockTimeout(t *testing.T) {
	m := newServiceMocks(t)

	lockErr := errors.New("store is locked by another writer")
	m.admission.EXPECT().Check("2025-03-15").Return(nil)
	m.backups.EXPECT().Create().Return("b", nil)
	m.locker.EXPECT().WithLock(gomock.Any(), gomock.Any()).Return(lockErr)

	_, err := m.svc.Create(context.Background(), storage.Submission{BookingDate: "2025-03-15"})
	assert.ErrorIs(t, err, lockErr)
}

func TestUpdateMovesDateWhenRoomExists(t *testing.T) {
	m := newServiceMocks(t)

	existing := storage.Submission{ID: "VRT-1", BookingDate: "2025-03-15", Status: storage.StatusPending}
	newDate := "2025-03-18"
	fields := storage.UpdateFields{BookingDate: &newDate}
	updated := existing
	updated.BookingDate = newDate

	var recorded audit.Entry
	gomock.InOrder(
		m.store.EXPECT().GetByID("VRT-1").Return(existing, nil),
		m.backups.EXPECT().Create().Return("b", nil),
		m.passThroughLock(),
	)
	m.admission.EXPECT().IsAvailable(newDate).
		Return(capacity.Availability{Date: newDate, Available: true, Max: 3, Remaining: 2}, nil)
	m.store.EXPECT().Update("VRT-1", fields).Return(updated, nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Entry) { recorded = e })

	got, err := m.svc.Update(context.Background(), "VRT-1", fields)
	require.NoError(t, err)

	assert.Equal(t, newDate, got.BookingDate)
	assert.Equal(t, audit.ActionUpdate, recorded.Action)
	assert.Equal(t, "pending", recorded.OldStatus)
}

func TestUpdateRejectsFullTargetDay(t *testing.T) {
	m := newServiceMocks(t)

	existing := storage.Submission{ID: "VRT-1", BookingDate: "2025-03-15"}
	newDate := "2025-03-18"

	m.store.EXPECT().GetByID("VRT-1").Return(existing, nil)
	m.backups.EXPECT().Create().Return("b", nil)
	m.passThroughLock()
	m.admission.EXPECT().IsAvailable(newDate).
		Return(capacity.Availability{Date: newDate, Available: false, Count: 3, Max: 3}, nil)

	_, err := m.svc.Update(context.Background(), "VRT-1", storage.UpdateFields{BookingDate: &newDate})
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)
}

func TestUpdateSameDateSkipsAvailability(t *testing.T) {
	m := newServiceMocks(t)

	existing := storage.Submission{ID: "VRT-1", BookingDate: "2025-03-15"}
	sameDate := "2025-03-15"
	fields := storage.UpdateFields{BookingDate: &sameDate}

	m.store.EXPECT().GetByID("VRT-1").Return(existing, nil)
	m.backups.EXPECT().Create().Return("b", nil)
	m.passThroughLock()
	m.store.EXPECT().Update("VRT-1", fields).Return(existing, nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any())

	_, err := m.svc.Update(context.Background(), "VRT-1", fields)
	assert.NoError(t, err)
}

func TestUpdateUnknownIDStopsEarly(t *testing.T) {
	m := newServiceMocks(t)

	m.store.EXPECT().GetByID("VRT-x").
		Return(storage.Submission{}, storage.ErrNotFound)

	name := "B"
	_, err := m.svc.Update(context.Background(), "VRT-x", storage.UpdateFields{Name: &name})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteHappyPath(t *testing.T) {
	m := newServiceMocks(t)

	existing := storage.Submission{ID: "VRT-1", Status: storage.StatusReviewed}

	var recorded audit.Entry
	gomock.InOrder(
		m.store.EXPECT().GetByID("VRT-1").Return(existing, nil),
		m.backups.EXPECT().Create().Return("b", nil),
		m.passThroughLock(),
	)
	m.store.EXPECT().Delete("VRT-1").Return(nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Entry) { recorded = e })

	require.NoError(t, m.svc.Delete(context.Background(), "VRT-1"))
	assert.Equal(t, audit.ActionDelete, recorded.Action)
	assert.Equal(t, "reviewed", recorded.OldStatus)
}

func TestDeleteAbortsWhenBackupFails(t *testing.T) {
	m := newServiceMocks(t)

	m.store.EXPECT().GetByID("VRT-1").Return(storage.Submission{ID: "VRT-1"}, nil)
	m.backups.EXPECT().Create().Return("", errors.New("disk full"))

	err := m.svc.Delete(context.Background(), "VRT-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup before delete")
}

func TestRestoreBackupRunsUnderLock(t *testing.T) {
	m := newServiceMocks(t)

	var recorded audit.Entry
	m.passThroughLock()
	m.backups.EXPECT().Restore("bookings_backup_x.xlsx").Return(nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Entry) { recorded = e })

	require.NoError(t, m.svc.RestoreBackup(context.Background(), "bookings_backup_x.xlsx"))
	assert.Equal(t, audit.ActionRestore, recorded.Action)
	assert.Contains(t, recorded.Detail, "bookings_backup_x.xlsx")
}

func TestRestoreBackupPropagatesFailure(t *testing.T) {
	m := newServiceMocks(t)

	m.passThroughLock()
	m.backups.EXPECT().Restore("nope.xlsx").Return(errors.New("backup not found"))

	err := m.svc.RestoreBackup(context.Background(), "nope.xlsx")
	assert.Error(t, err)
}

func TestExportRecordsAudit(t *testing.T) {
	m := newServiceMocks(t)

	filter := storage.ListFilter{Status: storage.StatusPending}
	var recorded audit.Entry
	m.store.EXPECT().ExportFiltered(filter).Return("exports/e.xlsx", nil)
	m.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Entry) { recorded = e })

	path, err := m.svc.Export(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, "exports/e.xlsx", path)
	assert.Equal(t, audit.ActionExport, recorded.Action)
}

func TestReadsPassThrough(t *testing.T) {
	m := newServiceMocks(t)

	sub := storage.Submission{ID: "VRT-1"}
	m.store.EXPECT().GetByID("VRT-1").Return(sub, nil)
	m.store.EXPECT().List(storage.ListFilter{}).Return([]storage.Submission{sub}, nil)
	m.store.EXPECT().Search("asha").Return([]storage.Submission{sub}, nil)
	m.store.EXPECT().Statistics().Return(storage.Stats{Total: 1}, nil)

	got, err := m.svc.Get("VRT-1")
	require.NoError(t, err)
	assert.Equal(t, sub, got)

	list, err := m.svc.List(storage.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	found, err := m.svc.Search("asha")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	stats, err := m.svc.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}
