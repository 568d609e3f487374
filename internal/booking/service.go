package booking

//go:generate mockgen -source service.go -destination mocks/service.go -package mock_booking

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/audit"
	"github.com/ayambilseva/varshitap-booking/internal/capacity"
	"github.com/ayambilseva/varshitap-booking/internal/metrics"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

// Store is everything the service needs from the record store.
type Store interface {
	Add(sub storage.Submission) (storage.Submission, error)
	GetByID(id string) (storage.Submission, error)
	List(filter storage.ListFilter) ([]storage.Submission, error)
	Update(id string, fields storage.UpdateFields) (storage.Submission, error)
	Delete(id string) error
	Search(query string) ([]storage.Submission, error)
	Statistics() (storage.Stats, error)
	ExportFiltered(filter storage.ListFilter) (string, error)
}

// Backups protects mutations and serves restores.
type Backups interface {
	Create() (string, error)
	Restore(name string) error
}

// Locker serializes writers across processes.
type Locker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// Admission answers whether a booking date can take another record.
type Admission interface {
	Check(date string) error
	IsAvailable(date string) (capacity.Availability, error)
}

// Auditor records what happened to the trail.
type Auditor interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service runs every mutation through the same discipline: admission
// first, then a backup, then the change itself under the lock, then the
// audit trail. Reads go straight through; they tolerate racing a writer
// because the workbook is swapped atomically.
type Service struct {
	store     Store
	backups   Backups
	locker    Locker
	admission Admission
	auditor   Auditor
	logger    *zap.Logger
}

func NewService(store Store, backups Backups, locker Locker, admission Admission, auditor Auditor, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		backups:   backups,
		locker:    locker,
		admission: admission,
		auditor:   auditor,
		logger:    logger,
	}
}

// Create admits, backs up and stores a new submission. The admission
// check runs twice: once before the expensive part so obviously bad
// requests fail fast, and again inside the lock against the rows the
// write will actually land on.
func (s *Service) Create(ctx context.Context, sub storage.Submission) (storage.Submission, error) {
	if sub.BookingDate != "" {
		if err := s.admission.Check(sub.BookingDate); err != nil {
			s.reject("create", err)
			return storage.Submission{}, err
		}
	}

	if _, err := s.backups.Create(); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("create").Inc()
		return storage.Submission{}, fmt.Errorf("backup before create: %w", err)
	}

	var stored storage.Submission
	err := s.locker.WithLock(ctx, func() error {
		if sub.BookingDate != "" {
			if err := s.admission.Check(sub.BookingDate); err != nil {
				return err
			}
		}
		var addErr error
		stored, addErr = s.store.Add(sub)
		return addErr
	})
	if err != nil {
		if isAdmissionError(err) {
			s.reject("create", err)
		} else {
			metrics.OperationErrorsTotal.WithLabelValues("create").Inc()
		}
		return storage.Submission{}, err
	}

	metrics.BookingsCreatedTotal.Inc()
	entry := audit.New(audit.ActionCreate, stored.ID)
	entry.NewStatus = string(stored.Status)
	if stored.BookingDate != "" {
		entry.Detail = "booked for " + stored.BookingDate
	}
	s.auditor.Record(ctx, entry)

	return stored, nil
}

// Update applies a partial update. Moving a record to a different day
// must fit that day's capacity; moving to a past day is allowed, since
// corrections of old records are an operator activity.
func (s *Service) Update(ctx context.Context, id string, fields storage.UpdateFields) (storage.Submission, error) {
	existing, err := s.store.GetByID(id)
	if err != nil {
		return storage.Submission{}, err
	}

	if _, err := s.backups.Create(); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("update").Inc()
		return storage.Submission{}, fmt.Errorf("backup before update: %w", err)
	}

	var updated storage.Submission
	err = s.locker.WithLock(ctx, func() error {
		if fields.BookingDate != nil && *fields.BookingDate != "" && *fields.BookingDate != existing.BookingDate {
			avail, availErr := s.admission.IsAvailable(*fields.BookingDate)
			if availErr != nil {
				return availErr
			}
			if !avail.Available {
				return fmt.Errorf("%w: %s", capacity.ErrCapacityExceeded, *fields.BookingDate)
			}
		}
		var upErr error
		updated, upErr = s.store.Update(id, fields)
		return upErr
	})
	if err != nil {
		if isAdmissionError(err) {
			s.reject("update", err)
		} else {
			metrics.OperationErrorsTotal.WithLabelValues("update").Inc()
		}
		return storage.Submission{}, err
	}

	metrics.BookingsUpdatedTotal.Inc()
	entry := audit.New(audit.ActionUpdate, id)
	entry.OldStatus = string(existing.Status)
	entry.NewStatus = string(updated.Status)
	s.auditor.Record(ctx, entry)

	return updated, nil
}

// Delete removes a record for good. The backup taken first is the only
// way back.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.store.GetByID(id)
	if err != nil {
		return err
	}

	if _, err := s.backups.Create(); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("backup before delete: %w", err)
	}

	err = s.locker.WithLock(ctx, func() error {
		return s.store.Delete(id)
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("delete").Inc()
		return err
	}

	metrics.BookingsDeletedTotal.Inc()
	entry := audit.New(audit.ActionDelete, id)
	entry.OldStatus = string(existing.Status)
	s.auditor.Record(ctx, entry)

	return nil
}

// RestoreBackup swaps the live workbook for the named backup, under the
// lock so no writer is mid-rewrite while the file changes out.
func (s *Service) RestoreBackup(ctx context.Context, name string) error {
	err := s.locker.WithLock(ctx, func() error {
		return s.backups.Restore(name)
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("restore").Inc()
		return err
	}

	entry := audit.New(audit.ActionRestore, "")
	entry.Detail = "restored from " + name
	s.auditor.Record(ctx, entry)
	return nil
}

// Export writes the matching records to a standalone workbook.
func (s *Service) Export(ctx context.Context, filter storage.ListFilter) (string, error) {
	path, err := s.store.ExportFiltered(filter)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("export").Inc()
		return "", err
	}

	entry := audit.New(audit.ActionExport, "")
	entry.Detail = "exported to " + path
	s.auditor.Record(ctx, entry)
	return path, nil
}

func (s *Service) Get(id string) (storage.Submission, error) {
	return s.store.GetByID(id)
}

func (s *Service) List(filter storage.ListFilter) ([]storage.Submission, error) {
	return s.store.List(filter)
}

func (s *Service) Search(query string) ([]storage.Submission, error) {
	return s.store.Search(query)
}

func (s *Service) Statistics() (storage.Stats, error) {
	return s.store.Statistics()
}

func (s *Service) reject(op string, err error) {
	metrics.BookingsRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
	s.logger.Info("booking rejected",
		zap.String("operation", op),
		zap.Error(err),
	)
}

func isAdmissionError(err error) bool {
	return errors.Is(err, capacity.ErrPastDate) || errors.Is(err, capacity.ErrCapacityExceeded)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, capacity.ErrPastDate):
		return "past_date"
	case errors.Is(err, capacity.ErrCapacityExceeded):
		return "capacity_full"
	default:
		return "other"
	}
}
