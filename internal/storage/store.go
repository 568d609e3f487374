package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/metrics"
)

// Store keeps every booking submission in a single workbook file. Each
// mutation reads the whole file, changes the rows in memory and writes
// the whole file back, so the file itself is the unit of consistency.
//
// The mutex serializes mutations within this process. Reads go straight
// to the file without taking it; a read that races a writer sees either
// the old workbook or the new one thanks to the atomic rename, never a
// torn file. Cross-process exclusion is the lock manager's job, layered
// on top by callers.
type Store struct {
	path      string
	exportDir string
	mu        sync.Mutex
	logger    *zap.Logger
	timeNow   func() time.Time
}

func NewStore(path, exportDir string, logger *zap.Logger) *Store {
	return &Store{
		path:      path,
		exportDir: exportDir,
		logger:    logger,
		timeNow:   time.Now,
	}
}

// Path returns the workbook location the store operates on.
func (s *Store) Path() string {
	return s.path
}

// Initialize creates an empty workbook when none exists. An existing
// file is left exactly as it is, so calling this on every startup is
// safe.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		if _, _, err := readWorkbook(s.path); err != nil {
			return fmt.Errorf("existing store unreadable: %w", err)
		}
		s.logger.Debug("store already initialized", zap.String("path", s.path))
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: stat %s: %v", ErrStoreIO, s.path, err)
	}

	if err := s.save(nil); err != nil {
		return err
	}
	s.logger.Info("created new store", zap.String("path", s.path))
	return nil
}

// Add stores a new submission. The ID and submission timestamp are
// assigned here; an empty status defaults to pending.
func (s *Store) Add(sub Submission) (Submission, error) {
	if sub.Status == "" {
		sub.Status = StatusPending
	}
	if !sub.Status.Valid() {
		return Submission{}, fmt.Errorf("%w: %q", ErrInvalidStatus, sub.Status)
	}
	if sub.BookingDate != "" {
		if _, err := time.Parse(DayFormat, sub.BookingDate); err != nil {
			return Submission{}, fmt.Errorf("%w: %q", ErrInvalidDate, sub.BookingDate)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return Submission{}, err
	}

	sub.ID = s.newID()
	sub.SubmissionDate = s.timeNow()
	subs = append(subs, sub)

	if err := s.save(subs); err != nil {
		return Submission{}, err
	}

	s.logger.Info("submission stored",
		zap.String("id", sub.ID),
		zap.String("booking_date", sub.BookingDate),
	)
	return sub, nil
}

// List returns submissions matching the filter, newest first.
func (s *Store) List(filter ListFilter) ([]Submission, error) {
	subs, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]Submission, 0, len(subs))
	for _, sub := range subs {
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		if filter.City != "" && !strings.EqualFold(sub.City, filter.City) {
			continue
		}
		out = append(out, sub)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmissionDate.After(out[j].SubmissionDate)
	})
	return out, nil
}

// GetByID returns the submission carrying id, or ErrNotFound.
func (s *Store) GetByID(id string) (Submission, error) {
	subs, err := s.load()
	if err != nil {
		return Submission{}, err
	}
	for _, sub := range subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Update applies the non-nil fields to the record carrying id and
// returns the updated record.
func (s *Store) Update(id string, fields UpdateFields) (Submission, error) {
	if fields.Status != nil && !fields.Status.Valid() {
		return Submission{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *fields.Status)
	}
	if fields.BookingDate != nil && *fields.BookingDate != "" {
		if _, err := time.Parse(DayFormat, *fields.BookingDate); err != nil {
			return Submission{}, fmt.Errorf("%w: %q", ErrInvalidDate, *fields.BookingDate)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return Submission{}, err
	}

	for i := range subs {
		if subs[i].ID != id {
			continue
		}
		applyFields(&subs[i], fields)
		if err := s.save(subs); err != nil {
			return Submission{}, err
		}
		s.logger.Info("submission updated", zap.String("id", id))
		return subs[i], nil
	}
	return Submission{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes the record carrying id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return err
	}

	for i := range subs {
		if subs[i].ID != id {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if err := s.save(subs); err != nil {
			return err
		}
		s.logger.Info("submission deleted", zap.String("id", id))
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Search matches query case-insensitively against names, cities and
// shala names, and as a plain substring against IDs, UPI and WhatsApp
// numbers. Results keep file order. An empty query matches everything.
func (s *Store) Search(query string) ([]Submission, error) {
	subs, err := s.load()
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return subs, nil
	}
	lowered := strings.ToLower(query)

	out := make([]Submission, 0)
	for _, sub := range subs {
		switch {
		case strings.Contains(strings.ToLower(sub.Name), lowered),
			strings.Contains(strings.ToLower(sub.City), lowered),
			strings.Contains(strings.ToLower(sub.AyambilShalaName), lowered),
			strings.Contains(sub.ID, query),
			strings.Contains(sub.UPINumber, query),
			strings.Contains(sub.WhatsAppNumber, query):
			out = append(out, sub)
		}
	}
	return out, nil
}

// Statistics summarizes the live workbook without modifying it.
func (s *Store) Statistics() (Stats, error) {
	subs, err := s.load()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(subs)}
	today := s.timeNow().UTC().Format(DayFormat)
	for _, sub := range subs {
		if sub.SubmissionDate.UTC().Format(DayFormat) == today {
			stats.Today++
		}
		switch sub.Status {
		case StatusPending:
			stats.Pending++
		case StatusReviewed:
			stats.Reviewed++
		case StatusArchived:
			stats.Archived++
		}
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.FileSizeMB = float64(info.Size()) / (1024 * 1024)
	}
	return stats, nil
}

// ExportFiltered writes the submissions matching filter into a fresh
// workbook under the export directory and returns its path. The live
// file is not touched.
func (s *Store) ExportFiltered(filter ListFilter) (string, error) {
	subs, err := s.List(filter)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("bookings_export_%s_%s.xlsx",
		s.timeNow().UTC().Format(DayFormat), xid.New().String())
	path := filepath.Join(s.exportDir, name)

	if err := writeWorkbook(path, subs, s.timeNow()); err != nil {
		return "", err
	}
	s.logger.Info("export written",
		zap.String("path", path),
		zap.Int("rows", len(subs)),
	)
	return path, nil
}

// ArchiveOlderThan moves every record dated strictly before cutoff into
// a new workbook under archiveDir and drops it from the live file. The
// archive file is written before the live file shrinks, so a crash in
// between leaves duplicates rather than losing rows. When nothing
// qualifies, no archive file is created.
func (s *Store) ArchiveOlderThan(cutoff time.Time, archiveDir string) (ArchiveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, err := s.load()
	if err != nil {
		return ArchiveResult{}, err
	}

	keep := make([]Submission, 0, len(subs))
	old := make([]Submission, 0)
	for _, sub := range subs {
		if s.effectiveDate(sub).Before(cutoff) {
			old = append(old, sub)
		} else {
			keep = append(keep, sub)
		}
	}

	res := ArchiveResult{CutoffDate: cutoff}
	if len(old) == 0 {
		s.logger.Info("nothing to archive", zap.Time("cutoff", cutoff))
		return res, nil
	}

	for i := range old {
		old[i].Status = StatusArchived
	}

	name := fmt.Sprintf("bookings_archive_%s_%drecords.xlsx",
		cutoff.Format(DayFormat), len(old))
	archivePath := filepath.Join(archiveDir, name)

	if err := writeWorkbook(archivePath, old, s.timeNow()); err != nil {
		return res, err
	}
	if err := s.save(keep); err != nil {
		return res, err
	}

	res.ArchivedCount = len(old)
	res.ArchivePath = archivePath
	s.logger.Info("records archived",
		zap.Int("count", len(old)),
		zap.String("archive", archivePath),
	)
	return res, nil
}

// ReadFile loads every decodable submission from an arbitrary workbook.
// Useful for inspecting exports, archives and backups.
func ReadFile(path string) ([]Submission, error) {
	subs, _, err := readWorkbook(path)
	return subs, err
}

func (s *Store) load() ([]Submission, error) {
	subs, meta, err := readWorkbook(s.path)
	if err != nil {
		return nil, err
	}
	if meta.Skipped > 0 {
		s.logger.Warn("skipped undecodable rows",
			zap.Int("count", meta.Skipped),
			zap.String("path", s.path),
		)
	}
	if meta.HasSummary && meta.SummaryTotal != len(subs)+meta.Skipped {
		s.logger.Warn("summary count differs from sheet",
			zap.Int("summary", meta.SummaryTotal),
			zap.Int("rows", len(subs)+meta.Skipped),
		)
	}
	metrics.StoreRows.Set(float64(len(subs)))
	return subs, nil
}

func (s *Store) save(subs []Submission) error {
	if err := writeWorkbook(s.path, subs, s.timeNow()); err != nil {
		return err
	}
	metrics.StoreRows.Set(float64(len(subs)))
	return nil
}

// effectiveDate is the date archival reasons about: the booked day when
// one is set, otherwise the submission time.
func (s *Store) effectiveDate(sub Submission) time.Time {
	if sub.BookingDate != "" {
		if d, err := time.Parse(DayFormat, sub.BookingDate); err == nil {
			return d
		}
	}
	return sub.SubmissionDate
}

func (s *Store) newID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("VRT-%d-%08x", s.timeNow().UnixMilli(),
			uint32(s.timeNow().UnixNano()))
	}
	return fmt.Sprintf("VRT-%d-%s", s.timeNow().UnixMilli(), hex.EncodeToString(buf))
}

func applyFields(sub *Submission, fields UpdateFields) {
	if fields.Name != nil {
		sub.Name = *fields.Name
	}
	if fields.UPINumber != nil {
		sub.UPINumber = *fields.UPINumber
	}
	if fields.WhatsAppNumber != nil {
		sub.WhatsAppNumber = *fields.WhatsAppNumber
	}
	if fields.AyambilShalaName != nil {
		sub.AyambilShalaName = *fields.AyambilShalaName
	}
	if fields.City != nil {
		sub.City = *fields.City
	}
	if fields.BookingDate != nil {
		sub.BookingDate = *fields.BookingDate
	}
	if fields.Status != nil {
		sub.Status = *fields.Status
	}
}
