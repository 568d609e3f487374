package capacity

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

var (
	// ErrPastDate rejects booking dates before today.
	ErrPastDate = errors.New("booking date has already passed")

	// ErrCapacityExceeded rejects dates whose slots are all taken.
	ErrCapacityExceeded = errors.New("date is fully booked")
)

// Store is the read slice of the record store capacity counting needs.
type Store interface {
	List(filter storage.ListFilter) ([]storage.Submission, error)
}

// Scheduler answers how full each calendar day is and which day can
// take the next booking. Archived records do not occupy slots.
type Scheduler struct {
	store       Store
	maxPerDay   int
	horizonDays int
	logger      *zap.Logger
	timeNow     func() time.Time
}

// Availability reports how booked a single day is.
type Availability struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Count     int    `json:"count"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
}

// DaySlot is a day found by the forward scan.
type DaySlot struct {
	Date      string `json:"date"`
	Count     int    `json:"count"`
	Remaining int    `json:"remaining"`
}

// Validation is the full admission answer for a requested date.
type Validation struct {
	Valid         bool         `json:"valid"`
	PastDate      bool         `json:"past_date,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Availability  Availability `json:"availability"`
	NextAvailable string       `json:"next_available,omitempty"`
}

func NewScheduler(store Store, maxPerDay, horizonDays int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		maxPerDay:   maxPerDay,
		horizonDays: horizonDays,
		logger:      logger,
		timeNow:     time.Now,
	}
}

// CountForDate counts the active bookings on a calendar day.
func (s *Scheduler) CountForDate(date string) (int, error) {
	if _, err := time.Parse(storage.DayFormat, date); err != nil {
		return 0, fmt.Errorf("%w: %q", storage.ErrInvalidDate, date)
	}
	counts, err := s.countsByDay()
	if err != nil {
		return 0, err
	}
	return counts[date], nil
}

// IsAvailable reports whether date can take another booking. This is a
// pure capacity check; past dates are Validate's concern.
func (s *Scheduler) IsAvailable(date string) (Availability, error) {
	count, err := s.CountForDate(date)
	if err != nil {
		return Availability{}, err
	}

	remaining := s.maxPerDay - count
	if remaining < 0 {
		remaining = 0
	}
	return Availability{
		Date:      date,
		Available: count < s.maxPerDay,
		Count:     count,
		Max:       s.maxPerDay,
		Remaining: remaining,
	}, nil
}

// NextAvailableFrom scans forward day by day from the given day
// (inclusive) and returns the first one with a free slot. The second
// return is false when every day in the horizon is full.
func (s *Scheduler) NextAvailableFrom(from string) (DaySlot, bool, error) {
	day, err := time.Parse(storage.DayFormat, from)
	if err != nil {
		return DaySlot{}, false, fmt.Errorf("%w: %q", storage.ErrInvalidDate, from)
	}

	counts, err := s.countsByDay()
	if err != nil {
		return DaySlot{}, false, err
	}

	for i := 0; i < s.horizonDays; i++ {
		key := day.Format(storage.DayFormat)
		if counts[key] < s.maxPerDay {
			return DaySlot{
				Date:      key,
				Count:     counts[key],
				Remaining: s.maxPerDay - counts[key],
			}, true, nil
		}
		day = day.AddDate(0, 0, 1)
	}

	s.logger.Warn("no free day within the horizon",
		zap.String("from", from),
		zap.Int("horizon_days", s.horizonDays))
	return DaySlot{}, false, nil
}

// NextAvailableDate scans from tomorrow. Today is still bookable
// directly, but a same-day suggestion is rarely actionable.
func (s *Scheduler) NextAvailableDate() (DaySlot, bool, error) {
	tomorrow := s.timeNow().AddDate(0, 0, 1).Format(storage.DayFormat)
	return s.NextAvailableFrom(tomorrow)
}

// Validate answers whether date can be booked, and when it cannot,
// why and which day to suggest instead.
func (s *Scheduler) Validate(date string) (Validation, error) {
	if _, err := time.Parse(storage.DayFormat, date); err != nil {
		return Validation{}, fmt.Errorf("%w: %q", storage.ErrInvalidDate, date)
	}

	// ISO day strings compare correctly as plain strings.
	today := s.timeNow().Format(storage.DayFormat)
	if date < today {
		v := Validation{
			PastDate: true,
			Reason:   fmt.Sprintf("%s has already passed", date),
		}
		if slot, ok, err := s.NextAvailableDate(); err != nil {
			return Validation{}, err
		} else if ok {
			v.NextAvailable = slot.Date
		}
		return v, nil
	}

	avail, err := s.IsAvailable(date)
	if err != nil {
		return Validation{}, err
	}
	if !avail.Available {
		v := Validation{
			Reason:       fmt.Sprintf("all %d slots on %s are taken", s.maxPerDay, date),
			Availability: avail,
		}
		// The requested day is full, so scanning from it lands on the
		// first open day after it.
		if slot, ok, err := s.NextAvailableFrom(date); err != nil {
			return Validation{}, err
		} else if ok {
			v.NextAvailable = slot.Date
		}
		return v, nil
	}

	return Validation{Valid: true, Availability: avail}, nil
}

// Check is Validate collapsed into an error for enforcement paths.
func (s *Scheduler) Check(date string) error {
	v, err := s.Validate(date)
	if err != nil {
		return err
	}
	if v.Valid {
		return nil
	}
	if v.PastDate {
		return fmt.Errorf("%w: %s", ErrPastDate, date)
	}
	if v.NextAvailable != "" {
		return fmt.Errorf("%w: %s, next open day is %s", ErrCapacityExceeded, date, v.NextAvailable)
	}
	return fmt.Errorf("%w: %s", ErrCapacityExceeded, date)
}

func (s *Scheduler) countsByDay() (map[string]int, error) {
	subs, err := s.store.List(storage.ListFilter{})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, sub := range subs {
		if sub.Status == storage.StatusArchived || sub.BookingDate == "" {
			continue
		}
		counts[sub.BookingDate]++
	}
	return counts, nil
}
