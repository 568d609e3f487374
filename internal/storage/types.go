package storage

import "time"

// Status of a booking submission. New records start as pending; archived
// records are excluded from capacity counting and day-to-day listings.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusArchived:
		return true
	}
	return false
}

// Submission is one booking record, one row in the workbook.
type Submission struct {
	ID               string    `json:"id"`
	SubmissionDate   time.Time `json:"submission_date"`
	BookingDate      string    `json:"booking_date,omitempty"` // calendar day, "2006-01-02"
	Name             string    `json:"name"`
	UPINumber        string    `json:"upi_number,omitempty"`
	WhatsAppNumber   string    `json:"whatsapp_number,omitempty"`
	AyambilShalaName string    `json:"ayambil_shala_name,omitempty"`
	City             string    `json:"city,omitempty"`
	Status           Status    `json:"status"`
	IPAddress        string    `json:"ip_address,omitempty"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status Status
	City   string
}

// UpdateFields carries a partial update. Nil pointers leave the
// corresponding field untouched.
type UpdateFields struct {
	Name             *string
	UPINumber        *string
	WhatsAppNumber   *string
	AyambilShalaName *string
	City             *string
	BookingDate      *string
	Status           *Status
}

// Stats summarizes the live workbook.
type Stats struct {
	Total      int     `json:"total"`
	Today      int     `json:"today"`
	Pending    int     `json:"pending"`
	Reviewed   int     `json:"reviewed"`
	Archived   int     `json:"archived"`
	FileSizeMB float64 `json:"file_size_mb"`
}

// ArchiveResult reports what a compaction pass moved out of the live file.
type ArchiveResult struct {
	ArchivedCount int       `json:"archived_count"`
	ArchivePath   string    `json:"archive_path,omitempty"`
	CutoffDate    time.Time `json:"cutoff_date"`
}
