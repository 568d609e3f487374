package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// SheetSubmissions holds one row per booking record.
	SheetSubmissions = "Submissions"
	// SheetSummary holds the record count and last-updated timestamp.
	SheetSummary = "Summary"

	// DayFormat is the calendar-day layout used for booking dates.
	DayFormat = "2006-01-02"
)

var headerRow = []interface{}{
	"ID", "Submission Date", "Booking Date", "Name", "UPI Number",
	"WhatsApp Number", "Ayambil Shala", "City", "Status", "IP Address",
}

// readMeta carries what the reader learned beyond the rows themselves.
type readMeta struct {
	SummaryTotal int
	HasSummary   bool
	Skipped      int
}

// readWorkbook loads every decodable submission row from the file.
// Rows that fail to decode are counted in meta.Skipped rather than
// failing the whole load; the workbook is user-visible and a single
// hand-mangled row must not take the store down.
func readWorkbook(path string) ([]Submission, readMeta, error) {
	var meta readMeta

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: open %s: %v", ErrStoreIO, path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetSubmissions)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: read sheet %s: %v", ErrStoreIO, SheetSubmissions, err)
	}

	subs := make([]Submission, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		sub, err := decodeRow(row)
		if err != nil {
			meta.Skipped++
			continue
		}
		subs = append(subs, sub)
	}

	if cell, err := f.GetCellValue(SheetSummary, "B1"); err == nil && cell != "" {
		if total, err := strconv.Atoi(cell); err == nil {
			meta.SummaryTotal = total
			meta.HasSummary = true
		}
	}

	return subs, meta, nil
}

// writeWorkbook rebuilds the whole workbook from rows and atomically
// replaces the file at path. The unit of consistency is the entire file,
// so readers either see the old workbook or the new one, never a partial
// write.
func writeWorkbook(path string, subs []Submission, updatedAt time.Time) error {
	f, err := newWorkbook(subs, updatedAt)
	if err != nil {
		return err
	}
	defer f.Close()
	return saveAtomic(f, path)
}

// newWorkbook builds an in-memory workbook with the styled submissions
// sheet and the summary sheet. Callers own closing the returned file.
func newWorkbook(subs []Submission, updatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSubmissions); err != nil {
		return nil, fmt.Errorf("%w: name sheet: %v", ErrStoreIO, err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, fmt.Errorf("%w: create summary sheet: %v", ErrStoreIO, err)
	}

	if err := f.SetSheetRow(SheetSubmissions, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("%w: write header: %v", ErrStoreIO, err)
	}
	for i, sub := range subs {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(SheetSubmissions, cell, encodeRow(sub)); err != nil {
			return nil, fmt.Errorf("%w: write row %d: %v", ErrStoreIO, i+2, err)
		}
	}

	if err := styleSheet(f, len(subs)); err != nil {
		return nil, err
	}

	summary := [][]interface{}{
		{"Total Submissions", len(subs)},
		{"Last Updated", updatedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range summary {
		cell := fmt.Sprintf("A%d", i+1)
		r := row
		if err := f.SetSheetRow(SheetSummary, cell, &r); err != nil {
			return nil, fmt.Errorf("%w: write summary: %v", ErrStoreIO, err)
		}
	}

	return f, nil
}

func styleSheet(f *excelize.File, rowCount int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("%w: header style: %v", ErrStoreIO, err)
	}
	if err := f.SetCellStyle(SheetSubmissions, "A1", "J1", style); err != nil {
		return fmt.Errorf("%w: apply header style: %v", ErrStoreIO, err)
	}

	widths := map[string]float64{
		"A": 26, "B": 24, "C": 14, "D": 24, "E": 18,
		"F": 18, "G": 24, "H": 16, "I": 12, "J": 16,
	}
	for col, w := range widths {
		if err := f.SetColWidth(SheetSubmissions, col, col, w); err != nil {
			return fmt.Errorf("%w: column width: %v", ErrStoreIO, err)
		}
	}

	filterRange := fmt.Sprintf("A1:J%d", rowCount+1)
	if err := f.AutoFilter(SheetSubmissions, filterRange, nil); err != nil {
		return fmt.Errorf("%w: autofilter: %v", ErrStoreIO, err)
	}
	return nil
}

// saveAtomic writes the workbook to a temp file in the target directory
// and renames it into place.
func saveAtomic(f *excelize.File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir %s: %v", ErrStoreIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*-"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStoreIO, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrStoreIO, err)
	}

	if err := f.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: save %s: %v", ErrStoreIO, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename into place: %v", ErrStoreIO, err)
	}
	return nil
}

func encodeRow(s Submission) *[]interface{} {
	return &[]interface{}{
		s.ID,
		s.SubmissionDate.UTC().Format(time.RFC3339),
		s.BookingDate,
		s.Name,
		s.UPINumber,
		s.WhatsAppNumber,
		s.AyambilShalaName,
		s.City,
		string(s.Status),
		s.IPAddress,
	}
}

func decodeRow(row []string) (Submission, error) {
	id := cellAt(row, 0)
	if id == "" {
		return Submission{}, fmt.Errorf("row has no id")
	}

	submitted, err := time.Parse(time.RFC3339, cellAt(row, 1))
	if err != nil {
		return Submission{}, fmt.Errorf("bad submission date for %s: %w", id, err)
	}

	status := Status(cellAt(row, 8))
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return Submission{}, fmt.Errorf("%w: %q on %s", ErrInvalidStatus, status, id)
	}

	return Submission{
		ID:               id,
		SubmissionDate:   submitted,
		BookingDate:      cellAt(row, 2),
		Name:             cellAt(row, 3),
		UPINumber:        cellAt(row, 4),
		WhatsAppNumber:   cellAt(row, 5),
		AyambilShalaName: cellAt(row, 6),
		City:             cellAt(row, 7),
		Status:           status,
		IPAddress:        cellAt(row, 9),
	}, nil
}

// cellAt reads a cell by index. GetRows trims trailing empty cells, so
// short rows are expected and read as empty strings.
func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}
