package health

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/backup"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

// Status grades the store's condition.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusError    Status = "error"
)

// rank orders statuses by severity for transition logging.
func rank(s Status) int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 3
	}
}

// Thresholds are the soft and hard limits on workbook growth. A single
// file holding everything only stays workable while it is small; these
// bounds give operators warning well before the format becomes the
// bottleneck.
type Thresholds struct {
	WarnFileSizeMB float64 `json:"warn_file_size_mb"`
	MaxFileSizeMB  float64 `json:"max_file_size_mb"`
	WarnRowCount   int     `json:"warn_row_count"`
	MaxRowCount    int     `json:"max_row_count"`
}

// FileInfo describes the live workbook.
type FileInfo struct {
	Exists bool    `json:"exists"`
	SizeMB float64 `json:"size_mb"`
	Rows   int     `json:"rows"`
}

// BackupInfo describes the backup directory.
type BackupInfo struct {
	Count   int       `json:"count"`
	Last    time.Time `json:"last,omitempty"`
	HasLast bool      `json:"has_last"`
}

// DiskInfo describes the volume the store lives on.
type DiskInfo struct {
	Path        string  `json:"path"`
	TotalGB     float64 `json:"total_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// Report is one health check's outcome.
type Report struct {
	Status     Status     `json:"status"`
	File       FileInfo   `json:"file"`
	Backups    BackupInfo `json:"backups"`
	Disk       *DiskInfo  `json:"disk,omitempty"`
	Thresholds Thresholds `json:"thresholds"`
	Warnings   []string   `json:"warnings,omitempty"`
	CheckedAt  time.Time  `json:"checked_at"`
}

// Stats is the store slice the monitor reads.
type Stats interface {
	Statistics() (storage.Stats, error)
}

// Backups is the backup manager slice the monitor reads.
type Backups interface {
	List() ([]backup.Info, error)
}

const backupStaleAfter = 24 * time.Hour

// Monitor grades the store against the thresholds. The latest report is
// cached so serving it stays cheap between checks.
type Monitor struct {
	storePath  string
	stats      Stats
	backups    Backups
	thresholds Thresholds
	logger     *zap.Logger
	timeNow    func() time.Time
	diskUsage  func(path string) (*disk.UsageStat, error)

	mu   sync.RWMutex
	last *Report
}

func NewMonitor(storePath string, stats Stats, backups Backups, thresholds Thresholds, logger *zap.Logger) *Monitor {
	return &Monitor{
		storePath:  storePath,
		stats:      stats,
		backups:    backups,
		thresholds: thresholds,
		logger:     logger,
		timeNow:    time.Now,
		diskUsage:  disk.Usage,
	}
}

// Check runs a full health pass and caches the report.
func (m *Monitor) Check() Report {
	r := Report{
		Thresholds: m.thresholds,
		CheckedAt:  m.timeNow(),
	}
	var hardBreach, errored bool

	info, err := os.Stat(m.storePath)
	switch {
	case os.IsNotExist(err):
		// Nothing created yet; that is a valid pre-first-use state.
	case err != nil:
		errored = true
		r.Warnings = append(r.Warnings, fmt.Sprintf("cannot stat store file: %v", err))
	default:
		r.File.Exists = true
		r.File.SizeMB = float64(info.Size()) / (1024 * 1024)

		stats, statErr := m.stats.Statistics()
		if statErr != nil {
			errored = true
			r.Warnings = append(r.Warnings, fmt.Sprintf("workbook unreadable: %v", statErr))
		} else {
			r.File.Rows = stats.Total
			hardBreach = m.checkGrowth(&r, info.Size(), stats.Total)
		}
	}

	m.checkBackups(&r)
	m.checkDisk(&r)

	switch {
	case errored:
		r.Status = StatusError
	case hardBreach || len(r.Warnings) > 2:
		r.Status = StatusCritical
	case len(r.Warnings) > 0:
		r.Status = StatusWarning
	default:
		r.Status = StatusHealthy
	}

	m.mu.Lock()
	snapshot := r
	m.last = &snapshot
	m.mu.Unlock()

	return r
}

// Last returns the most recent cached report without running a check.
func (m *Monitor) Last() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

func (m *Monitor) checkGrowth(r *Report, sizeBytes int64, rows int) (hardBreach bool) {
	t := m.thresholds
	size := humanize.Bytes(uint64(sizeBytes))

	switch {
	case r.File.SizeMB >= t.MaxFileSizeMB:
		hardBreach = true
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"workbook is %s, past the %.0f MB hard limit; archive old records now", size, t.MaxFileSizeMB))
	case r.File.SizeMB >= t.WarnFileSizeMB:
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"workbook is %s, past the %.0f MB soft limit", size, t.WarnFileSizeMB))
	}

	switch {
	case rows >= t.MaxRowCount:
		hardBreach = true
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"%d rows, past the %d row hard limit; archive old records now", rows, t.MaxRowCount))
	case rows >= t.WarnRowCount:
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"%d rows, past the %d row soft limit", rows, t.WarnRowCount))
	}
	return hardBreach
}

func (m *Monitor) checkBackups(r *Report) {
	backups, err := m.backups.List()
	if err != nil {
		r.Warnings = append(r.Warnings, fmt.Sprintf("cannot list backups: %v", err))
		return
	}

	r.Backups.Count = len(backups)
	if len(backups) == 0 {
		if r.File.Exists {
			r.Warnings = append(r.Warnings, "no backups exist")
		}
		return
	}

	r.Backups.Last = backups[0].Created
	r.Backups.HasLast = true
	if age := m.timeNow().Sub(backups[0].Created); age > backupStaleAfter {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"last backup is %s old", age.Round(time.Hour)))
	}
}

func (m *Monitor) checkDisk(r *Report) {
	usage, err := m.diskUsage(filepath.Dir(m.storePath))
	if err != nil {
		// Disk stats are best effort; the store checks above still stand.
		m.logger.Debug("disk usage unavailable", zap.Error(err))
		return
	}

	const gb = 1024 * 1024 * 1024
	r.Disk = &DiskInfo{
		Path:        usage.Path,
		TotalGB:     float64(usage.Total) / gb,
		FreeGB:      float64(usage.Free) / gb,
		UsedPercent: usage.UsedPercent,
	}
	if usage.UsedPercent >= 90 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"volume %.0f%% full, %s free", usage.UsedPercent, humanize.Bytes(usage.Free)))
	}
}
