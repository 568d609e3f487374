package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config carries every tunable the booking store reads from the
// environment. Values not present in the environment fall back to the
// defaults below, which match a single-instance deployment keeping its
// data under ./data.
type Config struct {
	StorePath    string
	BackupDir    string
	ExportDir    string
	ArchiveDir   string
	AuditLogPath string

	MaxBookingsPerDay int
	HorizonDays       int

	BackupRetention   int
	AutoBackupEnabled bool
	BackupSchedule    string
	BackupInterval    time.Duration

	ArchiveSweepEnabled  bool
	ArchiveAfterMonths   int
	ArchiveSweepInterval time.Duration

	WarnFileSizeMB float64
	MaxFileSizeMB  float64
	WarnRowCount   int
	MaxRowCount    int

	DiagAddr string

	AuditWorkers   int
	AuditBatchSize int
	AuditFlushWait time.Duration
}

func Load(logger *zap.Logger) *Config {
	loadEnv(logger)

	return &Config{
		StorePath:    getEnv("VRT_STORE_PATH", filepath.Join("data", "bookings.xlsx")),
		BackupDir:    getEnv("VRT_BACKUP_DIR", filepath.Join("data", "backups")),
		ExportDir:    getEnv("VRT_EXPORT_DIR", filepath.Join("data", "exports")),
		ArchiveDir:   getEnv("VRT_ARCHIVE_DIR", filepath.Join("data", "archives")),
		AuditLogPath: getEnv("VRT_AUDIT_LOG", filepath.Join("data", "audit.log")),

		MaxBookingsPerDay: getEnvInt("VRT_MAX_BOOKINGS_PER_DAY", 3),
		HorizonDays:       getEnvInt("VRT_HORIZON_DAYS", 90),

		BackupRetention:   getEnvInt("VRT_BACKUP_RETENTION", 30),
		AutoBackupEnabled: getEnvBool("VRT_AUTO_BACKUP", false),
		BackupSchedule:    getEnv("VRT_BACKUP_SCHEDULE", "daily"),
		BackupInterval:    getEnvDuration("VRT_BACKUP_INTERVAL", time.Hour),

		ArchiveSweepEnabled:  getEnvBool("VRT_ARCHIVE_SWEEP", false),
		ArchiveAfterMonths:   getEnvInt("VRT_ARCHIVE_MONTHS", 12),
		ArchiveSweepInterval: getEnvDuration("VRT_ARCHIVE_SWEEP_INTERVAL", 24*time.Hour),

		WarnFileSizeMB: getEnvFloat("VRT_WARN_FILE_SIZE_MB", 5),
		MaxFileSizeMB:  getEnvFloat("VRT_MAX_FILE_SIZE_MB", 10),
		WarnRowCount:   getEnvInt("VRT_WARN_ROW_COUNT", 10000),
		MaxRowCount:    getEnvInt("VRT_MAX_ROW_COUNT", 50000),

		DiagAddr: getEnv("VRT_DIAG_ADDR", ":9090"),

		AuditWorkers:   getEnvInt("VRT_AUDIT_WORKERS", 2),
		AuditBatchSize: getEnvInt("VRT_AUDIT_BATCH_SIZE", 5),
		AuditFlushWait: getEnvDuration("VRT_AUDIT_FLUSH_WAIT", 500*time.Millisecond),
	}
}

// loadEnv mirrors the usual developer setup: a .env next to the binary, or
// one or two directories up when running from cmd/. Missing files are fine,
// the environment then stands on its own.
func loadEnv(logger *zap.Logger) {
	wd, err := os.Getwd()
	if err != nil {
		logger.Warn("could not determine working directory", zap.Error(err))
		return
	}

	candidates := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range candidates {
		if err := godotenv.Load(envPath); err == nil {
			logger.Info("loaded environment file", zap.String("path", envPath))
			return
		}
	}

	for _, envPath := range candidates {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			logger.Info("loaded environment file", zap.String("path", examplePath))
			return
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
