package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayambilseva/varshitap-booking/internal/archive"
	"github.com/ayambilseva/varshitap-booking/internal/audit"
	"github.com/ayambilseva/varshitap-booking/internal/backup"
	"github.com/ayambilseva/varshitap-booking/internal/booking"
	"github.com/ayambilseva/varshitap-booking/internal/capacity"
	"github.com/ayambilseva/varshitap-booking/internal/config"
	"github.com/ayambilseva/varshitap-booking/internal/filelock"
	"github.com/ayambilseva/varshitap-booking/internal/health"
	"github.com/ayambilseva/varshitap-booking/internal/logger"
	"github.com/ayambilseva/varshitap-booking/internal/storage"
)

// app holds the wired components. Wiring happens once per invocation,
// in the root command's PersistentPreRunE, so every subcommand sees the
// same instances.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *storage.Store
	locker    *filelock.Manager
	backups   *backup.Manager
	archiver  *archive.Archiver
	admission *capacity.Scheduler
	monitor   *health.Monitor
	auditor   *audit.Manager
	service   *booking.Service
}

func (a *app) wire(ctx context.Context, verbose bool) error {
	a.logger = logger.New(verbose)
	a.cfg = config.Load(a.logger)

	a.store = storage.NewStore(a.cfg.StorePath, a.cfg.ExportDir, a.logger)
	a.locker = filelock.New(a.cfg.StorePath, a.logger)
	a.backups = backup.NewManager(a.cfg.StorePath, a.cfg.BackupDir, a.cfg.BackupRetention, a.logger)

	a.auditor = audit.NewManager(a.cfg.AuditLogPath, a.cfg.AuditWorkers, a.cfg.AuditBatchSize, a.cfg.AuditFlushWait, a.logger)
	a.auditor.Start(ctx)

	a.admission = capacity.NewScheduler(a.store, a.cfg.MaxBookingsPerDay, a.cfg.HorizonDays, a.logger)
	a.archiver = archive.New(a.store, a.backups, a.locker, a.auditor, a.cfg.ArchiveDir, a.logger)
	a.monitor = health.NewMonitor(a.cfg.StorePath, a.store, a.backups, health.Thresholds{
		WarnFileSizeMB: a.cfg.WarnFileSizeMB,
		MaxFileSizeMB:  a.cfg.MaxFileSizeMB,
		WarnRowCount:   a.cfg.WarnRowCount,
		MaxRowCount:    a.cfg.MaxRowCount,
	}, a.logger)
	a.service = booking.NewService(a.store, a.backups, a.locker, a.admission, a.auditor, a.logger)
	return nil
}

// close drains the audit pipeline and flushes the logger. Safe to call
// even when wiring never ran.
func (a *app) close() {
	if a.auditor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.auditor.Shutdown(ctx)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCommand(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "vrtstore",
		Short: "Manage the Varshitap booking workbook",
		Long: `vrtstore is the back-office tool for the Varshitap booking store.

The store is a single xlsx workbook; every mutation takes a backup
first, runs under an advisory file lock, and lands in the audit trail.
Configuration comes from VRT_* environment variables or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.wire(cmd.Context(), verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newInitCommand(a),
		newAddCommand(a),
		newGetCommand(a),
		newListCommand(a),
		newSearchCommand(a),
		newUpdateCommand(a),
		newDeleteCommand(a),
		newStatsCommand(a),
		newExportCommand(a),
		newBackupCommand(a),
		newArchiveCommand(a),
		newHealthCommand(a),
		newNextDateCommand(a),
		newValidateDateCommand(a),
		newServeCommand(a),
	)
	return cmd
}
