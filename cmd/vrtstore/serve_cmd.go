package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayambilseva/varshitap-booking/internal/backup"
	"github.com/ayambilseva/varshitap-booking/internal/diagserver"
	"github.com/ayambilseva/varshitap-booking/internal/health"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr         string
		autoBackup   bool
		archiveSweep bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diagnostics listener and background schedulers",
		Long: `Run until interrupted: an HTTP listener serving health, stats and
Prometheus metrics, a watcher that re-checks health whenever the store
changes on disk, and optionally the backup scheduler and the periodic
archival sweep.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.DiagAddr = addr
			}
			if cmd.Flags().Changed("auto-backup") {
				a.cfg.AutoBackupEnabled = autoBackup
			}
			if cmd.Flags().Changed("archive-sweep") {
				a.cfg.ArchiveSweepEnabled = archiveSweep
			}

			var schedule backup.Schedule
			if a.cfg.AutoBackupEnabled {
				parsed, err := backup.ParseSchedule(a.cfg.BackupSchedule)
				if err != nil {
					return err
				}
				schedule = parsed
			}

			if err := a.store.Initialize(); err != nil {
				return err
			}

			diag := diagserver.New(a.cfg.DiagAddr, a.monitor, a.store, a.logger)
			watcher := health.NewWatcher(a.monitor, a.cfg.StorePath, a.logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return watcher.Run(ctx) })
			g.Go(func() error {
				if err := diag.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return diag.Shutdown(shutdownCtx)
			})
			if a.cfg.AutoBackupEnabled {
				scheduler := backup.NewScheduler(a.backups, schedule, a.cfg.BackupInterval, a.logger)
				g.Go(func() error { return scheduler.Run(ctx) })
			}
			if a.cfg.ArchiveSweepEnabled {
				g.Go(func() error {
					return a.archiver.Sweep(ctx, a.cfg.ArchiveAfterMonths, a.cfg.ArchiveSweepInterval)
				})
			}

			a.logger.Info("vrtstore serving",
				zap.String("addr", a.cfg.DiagAddr),
				zap.Bool("auto_backup", a.cfg.AutoBackupEnabled),
				zap.Bool("archive_sweep", a.cfg.ArchiveSweepEnabled),
			)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "diagnostics listen address (overrides configuration)")
	cmd.Flags().BoolVar(&autoBackup, "auto-backup", false, "run the backup scheduler")
	cmd.Flags().BoolVar(&archiveSweep, "archive-sweep", false, "run the periodic archival sweep")
	return cmd
}
