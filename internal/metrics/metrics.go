package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_bookings_created_total",
		Help: "Total number of booking submissions successfully stored.",
	})

	BookingsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrtstore_bookings_rejected_total",
		Help: "Total number of booking submissions rejected, by reason.",
	},
		[]string{"reason"},
	)

	BookingsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_bookings_updated_total",
		Help: "Total number of booking records successfully updated.",
	})

	BookingsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_bookings_deleted_total",
		Help: "Total number of booking records successfully deleted.",
	})

	BackupsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_backups_created_total",
		Help: "Total number of workbook backups successfully written.",
	})

	BackupsPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_backups_pruned_total",
		Help: "Total number of old backup files removed by retention.",
	})

	ArchivedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_archived_records_total",
		Help: "Total number of records moved into archive workbooks.",
	})

	LockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vrtstore_lock_timeouts_total",
		Help: "Total number of lock acquisitions that gave up after retrying.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vrtstore_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	StoreRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vrtstore_store_rows",
		Help: "Current number of booking rows in the workbook.",
	})
)
