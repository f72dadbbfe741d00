// Package metrics holds the Prometheus collectors of the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ImportRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_import_rows_total",
		Help: "Rows accepted by bulk imports",
	})

	ImportBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_import_batches_total",
		Help: "Import batch commits by outcome",
	}, []string{"result"})

	BatchCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_batch_commit_duration_seconds",
		Help:    "Time taken to commit one import batch",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
	})

	SnapshotsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_snapshots_total",
		Help: "Partition snapshots applied to row caches",
	})

	SubscriptionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_subscription_errors_total",
		Help: "Row cache subscriptions terminated by an error",
	})

	OpenBooks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_open_books",
		Help: "Partitions currently mirrored in memory",
	})

	CounterPersistFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_counter_persist_failures_total",
		Help: "Sequence counter writes that failed",
	})

	AuditWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_audit_writes_total",
		Help: "Audit entries written by outcome",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		ImportRowsTotal,
		ImportBatchesTotal,
		BatchCommitDuration,
		SnapshotsTotal,
		SubscriptionErrorsTotal,
		OpenBooks,
		CounterPersistFailuresTotal,
		AuditWritesTotal,
	)
}
