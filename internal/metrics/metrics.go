package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "credwatch"
)

var (
	runDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600}

	// Run Metrics
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Time taken for a full collection, export and notification run.",
		Buckets:   runDurationBuckets,
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Count of monitor runs.",
	}, []string{"status"})

	RunLastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last completed run.",
	})

	// Inventory Metrics
	CredentialsCollectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credentials_collected_total",
		Help:      "Number of application credentials collected from the directory.",
	}, []string{"type"})

	CollectionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collection_failures_total",
		Help:      "Per-application directory lookups that failed and were skipped.",
	}, []string{"stage"})

	// Report Metrics
	SnapshotsPrunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_pruned_total",
		Help:      "Expired snapshot deletions by location and outcome.",
	}, []string{"location", "status"})

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Expiry notifications by outcome (sent, skipped, failed).",
	}, []string{"status"})
)
