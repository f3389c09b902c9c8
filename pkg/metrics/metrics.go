package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Storage metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_cache_hits_total",
			Help: "Total number of remote index cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_cache_misses_total",
			Help: "Total number of remote index cache misses",
		},
	)

	StorageLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hutch_storage_load_duration_seconds",
			Help:    "Time taken to load the store/index/pool files",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageFlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hutch_storage_flush_duration_seconds",
			Help:    "Time taken to flush the store/index/pool files",
			Buckets: prometheus.DefBuckets,
		},
	)

	StorageCorruptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_storage_corruptions_total",
			Help: "Total number of storage files quarantined after a parse failure",
		},
		[]string{"file"},
	)

	// Driver metrics
	DriverFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hutch_driver_fetch_duration_seconds",
			Help:    "Time taken by a driver to fetch a repository index",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	DriverFileFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hutch_driver_file_fetch_duration_seconds",
			Help:    "Time taken by a driver to fetch a single package file",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)

	// Transaction metrics
	TransactionsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_transactions_applied_total",
			Help: "Total number of transactions applied, by outcome",
		},
		[]string{"outcome"}, // "ok" or "rolled_back"
	)

	TransactionApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hutch_transaction_apply_duration_seconds",
			Help:    "Time taken for a transaction's apply pass (including any rollback pass)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Package file metrics
	FilesDownloadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_files_downloaded_total",
			Help: "Total number of package files downloaded and written to disk",
		},
	)

	FilesDigestMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_files_digest_mismatch_total",
			Help: "Total number of downloaded files rejected for a digest mismatch",
		},
	)

	// Index metrics
	RepositoriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_repositories_total",
			Help: "Total number of repositories currently in the store",
		},
	)

	PackagesInstalledTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_packages_installed_total",
			Help: "Total number of packages currently in the pool",
		},
	)
)

func init() {
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(StorageLoadDuration)
	prometheus.MustRegister(StorageFlushDuration)
	prometheus.MustRegister(StorageCorruptionsTotal)
	prometheus.MustRegister(DriverFetchDuration)
	prometheus.MustRegister(DriverFileFetchDuration)
	prometheus.MustRegister(TransactionsAppliedTotal)
	prometheus.MustRegister(TransactionApplyDuration)
	prometheus.MustRegister(FilesDownloadedTotal)
	prometheus.MustRegister(FilesDigestMismatchTotal)
	prometheus.MustRegister(RepositoriesTotal)
	prometheus.MustRegister(PackagesInstalledTotal)
}

// Handler returns the Prometheus HTTP handler, used by `hutch index
// build --metrics-addr` to expose a scrape endpoint for the duration
// of a single run.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
