// Package metrics provides Prometheus metrics for the directory model.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgview_cache_lookups_total",
			Help: "Image cache lookups by result",
		},
		[]string{"result"},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgview_cache_entries",
			Help: "Number of decoded images held in the cache",
		},
	)

	// Loader metrics
	decodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgview_decodes_total",
			Help: "Image decodes by mode and status",
		},
		[]string{"mode", "status"},
	)

	decodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgview_decode_duration_seconds",
			Help:    "Time spent decoding one image",
			Buckets: prometheus.DefBuckets,
		},
	)

	loaderQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgview_loader_queued",
			Help: "Decode requests waiting for a worker",
		},
	)

	// Watcher metrics
	watcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgview_watcher_events_total",
			Help: "Filesystem events reported by the directory watcher",
		},
		[]string{"op"},
	)

	// Index metrics
	indexEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgview_index_entries",
			Help: "Entries tracked by the directory index",
		},
		[]string{"kind"},
	)

	indexScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgview_index_scan_duration_seconds",
			Help:    "Time to scan and sort a directory",
			Buckets: prometheus.DefBuckets,
		},
	)

	// File operation metrics
	fileOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgview_file_operations_total",
			Help: "Filesystem operations by type and status",
		},
		[]string{"op", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// SetCacheEntries sets the current cache size.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordDecode records one decode attempt.
func RecordDecode(async bool, duration time.Duration, err error) {
	mode := "sync"
	if async {
		mode = "async"
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	decodesTotal.WithLabelValues(mode, status).Inc()
	decodeDuration.Observe(duration.Seconds())
}

// SetLoaderQueued sets the number of queued decode requests.
func SetLoaderQueued(n int) {
	loaderQueued.Set(float64(n))
}

// RecordWatcherEvent counts a watcher event by operation.
func RecordWatcherEvent(op string) {
	watcherEvents.WithLabelValues(op).Inc()
}

// SetIndexEntries sets the tracked file and directory counts.
func SetIndexEntries(files, dirs int) {
	indexEntries.WithLabelValues("file").Set(float64(files))
	indexEntries.WithLabelValues("dir").Set(float64(dirs))
}

// RecordIndexScan records the duration of a directory scan.
func RecordIndexScan(duration time.Duration) {
	indexScanDuration.Observe(duration.Seconds())
}

// RecordFileOp counts a filesystem operation.
func RecordFileOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	fileOps.WithLabelValues(op, status).Inc()
}
