package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Report run statuses
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusCached  = "cached"
)

var (
	ReportRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_runs_total",
		Help: "Total number of report runs by outcome",
	}, []string{"report", "status"})

	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_duration_seconds",
		Help:    "Time spent computing a report, snapshot load included",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"report"})

	ReportRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "report_rows",
		Help: "Rows produced by the latest run of a report",
	}, []string{"report"})

	ReportCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_hits_total",
		Help: "Total number of reports served from cache",
	})

	ReportCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_misses_total",
		Help: "Total number of report cache misses",
	})

	DataIntegrityErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "data_integrity_errors_total",
		Help: "Total number of report runs aborted by a data integrity error",
	}, []string{"entity"})

	SnapshotLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshot_load_duration_seconds",
		Help:    "Latency of loading an analytics snapshot from the database",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
