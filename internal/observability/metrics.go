// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	FeedsComposed        prometheus.Counter
	FeedCompositionErrors prometheus.Counter
	FeedListingsReturned prometheus.Histogram

	// Attribution metrics
	ClicksRecorded        prometheus.Counter
	ImpressionsRecorded   prometheus.Counter
	GenericEventsRecorded prometheus.Counter
	EventsDropped         *prometheus.CounterVec
	EventWriteErrors      *prometheus.CounterVec
	EventWriteRetries     prometheus.Counter
	DuplicatesSuppressed  *prometheus.CounterVec
	RecorderQueueDepth    prometheus.Gauge

	// Analytics metrics
	ReportsComputed     prometheus.Counter
	ReportCacheHits     prometheus.Counter
	ReportCacheMisses   prometheus.Counter
	ReportComputeErrors prometheus.Counter
	MissingPlacements   prometheus.Counter

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulReport prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "promofeed"
	}

	return &Metrics{
		// Feed metrics
		FeedsComposed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "composed_total",
			Help:      "Total number of feed pages composed",
		}),
		FeedCompositionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "composition_errors_total",
			Help:      "Total number of feed composition contract violations",
		}),
		FeedListingsReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "listings_returned",
			Help:      "Number of listings returned per composed feed page",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250},
		}),

		// Attribution metrics
		ClicksRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "clicks_recorded_total",
			Help:      "Total number of click events persisted",
		}),
		ImpressionsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "impressions_recorded_total",
			Help:      "Total number of impression events persisted",
		}),
		GenericEventsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "generic_events_recorded_total",
			Help:      "Total number of generic marketplace events persisted",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped by reason",
		}, []string{"event_type", "reason"}),
		EventWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "event_write_errors_total",
			Help:      "Total number of event persistence failures",
		}, []string{"event_type"}),
		EventWriteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "event_write_retries_total",
			Help:      "Total number of event write retry attempts",
		}),
		DuplicatesSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "duplicates_suppressed_total",
			Help:      "Total number of duplicate events treated as already recorded",
		}, []string{"event_type"}),
		RecorderQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "attribution",
			Name:      "recorder_queue_depth",
			Help:      "Current number of pending tasks in the recorder queue",
		}),

		// Analytics metrics
		ReportsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "reports_computed_total",
			Help:      "Total number of analytics reports computed",
		}),
		ReportCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "report_cache_hits_total",
			Help:      "Total number of report cache hits",
		}),
		ReportCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "report_cache_misses_total",
			Help:      "Total number of report cache misses",
		}),
		ReportComputeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "report_compute_errors_total",
			Help:      "Total number of failed report computations",
		}),
		MissingPlacements: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "missing_placements_total",
			Help:      "Total number of events referencing unknown placements",
		}),

		// HTTP metrics
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "method", "status"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulReport: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_report_timestamp",
			Help:      "Unix timestamp of last successful report computation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFeedComposed records a successfully composed feed page.
func RecordFeedComposed(listings int) {
	DefaultMetrics.FeedsComposed.Inc()
	DefaultMetrics.FeedListingsReturned.Observe(float64(listings))
}

// RecordFeedCompositionError increments the composition error counter.
func RecordFeedCompositionError() {
	DefaultMetrics.FeedCompositionErrors.Inc()
}

// RecordClickStored increments the clicks recorded counter.
func RecordClickStored() {
	DefaultMetrics.ClicksRecorded.Inc()
}

// RecordImpressionsStored adds to the impressions recorded counter.
func RecordImpressionsStored(n int) {
	DefaultMetrics.ImpressionsRecorded.Add(float64(n))
}

// RecordGenericEventStored increments the generic events recorded counter.
func RecordGenericEventStored() {
	DefaultMetrics.GenericEventsRecorded.Inc()
}

// RecordEventDropped records a dropped event with its reason.
func RecordEventDropped(eventType, reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(eventType, reason).Inc()
}

// RecordEventWriteError records a terminal event persistence failure.
func RecordEventWriteError(eventType string) {
	DefaultMetrics.EventWriteErrors.WithLabelValues(eventType).Inc()
}

// RecordEventWriteRetry increments the retry counter.
func RecordEventWriteRetry() {
	DefaultMetrics.EventWriteRetries.Inc()
}

// RecordDuplicateSuppressed records a duplicate event treated as recorded.
func RecordDuplicateSuppressed(eventType string) {
	DefaultMetrics.DuplicatesSuppressed.WithLabelValues(eventType).Inc()
}

// UpdateRecorderQueueDepth updates the recorder queue depth gauge.
func UpdateRecorderQueueDepth(depth int) {
	DefaultMetrics.RecorderQueueDepth.Set(float64(depth))
}

// RecordReportComputed records a successful report computation.
func RecordReportComputed() {
	DefaultMetrics.ReportsComputed.Inc()
}

// RecordReportCacheHit increments the report cache hit counter.
func RecordReportCacheHit() {
	DefaultMetrics.ReportCacheHits.Inc()
}

// RecordReportCacheMiss increments the report cache miss counter.
func RecordReportCacheMiss() {
	DefaultMetrics.ReportCacheMisses.Inc()
}

// RecordReportComputeError increments the report compute error counter.
func RecordReportComputeError() {
	DefaultMetrics.ReportComputeErrors.Inc()
}

// RecordMissingPlacements adds to the missing placements counter.
func RecordMissingPlacements(n int) {
	DefaultMetrics.MissingPlacements.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request with its duration.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	DefaultMetrics.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
