package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Extraction metrics
	ExtractionRunsTotal    *prometheus.CounterVec
	ExtractionRunDuration  prometheus.Histogram
	ExtractionJobsTotal    *prometheus.CounterVec
	ExtractionJobsInFlight prometheus.Gauge
	PagesFetched           prometheus.Counter
	RowsWritten            *prometheus.CounterVec
	TableUploads           *prometheus.CounterVec

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec
	TokenRefreshes      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ExtractionRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_runs_total",
				Help: "Total number of extraction runs",
			},
			[]string{"status"},
		),

		ExtractionRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "extraction_run_duration_seconds",
				Help:    "Extraction run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			},
		),

		ExtractionJobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_jobs_total",
				Help: "Total number of (profile, table) extraction jobs",
			},
			[]string{"status"},
		),

		ExtractionJobsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "extraction_jobs_in_flight",
				Help: "Number of extraction jobs currently in progress",
			},
		),

		PagesFetched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "extraction_pages_fetched_total",
				Help: "Total number of report pages fetched",
			},
		),

		RowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_rows_written_total",
				Help: "Total number of rows written to staging files",
			},
			[]string{"table"},
		),

		TableUploads: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_table_uploads_total",
				Help: "Total number of table uploads",
			},
			[]string{"mode"},
		),

		ExternalAPICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of reporting API calls",
			},
			[]string{"endpoint", "status"},
		),

		ExternalAPIDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "Reporting API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		ExternalAPIFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of reporting API failures",
			},
			[]string{"endpoint", "error_type"},
		),

		TokenRefreshes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_token_refreshes_total",
				Help: "Total number of OAuth access token refreshes",
			},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Extraction run metrics
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.ExtractionRunsTotal.WithLabelValues(status).Inc()
	m.ExtractionRunDuration.Observe(duration.Seconds())
}

// Extraction job metrics
func (m *Metrics) RecordJob(status string) {
	m.ExtractionJobsTotal.WithLabelValues(status).Inc()
}

// Page fetch metrics
func (m *Metrics) RecordPageFetched() {
	m.PagesFetched.Inc()
}

// Staging row metrics
func (m *Metrics) RecordRowsWritten(table string, count int) {
	m.RowsWritten.WithLabelValues(table).Add(float64(count))
}

// Table upload metrics
func (m *Metrics) RecordUpload(mode string) {
	m.TableUploads.WithLabelValues(mode).Inc()
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(endpoint, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(endpoint, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(endpoint, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(endpoint, errorType).Inc()
}

// OAuth refresh counter
func (m *Metrics) RecordTokenRefresh() {
	m.TokenRefreshes.Inc()
}

// Extraction jobs in flight counter
func (m *Metrics) IncJobsInFlight() {
	m.ExtractionJobsInFlight.Inc()
}

// Extraction jobs in flight counter
func (m *Metrics) DecJobsInFlight() {
	m.ExtractionJobsInFlight.Dec()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
