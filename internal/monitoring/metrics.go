package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PagesCaptured       prometheus.Counter
	DuplicatesSkipped   prometheus.Counter
	CaptureErrors       *prometheus.CounterVec
	StorePages          prometheus.Gauge
	ExportsTotal        *prometheus.CounterVec
	ExportDuration      prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the application metrics with reg.
// Pass prometheus.DefaultRegisterer to expose them on /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "archiver_pages_captured_total",
			Help: "The total number of page images appended to the store",
		}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "archiver_duplicates_skipped_total",
			Help: "The total number of captures skipped because the content was already stored",
		}),
		CaptureErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_capture_errors_total",
			Help: "The total number of failed capture attempts",
		}, []string{"type"}), // e.g., 'rasterize', 'persist'
		StorePages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "archiver_store_pages",
			Help: "Current number of pages in the image store",
		}),
		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_exports_total",
			Help: "The total number of export attempts",
		}, []string{"status"}), // success, empty, busy, failure
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "archiver_export_duration_seconds",
			Help:    "Duration of PDF exports.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archiver_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncCaptured() {
	m.PagesCaptured.Inc()
}

func (m *Metrics) IncDuplicates() {
	m.DuplicatesSkipped.Inc()
}

func (m *Metrics) IncCaptureErrors(errorType string) {
	m.CaptureErrors.WithLabelValues(errorType).Inc()
}

func (m *Metrics) SetStorePages(n int) {
	m.StorePages.Set(float64(n))
}

func (m *Metrics) IncExports(status string) {
	m.ExportsTotal.WithLabelValues(status).Inc()
}
