// Package metrics defines the Prometheus collectors for imports and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	domain "github.com/mohammadpnp/prospect-import/internal/domain/prospect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	UploadsTotal        prometheus.Counter
	UploadRows          prometheus.Histogram
	BatchesTotal        prometheus.Counter
	BatchDuration       prometheus.Histogram
	ProspectsTotal      *prometheus.CounterVec
	JobsTotal           *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospect_import_uploads_total",
			Help: "Accepted CSV uploads.",
		}),
		UploadRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prospect_import_upload_rows",
			Help:    "Data rows per accepted upload.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospect_import_batches_total",
			Help: "Committed reconciliation batches.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prospect_import_batch_duration_seconds",
			Help:    "Time to reconcile and commit one batch.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ProspectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospect_import_prospects_total",
			Help: "Reconciled prospects by outcome (inserted, updated, skipped).",
		}, []string{"outcome"}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospect_import_jobs_total",
			Help: "Import jobs by terminal status.",
		}, []string{"status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.UploadsTotal,
		m.UploadRows,
		m.BatchesTotal,
		m.BatchDuration,
		m.ProspectsTotal,
		m.JobsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) ObserveUpload(rows int) {
	m.UploadsTotal.Inc()
	m.UploadRows.Observe(float64(rows))
}

func (m *Metrics) ObserveBatch(result domain.BatchResult, duration time.Duration) {
	m.BatchesTotal.Inc()
	m.BatchDuration.Observe(duration.Seconds())
	m.ProspectsTotal.WithLabelValues("inserted").Add(float64(result.Inserted))
	m.ProspectsTotal.WithLabelValues("updated").Add(float64(result.Updated))
	m.ProspectsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
}

func (m *Metrics) ObserveJob(status domain.ImportJobStatus, _ domain.ImportSummary) {
	m.JobsTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the collectors of gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
