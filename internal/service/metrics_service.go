package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/ipcr-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and the ingestion pipeline.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	ingestFiles        *prometheus.CounterVec
	archiveOutcomes    *prometheus.CounterVec
	classifierDuration *prometheus.HistogramVec
	exportsTotal       *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	ingestFiles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipcr_ingest_files_total",
		Help: "Files processed by the ingestion pipeline, by result",
	}, []string{"result"})

	archiveOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipcr_archive_outcomes_total",
		Help: "Archive attempts by outcome",
	}, []string{"status"})

	classifierDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ipcr_classifier_duration_seconds",
		Help:    "Latency of classifier calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	exportsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipcr_exports_total",
		Help: "Rendered IPCR reports by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ingestFiles, archiveOutcomes, classifierDuration, exportsTotal, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		ingestFiles:        ingestFiles,
		archiveOutcomes:    archiveOutcomes,
		classifierDuration: classifierDuration,
		exportsTotal:       exportsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveIngestFile counts one processed file by its result status.
func (m *MetricsService) ObserveIngestFile(result string) {
	if m == nil {
		return
	}
	m.ingestFiles.WithLabelValues(result).Inc()
}

// ObserveArchiveOutcome counts one archive attempt.
func (m *MetricsService) ObserveArchiveOutcome(status models.ArchiveStatus) {
	if m == nil {
		return
	}
	m.archiveOutcomes.WithLabelValues(string(status)).Inc()
}

// ObserveClassifier records classifier latency labelled by success or error.
func (m *MetricsService) ObserveClassifier(duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.classifierDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveExport counts one rendered report.
func (m *MetricsService) ObserveExport(format string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(format).Inc()
}
