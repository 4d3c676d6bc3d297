// Package metrics exposes Prometheus collectors for the patent collector.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Task outcomes recorded by ObservePatent.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeParse   = "parse_error"
	OutcomeFetch   = "fetch_error"
	OutcomePersist = "persistence_error"
)

// Download results recorded by ObserveDownload.
const (
	DownloadOK      = "ok"
	DownloadExists  = "exists"
	DownloadFailed  = "failed"
	DownloadAborted = "aborted"
)

var (
	patentsProcessedTotal      *prometheus.CounterVec
	patentFetchBytesTotal      prometheus.Counter
	patentDurationSeconds      prometheus.Histogram
	artifactDownloadsTotal     *prometheus.CounterVec
	queuePending               prometheus.Gauge
	workerBusy                 prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		patentsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "patents_processed_total",
				Help: "Total number of patent tasks finished, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		patentFetchBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "patent_fetch_bytes_total",
				Help: "Total number of page bytes fetched.",
			},
		)

		patentDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "patent_task_duration_seconds",
				Help:    "Histogram of end-to-end task durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		artifactDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifact_downloads_total",
				Help: "Total number of artifact downloads, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		queuePending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "queue_pending",
				Help: "Number of tasks waiting in the queue.",
			},
		)

		workerBusy = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_busy",
				Help: "1 while the worker is processing a task.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePatent records a finished task.
func ObservePatent(outcome string, bytesFetched int, duration time.Duration) {
	Init()
	patentsProcessedTotal.WithLabelValues(outcome).Inc()
	if bytesFetched > 0 {
		patentFetchBytesTotal.Add(float64(bytesFetched))
	}
	patentDurationSeconds.Observe(duration.Seconds())
}

// ObserveDownload records one artifact download attempt.
func ObserveDownload(kind, result string) {
	Init()
	artifactDownloadsTotal.WithLabelValues(kind, result).Inc()
}

// SetQueuePending sets the queue depth gauge.
func SetQueuePending(n int) {
	Init()
	queuePending.Set(float64(n))
}

// SetWorkerBusy flips the worker busy gauge.
func SetWorkerBusy(busy bool) {
	Init()
	if busy {
		workerBusy.Set(1)
		return
	}
	workerBusy.Set(0)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
