// Package metrics registers prometheus collectors for the pipeline and the
// service mode.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scanprep",
			Name:      "pages_classified_total",
			Help:      "Pages classified, by verdict (retained, blank, marker)",
		},
		[]string{"verdict"},
	)

	renderFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scanprep",
			Name:      "render_failures_total",
			Help:      "Pages that could not be rasterized and fell back to the blank verdict",
		},
	)

	documentsEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scanprep",
			Name:      "documents_emitted_total",
			Help:      "Output documents produced across all runs",
		},
	)

	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scanprep",
			Name:      "jobs_processed_total",
			Help:      "Service jobs processed, by result (success, failed, cancelled, retried)",
		},
		[]string{"result"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scanprep",
			Name:      "job_duration_seconds",
			Help:      "End-to-end duration of service jobs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "scanprep",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(pagesClassified, renderFailures, documentsEmitted, jobsProcessed, jobDuration, queueDepth)
}

// Handler returns the http.Handler for /metrics.
func Handler() http.Handler { return promhttp.Handler() }

func IncPage(verdict string) { pagesClassified.WithLabelValues(verdict).Inc() }

func IncRenderFailure() { renderFailures.Inc() }

func AddDocumentsEmitted(n int) { documentsEmitted.Add(float64(n)) }

func ObserveJob(result string, dur time.Duration) {
	jobsProcessed.WithLabelValues(result).Inc()
	jobDuration.Observe(dur.Seconds())
}

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
