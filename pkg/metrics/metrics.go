package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	docProcessor = "doc_processor"

	// Job metrics
	jobsTotal       = "jobs_total"
	jobDuration     = "job_duration_seconds"
	jobsInFlight    = "jobs_in_flight"
	chunksTotal     = "chunks_total"
	documentsFormat = "documents_total"

	// Labels
	jobStatusLabel = "status"
	formatLabel    = "format"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var jobLabels = []string{
	jobStatusLabel,
}

/**
* Metrics definition
**/
var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: docProcessor,
		Name:      jobsTotal,
		Help:      "number of processed jobs by outcome",
	},
	jobLabels,
)

var jobDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: docProcessor,
		Name:      jobDuration,
		Help:      "time spent converting a document",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	},
	jobLabels,
)

var jobsInFlightMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: docProcessor,
		Name:      jobsInFlight,
		Help:      "number of jobs currently being processed",
	},
)

var chunksTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: docProcessor,
		Name:      chunksTotal,
		Help:      "number of chunks written",
	},
)

var documentsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: docProcessor,
		Name:      documentsFormat,
		Help:      "number of converted documents by format",
	},
	[]string{formatLabel},
)

var httpMiddleware = NewMiddleware("doc-processor")

// JobStarted marks a job as in flight. The returned func records its
// outcome and must be called exactly once.
func JobStarted() func(err error) {
	start := time.Now()
	jobsInFlightMetric.Inc()

	return func(err error) {
		jobsInFlightMetric.Dec()

		status := StatusCompleted
		if err != nil {
			status = StatusFailed
		}
		labels := prometheus.Labels{
			jobStatusLabel: status,
		}
		jobsTotalMetric.With(labels).Inc()
		jobDurationMetric.With(labels).Observe(time.Since(start).Seconds())
	}
}

func IncreaseDocumentsMetric(format string, chunks int) {
	documentsTotalMetric.With(prometheus.Labels{formatLabel: format}).Inc()
	chunksTotalMetric.Add(float64(chunks))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(jobDurationMetric)
	prometheus.MustRegister(jobsInFlightMetric)
	prometheus.MustRegister(chunksTotalMetric)
	prometheus.MustRegister(documentsTotalMetric)
	httpMiddleware.MustRegisterDefault()
}
