package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dapcore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dapcore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	linkFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dapcore",
			Subsystem: "link",
			Name:      "frames_total",
			Help:      "Frames sent to the transmitter by kind and acknowledgement result.",
		},
		[]string{"kind", "result"},
	)
	linkSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dapcore",
			Subsystem: "link",
			Name:      "sessions_total",
			Help:      "Transmitter sessions by outcome.",
		},
		[]string{"outcome"},
	)
	ingestSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dapcore",
			Subsystem: "ingest",
			Name:      "submissions_total",
			Help:      "Submission lines by source and result.",
		},
		[]string{"source", "result"},
	)
	schedulerFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dapcore",
			Subsystem: "scheduler",
			Name:      "frames_total",
			Help:      "Frames enqueued by the scheduler per job.",
		},
		[]string{"job"},
	)
	dedupSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dapcore",
			Subsystem: "dedup",
			Name:      "swept_total",
			Help:      "Dedup entries evicted by the periodic sweep.",
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dapcore",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Frames waiting for the drain worker.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			linkFrames,
			linkSessions,
			ingestSubmissions,
			schedulerFrames,
			dedupSwept,
			queueDepth,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordLinkFrame counts one frame sent on the transmitter link.
func RecordLinkFrame(kind, result string) {
	RegisterMetrics()
	linkFrames.WithLabelValues(kind, result).Inc()
}

func RecordSession(outcome string) {
	RegisterMetrics()
	linkSessions.WithLabelValues(outcome).Inc()
}

func RecordSubmission(source, result string) {
	RegisterMetrics()
	ingestSubmissions.WithLabelValues(source, result).Inc()
}

func RecordScheduled(job string) {
	RegisterMetrics()
	schedulerFrames.WithLabelValues(job).Inc()
}

func RecordSwept(n int) {
	RegisterMetrics()
	dedupSwept.Add(float64(n))
}

func SetQueueDepth(n int) {
	RegisterMetrics()
	queueDepth.Set(float64(n))
}
