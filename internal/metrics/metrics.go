package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the batch pipeline counters. It satisfies batch.Metrics.
type Metrics struct {
	ActiveBatches  prometheus.Gauge
	Batches        *prometheus.CounterVec
	BatchDuration  prometheus.Histogram
	FilesProcessed prometheus.Counter
	BytesProcessed prometheus.Counter
	FilesQueued    prometheus.Counter
	RateLimits     *prometheus.CounterVec
	ReapedSessions prometheus.Counter
}

// New creates and registers the metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "renamer",
			Subsystem: "batch",
			Name:      "active",
			Help:      "Batches currently being processed.",
		}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "renamer",
			Subsystem: "batch",
			Name:      "finished_total",
			Help:      "Finished batches by outcome.",
		}, []string{"outcome"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "renamer",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Wall time of a batch.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "renamer",
			Subsystem: "files",
			Name:      "processed_total",
			Help:      "Files renamed and sent.",
		}),
		BytesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "renamer",
			Subsystem: "files",
			Name:      "bytes_total",
			Help:      "Bytes downloaded for sent files.",
		}),
		FilesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "renamer",
			Subsystem: "files",
			Name:      "queued_total",
			Help:      "Files added to a batch queue.",
		}),
		RateLimits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "renamer",
			Subsystem: "telegram",
			Name:      "rate_limited_total",
			Help:      "Rate limit responses by operation.",
		}, []string{"op"}),
		ReapedSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "renamer",
			Subsystem: "session",
			Name:      "reaped_total",
			Help:      "Sessions dropped by the idle reaper.",
		}),
	}

	reg.MustRegister(
		m.ActiveBatches,
		m.Batches,
		m.BatchDuration,
		m.FilesProcessed,
		m.BytesProcessed,
		m.FilesQueued,
		m.RateLimits,
		m.ReapedSessions,
	)

	return m
}

func (m *Metrics) BatchStarted() {
	m.ActiveBatches.Inc()
}

func (m *Metrics) BatchFinished(outcome string, elapsed time.Duration) {
	m.ActiveBatches.Dec()
	m.Batches.WithLabelValues(outcome).Inc()
	m.BatchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) FileProcessed(bytes uint64) {
	m.FilesProcessed.Inc()
	m.BytesProcessed.Add(float64(bytes))
}

func (m *Metrics) FileQueued() {
	m.FilesQueued.Inc()
}

func (m *Metrics) RateLimited(op string) {
	m.RateLimits.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionsReaped(n int) {
	m.ReapedSessions.Add(float64(n))
}
