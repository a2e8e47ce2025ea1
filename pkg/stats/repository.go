package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chililog"

// Metrics holds the metric families of all repositories. Use For to get the series of one repository.
type Metrics struct {
	received     *prometheus.CounterVec
	saved        *prometheus.CounterVec
	parseErrors  *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
	rolledBack   *prometheus.CounterVec
	saveErrors   *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
	workers      *prometheus.GaugeVec
	online       *prometheus.GaugeVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	labels := []string{"repository"}
	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "repository", Name: "received_total",
			Help: "Messages taken from the input queue.",
		}, labels),
		saved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "repository", Name: "saved_total",
			Help: "Entries written to the store.",
		}, labels),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "repository", Name: "parse_errors_total",
			Help: "Messages that could not be parsed.",
		}, labels),
		deadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "repository", Name: "dead_lettered_total",
			Help: "Messages moved to the dead-letter queue.",
		}, labels),
		rolledBack: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "repository", Name: "rolled_back_total",
			Help: "Messages returned to the input queue for redelivery.",
		}, labels),
		saveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "repository", Name: "save_errors_total",
			Help: "Failed store writes, retries included.",
		}, labels),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "repository", Name: "save_duration_seconds",
			Help:    "Store write latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, labels),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "repository", Name: "workers",
			Help: "Running storage workers.",
		}, labels),
		online: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "repository", Name: "online",
			Help: "1 when the repository is online.",
		}, labels),
	}
	if registry != nil {
		registry.MustRegister(m.received, m.saved, m.parseErrors, m.deadLettered, m.rolledBack,
			m.saveErrors, m.saveDuration, m.workers, m.online)
	}
	return m
}

// RepositoryStats is the series of one repository.
type RepositoryStats struct {
	Received     prometheus.Counter
	Saved        prometheus.Counter
	ParseErrors  prometheus.Counter
	DeadLettered prometheus.Counter
	RolledBack   prometheus.Counter
	SaveErrors   prometheus.Counter
	SaveDuration prometheus.Observer
	Workers      prometheus.Gauge
	Online       prometheus.Gauge
}

func (m *Metrics) For(repository string) *RepositoryStats {
	return &RepositoryStats{
		Received:     m.received.WithLabelValues(repository),
		Saved:        m.saved.WithLabelValues(repository),
		ParseErrors:  m.parseErrors.WithLabelValues(repository),
		DeadLettered: m.deadLettered.WithLabelValues(repository),
		RolledBack:   m.rolledBack.WithLabelValues(repository),
		SaveErrors:   m.saveErrors.WithLabelValues(repository),
		SaveDuration: m.saveDuration.WithLabelValues(repository),
		Workers:      m.workers.WithLabelValues(repository),
		Online:       m.online.WithLabelValues(repository),
	}
}

// Forget drops the series of a deleted repository.
func (m *Metrics) Forget(repository string) {
	for _, vec := range []*prometheus.MetricVec{
		m.received.MetricVec, m.saved.MetricVec, m.parseErrors.MetricVec, m.deadLettered.MetricVec,
		m.rolledBack.MetricVec, m.saveErrors.MetricVec, m.saveDuration.MetricVec, m.workers.MetricVec, m.online.MetricVec,
	} {
		vec.DeleteLabelValues(repository)
	}
}

// NewRepositoryStats returns unregistered series, for tests and tools that do not export metrics.
func NewRepositoryStats(repository string) *RepositoryStats {
	return NewMetrics(nil).For(repository)
}
