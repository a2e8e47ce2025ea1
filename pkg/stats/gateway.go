package stats

import "github.com/prometheus/client_golang/prometheus"

// GatewayStats counts what the publish gateway accepted and refused.
type GatewayStats struct {
	Published prometheus.Counter
	Rejected  *prometheus.CounterVec
}

func NewGatewayStats(registry prometheus.Registerer) *GatewayStats {
	s := &GatewayStats{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "published_total",
			Help: "Messages published to input queues.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "gateway", Name: "rejected_total",
			Help: "Publish requests refused, by reason.",
		}, []string{"reason"}),
	}
	if registry != nil {
		registry.MustRegister(s.Published, s.Rejected)
	}
	return s
}
