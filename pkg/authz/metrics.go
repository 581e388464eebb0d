package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	policyLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authz",
		Subsystem: "policy",
		Name:      "lookups_total",
		Help:      "Role grant lookups against the casbin policy, by subject prefix and result.",
	}, []string{"prefix", "result"})

	policyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authz",
		Subsystem: "policy",
		Name:      "latency_seconds",
		Help:      "Latency distribution for role grant lookups.",
		Buckets: []float64{
			0.00005, 0.0001, 0.0005, 0.001,
			0.002, 0.005, 0.01, 0.05,
		},
	}, []string{"prefix"})
)

func recordLookup(subject string, err error, latency time.Duration) {
	prefix := subject
	for i := 0; i < len(subject); i++ {
		if subject[i] == ':' {
			prefix = subject[:i]
			break
		}
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	policyLookups.WithLabelValues(prefix, result).Inc()
	policyLatency.WithLabelValues(prefix).Observe(latency.Seconds())
}
