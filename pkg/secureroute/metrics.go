package secureroute

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var guardOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "secureroute",
	Name:      "requests_total",
	Help:      "Guarded requests by route template, handler kind and outcome.",
}, []string{"route", "kind", "outcome"})

func recordOutcome(route string, k kind, outcome string) {
	guardOutcomes.WithLabelValues(route, k.String(), outcome).Inc()
}
