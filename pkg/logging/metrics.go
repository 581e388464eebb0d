package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var adapterDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "logging",
	Subsystem: "adapter",
	Name:      "dropped_total",
	Help:      "Log records an adapter could not deliver, by reason.",
}, []string{"adapter", "reason"})
