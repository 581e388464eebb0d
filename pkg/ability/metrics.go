package ability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ability",
	Name:      "checks_total",
	Help:      "Ability checks by action, subject type and outcome.",
}, []string{"action", "subject", "result"})

func recordCheck(action Action, subject Subject, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	subjectType := "none"
	if subject != nil {
		subjectType = string(subject.SubjectType())
	}
	checksTotal.WithLabelValues(string(action), subjectType, result).Inc()
}
