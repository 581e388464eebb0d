package orgcheck

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/pkg/constants"
	"github.com/iota-uz/saaskit/pkg/httpapi"
)

var outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "orgcheck",
	Name:      "outcomes_total",
	Help:      "Organization activation outcomes by state.",
}, []string{"state"})

// Middleware gates the app shell. The SingleOrganization state never reaches
// the handler; it is folded into Resolved once the organization is activated.
func Middleware(flow *Flow, fallback logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome, err := flow.Evaluate(r.Context(), r)
			if err != nil {
				outcomes.WithLabelValues("error").Inc()
				logger := fallback
				if l, ok := r.Context().Value(constants.LoggerKey).(*logrus.Entry); ok {
					logger = l
				}
				logger.WithError(err).Error("organization activation failed")
				_ = httpapi.FailWith(w, err)
				return
			}
			outcomes.WithLabelValues(outcome.State.String()).Inc()
			if outcome.Redirect != "" {
				http.Redirect(w, r, outcome.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOutcome(r.Context(), outcome)))
		})
	}
}
