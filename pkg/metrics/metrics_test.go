package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func serve(c interface{ Register(*mux.Router) }, path string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	c.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthController(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(NewHealthController(pinger{}), "/health").Code)

	rec := serve(NewHealthController(pinger{err: errors.New("down")}), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

func TestPrometheusController_DefaultPath(t *testing.T) {
	c := NewPrometheusController("")
	assert.Equal(t, "/debug/prometheus", c.Key())
	assert.Equal(t, http.StatusOK, serve(c, "/debug/prometheus").Code)
}

func TestPrometheusController_CustomGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_hits_total", Help: "hits"})
	reg.MustRegister(hits, NewPoolCollector(nil))
	hits.Inc()

	rec := serve(NewPrometheusController("/metrics", WithGatherer(reg)), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_hits_total 1")
	assert.NotContains(t, rec.Body.String(), "saaskit_db_pool")
}
