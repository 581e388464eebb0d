package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iota-uz/saaskit/pkg/application"
)

const DefaultPrometheusPath = "/debug/prometheus"

type PrometheusOption func(*PrometheusController)

// WithGatherer serves g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) PrometheusOption {
	return func(c *PrometheusController) {
		c.gatherer = g
	}
}

// PrometheusController exposes the guard, ability, rate limit and log adapter
// metrics. It sits in the ops route class.
type PrometheusController struct {
	path     string
	gatherer prometheus.Gatherer
}

func NewPrometheusController(path string, opts ...PrometheusOption) application.Controller {
	if path == "" {
		path = DefaultPrometheusPath
	}
	c := &PrometheusController{path: path, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// PoolCollector reports pgxpool connection statistics.
type PoolCollector struct {
	pool     *pgxpool.Pool
	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	acquires *prometheus.Desc
	empty    *prometheus.Desc
}

func NewPoolCollector(pool *pgxpool.Pool) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("saaskit", "db_pool", name), help, nil, nil)
	}
	return &PoolCollector{
		pool:     pool,
		total:    desc("total_conns", "Open connections."),
		idle:     desc("idle_conns", "Idle connections."),
		acquired: desc("acquired_conns", "Connections currently checked out."),
		acquires: desc("acquires_total", "Successful connection acquisitions."),
		empty:    desc("empty_acquires_total", "Acquisitions that had to wait for a connection."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.acquires
	ch <- c.empty
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.empty, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
}
