package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"borrowbuddy/db"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 独立 registry，测试里可以各建一份互不干扰
type Metrics struct {
	Registry *prometheus.Registry

	requests  *prometheus.HistogramVec
	ledgerOps *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "borrowbuddy",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "borrowbuddy",
			Name:      "ledger_operations_total",
			Help:      "Borrow ledger operations by outcome.",
		}, []string{"op", "outcome"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.ledgerOps,
	)
	return m
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveLedger 记录一次借还操作的结果
func (m *Metrics) ObserveLedger(op string, err error) {
	m.ledgerOps.WithLabelValues(op, Outcome(err)).Inc()
}

func (m *Metrics) LedgerCount(op, outcome string) prometheus.Counter {
	return m.ledgerOps.WithLabelValues(op, outcome)
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, db.ErrNotFound):
		return "not_found"
	case errors.Is(err, db.ErrConflict):
		return "conflict"
	case errors.Is(err, db.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
