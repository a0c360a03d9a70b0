package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evolvere"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	submissions  *prometheus.CounterVec
	scorePercent prometheus.Histogram
	medals       *prometheus.CounterVec
	logins       *prometheus.CounterVec
	uploads      *prometheus.CounterVec
	expired      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_submissions_total",
			Help:      "Finalised form submissions by status.",
		}, []string{"status"}),
		scorePercent: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "form_score_percent",
			Help:      "Distribution of percent_correct on scored submissions.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		medals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "medals_awarded_total",
			Help:      "Medals awarded by code.",
		}, []string{"code"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Stored uploads by category.",
		}, []string{"category"}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_expired_by_sweeper_total",
			Help:      "In-progress submissions closed by the expiry sweeper.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency keyed by the route
// template, so /form/1 and /form/2 share a series.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// The recorders below are nil-safe so services can run without metrics.

func (m *Metrics) SubmissionScored(percent float64) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues("submitted").Inc()
	m.scorePercent.Observe(percent)
}

func (m *Metrics) SubmissionExpired(bySweeper bool) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues("expired").Inc()
	if bySweeper {
		m.expired.Inc()
	}
}

func (m *Metrics) MedalAwarded(code string) {
	if m == nil {
		return
	}
	m.medals.WithLabelValues(code).Inc()
}

func (m *Metrics) Login(method string, ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.logins.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) Upload(category string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(category).Inc()
}
