package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orsocook/orso-auth/internal/infra/telemetry"
)

const unmatchedRoute = "unmatched"

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// HTTPMetrics holds the request collectors and the throttle counter. A nil *HTTPMetrics records nothing.
type HTTPMetrics struct {
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	InFlight  prometheus.Gauge
	Throttled *prometheus.CounterVec
}

func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "orso"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		// bcrypt at cost 12 dominates login latency, so the upper buckets matter most
		buckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	}

	m := &HTTPMetrics{}
	var err error
	if m.Requests, err = telemetry.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})); err != nil {
		return nil, err
	}
	if m.Duration, err = telemetry.Register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds by method and route.",
		Buckets:   buckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}
	if m.InFlight, err = telemetry.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "HTTP requests currently being served.",
	})); err != nil {
		return nil, err
	}
	if m.Throttled, err = telemetry.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429 by rate limit rule.",
	}, []string{"rule"})); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler records count, latency and concurrency per matched route.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		m.InFlight.Inc()
		defer m.InFlight.Dec()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		m.Requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.Duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *HTTPMetrics) observeThrottled(rule string) {
	if m == nil {
		return
	}
	m.Throttled.WithLabelValues(rule).Inc()
}
