package interceptors

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/orsocook/orso-auth/internal/infra/telemetry"
)

const unknownLabel = "unknown"

var rpcLabels = []string{"service", "method", "code"}

// GRPCMetricsOptions controls construction of gRPC metrics collectors. Zero values fall back to
// the orso_grpc_* names on the default registerer.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

func (o GRPCMetricsOptions) withDefaults() GRPCMetricsOptions {
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	if o.Namespace == "" {
		o.Namespace = "orso"
	}
	if o.Subsystem == "" {
		o.Subsystem = "grpc"
	}
	if len(o.Buckets) == 0 {
		o.Buckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}
	}
	return o
}

// GRPCMetrics counts and times introspection RPCs.
type GRPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
	opts = opts.withDefaults()
	m := &GRPCMetrics{}

	var err error
	if m.requests, err = telemetry.Register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "requests_total",
		Help:      "Unary RPCs served, by service, method and status code.",
	}, rpcLabels)); err != nil {
		return nil, err
	}
	if m.duration, err = telemetry.Register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "request_duration_seconds",
		Help:      "Unary RPC latency, by service, method and status code.",
		Buckets:   opts.Buckets,
	}, rpcLabels)); err != nil {
		return nil, err
	}
	if m.inFlight, err = telemetry.Register(opts.Registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "in_flight_requests",
		Help:      "Unary RPCs currently being served, by service.",
	}, []string{"service"})); err != nil {
		return nil, err
	}
	return m, nil
}

// UnaryServerInterceptor records every unary call. A nil receiver passes calls through untouched.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}

		service, method := splitFullMethod(info.FullMethod)
		labels := prometheus.Labels{"service": service, "method": method}
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
			m.duration.With(labels).Observe(seconds)
		}))

		inFlight := m.inFlight.WithLabelValues(service)
		inFlight.Inc()
		resp, err := handler(ctx, req)
		inFlight.Dec()

		labels["code"] = status.Code(err).String()
		m.requests.With(labels).Inc()
		timer.ObserveDuration()
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its two label values.
func splitFullMethod(full string) (service, method string) {
	service, method, _ = strings.Cut(strings.TrimPrefix(full, "/"), "/")
	if service == "" {
		service = unknownLabel
	}
	if method == "" {
		method = unknownLabel
	}
	return service, method
}

// UnaryRequests exposes the request counter.
func (m *GRPCMetrics) UnaryRequests() *prometheus.CounterVec {
	return m.requests
}
