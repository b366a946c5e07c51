package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orso_auth"

// Login outcomes recorded by ObserveLogin.
const (
	LoginSucceeded          = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginLocked             = "locked"
	LoginUnverified         = "unverified"
)

// Metrics holds the auth-domain Prometheus collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	Logins               *prometheus.CounterVec
	Lockouts             prometheus.Counter
	Refreshes            *prometheus.CounterVec
	SessionsRevoked      *prometheus.CounterVec
	SessionsSwept        prometheus.Counter
	NotificationFailures *prometheus.CounterVec
	EventFailures        *prometheus.CounterVec
}

// NewMetrics registers the auth collectors with reg, reusing collectors that are already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error

	if m.Logins, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.Lockouts, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_lockouts_total",
		Help:      "Accounts locked after repeated failed logins.",
	})); err != nil {
		return nil, err
	}
	if m.Refreshes, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Access token refreshes partitioned by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if m.SessionsRevoked, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Sessions deleted partitioned by reason.",
	}, []string{"reason"})); err != nil {
		return nil, err
	}
	if m.SessionsSwept, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Expired sessions removed by the sweeper.",
	})); err != nil {
		return nil, err
	}
	if m.NotificationFailures, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Emails that could not be delivered partitioned by kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if m.EventFailures, err = Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Domain events that could not be published partitioned by event type.",
	}, []string{"event"})); err != nil {
		return nil, err
	}

	return m, nil
}

// Register adds c to reg. When an equal collector is already registered, that one is returned instead.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLockout() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSessionsRevoked(reason string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsRevoked.WithLabelValues(reason).Add(float64(count))
}

func (m *Metrics) ObserveSweep(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(count))
}

func (m *Metrics) ObserveNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveEventFailure(event string) {
	if m == nil {
		return
	}
	m.EventFailures.WithLabelValues(event).Inc()
}
