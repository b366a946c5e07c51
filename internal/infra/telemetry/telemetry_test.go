package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordsObservations(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}

	m.ObserveLogin(LoginInvalidCredentials)
	m.ObserveLogin(LoginInvalidCredentials)
	m.ObserveLockout()
	m.ObserveSessionsRevoked("logout_all", 3)
	m.ObserveSessionsRevoked("logout", 0)
	m.ObserveSweep(4)

	if got := testutil.ToFloat64(m.Logins.WithLabelValues(LoginInvalidCredentials)); got != 2 {
		t.Fatalf("expected 2 failed logins, got %f", got)
	}
	if got := testutil.ToFloat64(m.Lockouts); got != 1 {
		t.Fatalf("expected 1 lockout, got %f", got)
	}
	if got := testutil.ToFloat64(m.SessionsRevoked.WithLabelValues("logout_all")); got != 3 {
		t.Fatalf("expected 3 revoked sessions, got %f", got)
	}
	if got := testutil.CollectAndCount(m.SessionsRevoked); got != 1 {
		t.Fatalf("zero-count revocations should not create series, got %d", got)
	}
	if got := testutil.ToFloat64(m.SessionsSwept); got != 4 {
		t.Fatalf("expected 4 swept sessions, got %f", got)
	}
}

func TestMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}
	second, err := NewMetrics(registry)
	if err != nil {
		t.Fatalf("second NewMetrics returned error: %v", err)
	}

	second.ObserveLockout()
	if got := testutil.ToFloat64(first.Lockouts); got != 1 {
		t.Fatalf("expected shared lockout counter, got %f", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLogin(LoginSucceeded)
	m.ObserveLockout()
	m.ObserveRefresh("success")
	m.ObserveSessionsRevoked("logout", 1)
	m.ObserveSweep(1)
	m.ObserveNotificationFailure("verification_email")
	m.ObserveEventFailure("user.registered")
}
