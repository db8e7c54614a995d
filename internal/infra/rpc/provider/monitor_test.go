package provider

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMonitorAccumulation(t *testing.T) {
	m := NewMonitor()

	m.RecordSuccess(100 * time.Millisecond)

	stats := m.Stats()
	if stats.Requests != 1 {
		t.Errorf("Expected 1 request, got %d", stats.Requests)
	}

	for i := 0; i < 100; i++ {
		m.RecordSuccess(50 * time.Millisecond)
	}

	stats = m.Stats()
	if stats.Requests != 101 {
		t.Errorf("Expected 101 requests, got %d", stats.Requests)
	}
	// The latency window keeps the last 100 samples only.
	if stats.AverageLatency != 50*time.Millisecond {
		t.Errorf("Expected 50ms average latency, got %s", stats.AverageLatency)
	}
	if stats.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", stats.Status)
	}
}

func TestMonitorUnavailableAfterConsecutiveFailures(t *testing.T) {
	m := NewMonitor()
	unavailable := status.Error(codes.Unavailable, "connection refused")

	for i := 0; i < 4; i++ {
		m.RecordFailure(unavailable)
	}
	if got := m.Status(); got == StatusUnavailable {
		t.Errorf("Expected not unavailable after 4 failures, got %s", got)
	}

	m.RecordFailure(unavailable)
	if got := m.Status(); got != StatusUnavailable {
		t.Errorf("Expected unavailable, got %s", got)
	}

	m.RecordSuccess(time.Millisecond)
	if got := m.Stats().ConsecutiveFailures; got != 0 {
		t.Errorf("Expected consecutive failures reset, got %d", got)
	}
}

func TestMonitorThrottleCooldown(t *testing.T) {
	m := NewMonitor()
	now := time.Now()
	m.now = func() time.Time { return now }

	m.RecordFailure(status.Error(codes.ResourceExhausted, "rate limit exceeded"))
	if got := m.Status(); got != StatusThrottled {
		t.Errorf("Expected throttled, got %s", got)
	}

	now = now.Add(31 * time.Second)
	m.RecordSuccess(time.Millisecond)
	if got := m.Status(); got != StatusHealthy {
		t.Errorf("Expected healthy after cooldown, got %s", got)
	}
}

func TestMonitorDegradedErrorRate(t *testing.T) {
	m := NewMonitor()

	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			m.RecordFailure(status.Error(codes.Internal, "boom"))
		} else {
			m.RecordSuccess(time.Millisecond)
		}
	}

	stats := m.Stats()
	if stats.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", stats.Status)
	}
	if stats.ErrorRate != 0.5 {
		t.Errorf("Expected error rate 0.5, got %f", stats.ErrorRate)
	}
}

func TestMonitorIgnoresCancellation(t *testing.T) {
	m := NewMonitor()

	m.RecordFailure(context.Canceled)
	m.RecordFailure(status.Error(codes.Canceled, "client went away"))

	if got := m.Stats().Requests; got != 0 {
		t.Errorf("Expected cancellations to be ignored, got %d requests", got)
	}
}
