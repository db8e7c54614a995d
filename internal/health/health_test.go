package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/cachekit/internal/infra/rpc/provider"
	"github.com/vietddude/cachekit/internal/topic"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSubs struct {
	statuses []topic.Status
}

func (s *stubSubs) Snapshot() []topic.Status { return s.statuses }

type stubConn struct {
	monitor *provider.Monitor
}

func (s *stubConn) Endpoint() string            { return "localhost:9000" }
func (s *stubConn) Monitor() *provider.Monitor { return s.monitor }

func failingConn(n int) *stubConn {
	m := provider.NewMonitor()
	for i := 0; i < n; i++ {
		m.RecordFailure(status.Error(codes.Unavailable, "connection refused"))
	}
	return &stubConn{monitor: m}
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	monitor := NewMonitor(
		failingConn(0),
		&stubSubs{statuses: []topic.Status{{ID: "a", State: "streaming"}}},
		0,
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if len(report.Subscriptions) != 1 || report.Subscriptions[0].Status != StatusHealthy {
		t.Errorf("expected one healthy subscription, got %+v", report.Subscriptions)
	}
}

func TestMonitor_Degraded(t *testing.T) {
	monitor := NewMonitor(
		failingConn(0),
		&stubSubs{statuses: []topic.Status{
			{ID: "a", State: "streaming"},
			{ID: "b", State: "resubscribing", Resubscribes: 3},
		}},
		0,
	)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
}

func TestMonitor_FailedSubscriptionOnlyDegrades(t *testing.T) {
	monitor := NewMonitor(nil, &stubSubs{statuses: []topic.Status{
		{ID: "a", State: "terminated", Error: "Subscribe: permission_denied"},
	}}, 0)

	report := monitor.CheckHealth(context.Background())
	if report.Subscriptions[0].Status != StatusCritical {
		t.Errorf("expected critical subscription, got %s", report.Subscriptions[0].Status)
	}
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded system, got %s", report.SystemStatus)
	}
}

func TestMonitor_CriticalConnection(t *testing.T) {
	monitor := NewMonitor(failingConn(5), nil, 0)

	report := monitor.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Connection.Transport != "unavailable" {
		t.Errorf("expected unavailable transport, got %s", report.Connection.Transport)
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	subs := &stubSubs{statuses: []topic.Status{{ID: "a", State: "streaming"}}}
	monitor := NewMonitor(nil, subs, time.Minute)

	first := monitor.CheckHealth(context.Background())
	subs.statuses = nil
	second := monitor.CheckHealth(context.Background())

	if len(first.Subscriptions) != len(second.Subscriptions) {
		t.Errorf("expected cached report, got %d then %d subscriptions",
			len(first.Subscriptions), len(second.Subscriptions))
	}
}

func TestServer_Endpoints(t *testing.T) {
	server := NewServer(NewMonitor(failingConn(5), &stubSubs{}, 0), 0)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("expected critical status, got %v", body["status"])
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode detailed: %v", err)
	}
	if report.Connection == nil || report.Connection.Endpoint != "localhost:9000" {
		t.Errorf("expected connection details, got %+v", report.Connection)
	}

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", rec.Code)
	}
}
