package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/cachekit/internal/infra/rpc/provider"
	"github.com/vietddude/cachekit/internal/topic"
)

// SubscriptionSource lists the tracked subscriptions.
type SubscriptionSource interface {
	Snapshot() []topic.Status
}

// ConnectionSource exposes connection statistics.
type ConnectionSource interface {
	Endpoint() string
	Monitor() *provider.Monitor
}

// Monitor aggregates health status from the connection and the subscriptions.
type Monitor struct {
	conn     ConnectionSource
	subs     SubscriptionSource
	cacheFor time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

// NewMonitor creates a new health monitor. Either source may be nil. Reports
// are reused for cacheFor to keep scrapes cheap.
func NewMonitor(conn ConnectionSource, subs SubscriptionSource, cacheFor time.Duration) *Monitor {
	return &Monitor{conn: conn, subs: subs, cacheFor: cacheFor}
}

// CheckHealth builds the current report.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheFor {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus:  StatusHealthy,
		Subscriptions: []SubscriptionHealth{},
		CheckedAt:     time.Now(),
	}

	if m.conn != nil {
		ch := connectionHealth(m.conn)
		report.Connection = &ch
		report.SystemStatus = worst(report.SystemStatus, ch.Status)
	}

	if m.subs != nil {
		for _, st := range m.subs.Snapshot() {
			sh := subscriptionHealth(st)
			report.Subscriptions = append(report.Subscriptions, sh)
			// A failed subscription is the caller's to handle; it only degrades the client.
			if sh.Status != StatusHealthy {
				report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
			}
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func connectionHealth(src ConnectionSource) ConnectionHealth {
	stats := src.Monitor().Stats()
	ch := ConnectionHealth{
		Endpoint:       src.Endpoint(),
		Status:         StatusHealthy,
		Transport:      stats.Status.String(),
		ErrorRate:      stats.ErrorRate,
		AverageLatency: stats.AverageLatency,
		Requests:       stats.Requests,
		Failures:       stats.Failures,
	}
	switch stats.Status {
	case provider.StatusUnavailable:
		ch.Status = StatusCritical
	case provider.StatusDegraded, provider.StatusThrottled:
		ch.Status = StatusDegraded
	}
	return ch
}

func subscriptionHealth(st topic.Status) SubscriptionHealth {
	sh := SubscriptionHealth{
		ID:             st.ID,
		Cache:          st.Cache,
		Topic:          st.Topic,
		Status:         StatusHealthy,
		State:          st.State,
		Resubscribes:   st.Resubscribes,
		SequenceNumber: st.SequenceNumber,
		SequencePage:   st.SequencePage,
		Error:          st.Error,
		StateSince:     st.StateSince,
	}
	switch st.State {
	case topic.StateTerminated.String():
		if st.Error != "" {
			sh.Status = StatusCritical
		}
	case topic.StateConnecting.String(), topic.StateResubscribing.String():
		sh.Status = StatusDegraded
	}
	return sh
}

var severity = map[SystemStatus]int{
	StatusHealthy:  0,
	StatusDegraded: 1,
	StatusCritical: 2,
}

func worst(a, b SystemStatus) SystemStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
