package provider

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/infra/rpc/retry"
	"google.golang.org/grpc"
)

// Status represents the health state of the connection.
type Status int

const (
	StatusHealthy     Status = iota // Calls are succeeding
	StatusDegraded                  // Slow or failing often but working
	StatusThrottled                 // Server is rejecting with limit-exceeded
	StatusUnavailable               // Recent calls all failed
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// MonitorStats holds monitoring statistics for the connection.
type MonitorStats struct {
	Status              Status        `json:"status"`
	AverageLatency      time.Duration `json:"average_latency"`
	Requests            int           `json:"requests"`
	Failures            int           `json:"failures"`
	Throttled           int           `json:"throttled"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	ErrorRate           float64       `json:"error_rate"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastFailureAt       time.Time     `json:"last_failure_at"`
}

// Monitor tracks physical attempts on a connection.
type Monitor struct {
	mu sync.RWMutex

	// Response time tracking
	recentLatencies  []time.Duration
	maxLatencyWindow int

	// Outcome window for the error rate
	recentOutcomes []bool
	maxOutcomes    int

	requests            int
	failures            int
	throttled           int
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastThrottleAt      time.Time

	// Thresholds
	slowResponseThreshold time.Duration
	degradedErrorRate     float64
	unavailableAfter      int
	throttleCooldown      time.Duration

	now func() time.Time
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		recentOutcomes:        make([]bool, 0, 100),
		maxOutcomes:           100,
		slowResponseThreshold: 3 * time.Second,
		degradedErrorRate:     0.3,
		unavailableAfter:      5,
		throttleCooldown:      30 * time.Second,
		now:                   time.Now,
	}
}

// RecordSuccess records a successful attempt with its latency.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	m.consecutiveFailures = 0
	m.lastSuccessAt = m.now()

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
	m.pushOutcome(true)
}

// RecordFailure records a failed attempt.
func (m *Monitor) RecordFailure(err error) {
	reason := retry.FromError(err)
	if reason == domain.FailureCancelled {
		// Caller-side cancellation says nothing about the server.
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.requests++
	m.failures++
	m.consecutiveFailures++
	m.lastFailureAt = now
	if reason == domain.FailureLimitExceeded {
		m.throttled++
		m.lastThrottleAt = now
	}
	m.pushOutcome(false)
}

func (m *Monitor) pushOutcome(ok bool) {
	m.recentOutcomes = append(m.recentOutcomes, ok)
	if len(m.recentOutcomes) > m.maxOutcomes {
		m.recentOutcomes = m.recentOutcomes[1:]
	}
}

// Status returns the current status of the connection.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() Status {
	if m.consecutiveFailures >= m.unavailableAfter {
		return StatusUnavailable
	}
	if !m.lastThrottleAt.IsZero() && m.now().Sub(m.lastThrottleAt) < m.throttleCooldown {
		return StatusThrottled
	}
	if len(m.recentOutcomes) >= 10 && m.errorRateLocked() > m.degradedErrorRate {
		return StatusDegraded
	}
	if len(m.recentLatencies) > 10 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

func (m *Monitor) errorRateLocked() float64 {
	if len(m.recentOutcomes) == 0 {
		return 0
	}
	failed := 0
	for _, ok := range m.recentOutcomes {
		if !ok {
			failed++
		}
	}
	return float64(failed) / float64(len(m.recentOutcomes))
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MonitorStats{
		Status:              m.statusLocked(),
		AverageLatency:      m.averageLatencyLocked(),
		Requests:            m.requests,
		Failures:            m.failures,
		Throttled:           m.throttled,
		ConsecutiveFailures: m.consecutiveFailures,
		ErrorRate:           m.errorRateLocked(),
		LastSuccessAt:       m.lastSuccessAt,
		LastFailureAt:       m.lastFailureAt,
	}
}

// UnaryClientInterceptor records the outcome and latency of every unary call
// it wraps.
func (m *Monitor) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			m.RecordFailure(err)
			return err
		}
		m.RecordSuccess(time.Since(start))
		return nil
	}
}
