package retry

import (
	"math"
	"time"

	"github.com/vietddude/cachekit/internal/core/clock"
)

const (
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultGrowthFactor = 2.0
	DefaultMaxBackoff   = 5 * time.Second
)

// ExponentialBackoff grows the delay geometrically and draws the actual delay
// from [base(n), 3*base(n-1)]. The wide interval spreads a fleet of clients
// retrying against the same outage.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	GrowthFactor float64
	MaxBackoff   time.Duration
	MaxAttempts  int // 0 = bounded by the deadline only
	Eligibility  EligibilityStrategy
	Clock        clock.Clock
	Rand         func() float64
}

// NewExponentialBackoff creates a strategy with growth factor 2 and default eligibility.
func NewExponentialBackoff(initialDelay, maxBackoff time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: initialDelay,
		GrowthFactor: DefaultGrowthFactor,
		MaxBackoff:   maxBackoff,
		Eligibility:  DefaultEligibility{},
		Clock:        clock.Real{},
	}
}

func (s *ExponentialBackoff) DetermineWhenToRetry(ac AttemptContext) Decision {
	if !eligibility(s.Eligibility).IsEligibleForRetry(ac.Reason, ac.Operation) {
		return NoRetry
	}
	if s.MaxAttempts > 0 && ac.Attempt > s.MaxAttempts {
		return NoRetry
	}

	lo, hi := s.Bounds(ac.Attempt - 1)
	delay := lo + time.Duration(random(s.Rand)*float64(hi-lo))

	if left, ok := remaining(now(s.Clock), ac.Deadline); ok {
		if left <= 0 {
			return NoRetry
		}
		if delay > left {
			delay = left
		}
	}
	return RetryAfter(delay)
}

// Bounds returns the jitter interval for the 0-indexed retry n.
func (s *ExponentialBackoff) Bounds(n int) (time.Duration, time.Duration) {
	if n < 0 {
		n = 0
	}
	base := s.base(n)
	prev := s.InitialDelay
	if n > 0 {
		prev = s.base(n - 1)
	}
	hi := 3 * prev
	if hi < base {
		hi = base
	}
	return base, hi
}

func (s *ExponentialBackoff) base(n int) time.Duration {
	growth := s.GrowthFactor
	if growth < 1 {
		growth = DefaultGrowthFactor
	}
	delay := float64(s.InitialDelay) * math.Pow(growth, float64(n))
	if s.MaxBackoff > 0 && delay > float64(s.MaxBackoff) {
		delay = float64(s.MaxBackoff)
	}
	return time.Duration(delay)
}
