package retry

import (
	"time"

	"github.com/vietddude/cachekit/internal/core/clock"
)

// FixedCount retries immediately up to MaxAttempts times.
//
// Zero-delay retries hammer a backend that is genuinely down, so keep
// MaxAttempts small (Config.Validate rejects values above maxFixedCountAttempts).
type FixedCount struct {
	MaxAttempts int
	Eligibility EligibilityStrategy
	Clock       clock.Clock
}

// NewFixedCount creates a fixed-count strategy with default eligibility.
func NewFixedCount(maxAttempts int) *FixedCount {
	return &FixedCount{
		MaxAttempts: maxAttempts,
		Eligibility: DefaultEligibility{},
		Clock:       clock.Real{},
	}
}

func (s *FixedCount) DetermineWhenToRetry(ac AttemptContext) Decision {
	if !eligibility(s.Eligibility).IsEligibleForRetry(ac.Reason, ac.Operation) {
		return NoRetry
	}
	if ac.Attempt > s.MaxAttempts {
		return NoRetry
	}
	if left, ok := remaining(now(s.Clock), ac.Deadline); ok && left <= 0 {
		return NoRetry
	}
	return RetryAfter(0)
}

func eligibility(e EligibilityStrategy) EligibilityStrategy {
	if e == nil {
		return DefaultEligibility{}
	}
	return e
}

func now(c clock.Clock) time.Time {
	if c == nil {
		return clock.Real{}.Now()
	}
	return c.Now()
}
