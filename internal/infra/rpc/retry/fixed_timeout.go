package retry

import (
	"math/rand/v2"
	"time"

	"github.com/vietddude/cachekit/internal/core/clock"
)

const (
	DefaultRetryDelay             = 100 * time.Millisecond
	DefaultJitter                 = 0.2
	DefaultResponseDataReceivedTO = 1 * time.Second
)

// FixedTimeout retries eligible failures after a jittered constant delay for as
// long as the overall deadline allows. Each physical attempt is bounded by
// ResponseDataReceivedTimeout.
type FixedTimeout struct {
	RetryDelay                  time.Duration
	Jitter                      float64 // multiplicative, delay * [1-Jitter, 1+Jitter]
	ResponseDataReceivedTimeout time.Duration
	Eligibility                 EligibilityStrategy
	Clock                       clock.Clock
	Rand                        func() float64 // [0,1); defaults to math/rand/v2
}

// NewFixedTimeout creates a fixed-timeout strategy with default jitter and eligibility.
func NewFixedTimeout(retryDelay, responseDataReceivedTimeout time.Duration) *FixedTimeout {
	return &FixedTimeout{
		RetryDelay:                  retryDelay,
		Jitter:                      DefaultJitter,
		ResponseDataReceivedTimeout: responseDataReceivedTimeout,
		Eligibility:                 DefaultEligibility{},
		Clock:                       clock.Real{},
	}
}

func (s *FixedTimeout) AttemptTimeout() time.Duration {
	return s.ResponseDataReceivedTimeout
}

func (s *FixedTimeout) DetermineWhenToRetry(ac AttemptContext) Decision {
	if !eligibility(s.Eligibility).IsEligibleForRetry(ac.Reason, ac.Operation) {
		return NoRetry
	}

	delay := s.jittered()
	if left, ok := remaining(now(s.Clock), ac.Deadline); ok && delay > left {
		// The next attempt would start after the caller stopped waiting.
		return NoRetry
	}
	return RetryAfter(delay)
}

func (s *FixedTimeout) jittered() time.Duration {
	if s.RetryDelay <= 0 {
		return 0
	}
	factor := 1 - s.Jitter + 2*s.Jitter*random(s.Rand)
	return time.Duration(float64(s.RetryDelay) * factor)
}

func random(r func() float64) float64 {
	if r == nil {
		return rand.Float64()
	}
	return r()
}
