package retry

import (
	"fmt"
	"time"

	"github.com/vietddude/cachekit/internal/core/domain"
)

// AttemptContext describes a failed attempt. Attempt is the number of attempts
// made so far (1 after the first failure).
type AttemptContext struct {
	Operation domain.OperationKind
	Reason    domain.FailureReason
	Attempt   int
	Deadline  time.Time // zero means no overall deadline
}

// Decision is the outcome of a retry policy evaluation.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// NoRetry stops the retry loop; the last failure becomes the result.
var NoRetry = Decision{}

// RetryAfter schedules the next attempt after d.
func RetryAfter(d time.Duration) Decision {
	if d < 0 {
		d = 0
	}
	return Decision{Retry: true, Delay: d}
}

func (d Decision) String() string {
	if !d.Retry {
		return "no-retry"
	}
	return fmt.Sprintf("retry-after(%s)", d.Delay)
}

// Strategy is a unary retry policy. Implementations never panic; NoRetry is terminal.
type Strategy interface {
	DetermineWhenToRetry(ac AttemptContext) Decision
}

// AttemptTimeouter is implemented by strategies that bound each physical attempt.
// A timed-out attempt is classified as a retryable timeout.
type AttemptTimeouter interface {
	AttemptTimeout() time.Duration
}

// remaining returns the time left until deadline, and false when there is no deadline.
func remaining(now, deadline time.Time) (time.Duration, bool) {
	if deadline.IsZero() {
		return 0, false
	}
	return deadline.Sub(now), true
}
