package retry

import (
	"fmt"
	"time"

	"github.com/vietddude/cachekit/internal/core/domain"
)

// DefaultResubscribeDelay is the pause between a dropped stream and the next subscribe.
const DefaultResubscribeDelay = 500 * time.Millisecond

// SubscriptionDecision is the outcome of a resubscribe policy evaluation.
type SubscriptionDecision struct {
	Resubscribe bool
	Delay       time.Duration
}

// DoNotResubscribe terminates the subscription.
var DoNotResubscribe = SubscriptionDecision{}

// ResubscribeAfter reopens the stream after d.
func ResubscribeAfter(d time.Duration) SubscriptionDecision {
	if d < 0 {
		d = 0
	}
	return SubscriptionDecision{Resubscribe: true, Delay: d}
}

func (d SubscriptionDecision) String() string {
	if !d.Resubscribe {
		return "do-not-resubscribe"
	}
	return fmt.Sprintf("resubscribe-after(%s)", d.Delay)
}

// SubscriptionStrategy decides whether a dropped topic stream is reopened.
// There is no attempt counter: a subscription retries for as long as failures are eligible.
type SubscriptionStrategy interface {
	DetermineWhenToResubscribe(reason domain.FailureReason) SubscriptionDecision
}

// FixedDelaySubscription resubscribes after a constant delay when eligible.
type FixedDelaySubscription struct {
	Delay       time.Duration
	Eligibility EligibilityStrategy
}

// NewFixedDelaySubscription creates the default subscription strategy.
func NewFixedDelaySubscription(delay time.Duration) *FixedDelaySubscription {
	return &FixedDelaySubscription{
		Delay:       delay,
		Eligibility: SubscriptionEligibility{},
	}
}

func (s *FixedDelaySubscription) DetermineWhenToResubscribe(reason domain.FailureReason) SubscriptionDecision {
	e := s.Eligibility
	if e == nil {
		e = SubscriptionEligibility{}
	}
	if !e.IsEligibleForRetry(reason, domain.OperationSubscribe) {
		return DoNotResubscribe
	}
	return ResubscribeAfter(s.Delay)
}
