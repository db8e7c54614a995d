// Package retry decides whether and when a failed attempt is tried again.
//
// This package contains:
//   - EligibilityStrategy: (failure reason, operation kind) -> retryable
//   - Strategy: unary retry policies (fixed count, fixed timeout, exponential backoff)
//   - SubscriptionStrategy: resubscribe policy for topic streams
//   - FromError: gRPC status -> failure reason classification
package retry

import "github.com/vietddude/cachekit/internal/core/domain"

// EligibilityStrategy decides whether a failure may be retried for an operation.
type EligibilityStrategy interface {
	IsEligibleForRetry(reason domain.FailureReason, op domain.OperationKind) bool
}

// EligibilityFunc adapts a function to EligibilityStrategy.
type EligibilityFunc func(reason domain.FailureReason, op domain.OperationKind) bool

func (f EligibilityFunc) IsEligibleForRetry(reason domain.FailureReason, op domain.OperationKind) bool {
	return f(reason, op)
}

// DefaultEligibility retries transient infrastructure failures of idempotent operations.
type DefaultEligibility struct{}

func (DefaultEligibility) IsEligibleForRetry(reason domain.FailureReason, op domain.OperationKind) bool {
	// Side effects of a publish or increment must not be duplicated.
	if !op.Idempotent() {
		return false
	}
	switch reason {
	case domain.FailureUnavailable, domain.FailureInternal, domain.FailureTimeout:
		return true
	default:
		return false
	}
}

// subscriptionDenied are the reasons a dropped stream is never reopened for.
var subscriptionDenied = map[domain.FailureReason]bool{
	domain.FailureAuthentication:     true,
	domain.FailurePermissionDenied:   true,
	domain.FailureNotFound:           true,
	domain.FailureCancelled:          true,
	domain.FailureBadRequest:         true,
	domain.FailureLimitExceeded:      true,
	domain.FailureAlreadyExists:      true,
	domain.FailureFailedPrecondition: true,
}

// SubscriptionEligibility allows every failure outside the deny-list, unknown
// included: giving up on an idle background subscription costs more than retrying it.
type SubscriptionEligibility struct{}

func (SubscriptionEligibility) IsEligibleForRetry(reason domain.FailureReason, _ domain.OperationKind) bool {
	return !subscriptionDenied[reason]
}
