package retry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vietddude/cachekit/internal/core/domain"
)

var allReasons = []domain.FailureReason{
	domain.FailureUnknown,
	domain.FailureUnavailable,
	domain.FailureInternal,
	domain.FailureTimeout,
	domain.FailurePermissionDenied,
	domain.FailureNotFound,
	domain.FailureAuthentication,
	domain.FailureCancelled,
	domain.FailureLimitExceeded,
	domain.FailureBadRequest,
	domain.FailureAlreadyExists,
	domain.FailureFailedPrecondition,
}

var allOperations = []domain.OperationKind{
	domain.OperationRead,
	domain.OperationWrite,
	domain.OperationBatchRead,
	domain.OperationBatchWrite,
	domain.OperationAdmin,
	domain.OperationSubscribe,
	domain.OperationPublish,
	domain.OperationMutate,
}

func TestDefaultEligibility(t *testing.T) {
	transient := map[domain.FailureReason]bool{
		domain.FailureUnavailable: true,
		domain.FailureInternal:    true,
		domain.FailureTimeout:     true,
	}

	e := DefaultEligibility{}
	for _, op := range allOperations {
		for _, reason := range allReasons {
			want := op.Idempotent() && transient[reason]
			require.Equal(t, want, e.IsEligibleForRetry(reason, op), "reason=%s op=%s", reason, op)
		}
	}
}

func TestDefaultEligibility_NeverRetriesPublish(t *testing.T) {
	e := DefaultEligibility{}
	for _, reason := range allReasons {
		require.False(t, e.IsEligibleForRetry(reason, domain.OperationPublish), reason.String())
		require.False(t, e.IsEligibleForRetry(reason, domain.OperationMutate), reason.String())
	}
}

func TestSubscriptionEligibility(t *testing.T) {
	e := SubscriptionEligibility{}

	for _, reason := range []domain.FailureReason{
		domain.FailureAuthentication,
		domain.FailurePermissionDenied,
		domain.FailureNotFound,
		domain.FailureCancelled,
		domain.FailureBadRequest,
		domain.FailureLimitExceeded,
	} {
		require.False(t, e.IsEligibleForRetry(reason, domain.OperationSubscribe), reason.String())
	}

	for _, reason := range []domain.FailureReason{
		domain.FailureUnavailable,
		domain.FailureInternal,
		domain.FailureTimeout,
		domain.FailureUnknown,
	} {
		require.True(t, e.IsEligibleForRetry(reason, domain.OperationSubscribe), reason.String())
	}
}

func TestEligibilityFunc_Override(t *testing.T) {
	onlyNotFound := EligibilityFunc(func(reason domain.FailureReason, _ domain.OperationKind) bool {
		return reason == domain.FailureNotFound
	})

	s := NewFixedCount(2)
	s.Eligibility = onlyNotFound

	require.Equal(t, RetryAfter(0), s.DetermineWhenToRetry(AttemptContext{
		Operation: domain.OperationRead,
		Reason:    domain.FailureNotFound,
		Attempt:   1,
	}))
	require.Equal(t, NoRetry, s.DetermineWhenToRetry(AttemptContext{
		Operation: domain.OperationRead,
		Reason:    domain.FailureUnavailable,
		Attempt:   1,
	}))
}
