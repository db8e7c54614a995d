package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vietddude/cachekit/internal/core/domain"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		expect domain.FailureReason
	}{
		{status.Error(codes.Unavailable, "down"), domain.FailureUnavailable},
		{status.Error(codes.Internal, "boom"), domain.FailureInternal},
		{status.Error(codes.DeadlineExceeded, "slow"), domain.FailureTimeout},
		{status.Error(codes.PermissionDenied, "no"), domain.FailurePermissionDenied},
		{status.Error(codes.Unauthenticated, "bad token"), domain.FailureAuthentication},
		{status.Error(codes.NotFound, "no cache"), domain.FailureNotFound},
		{status.Error(codes.Canceled, "bye"), domain.FailureCancelled},
		{status.Error(codes.ResourceExhausted, "limit"), domain.FailureLimitExceeded},
		{status.Error(codes.InvalidArgument, "bad key"), domain.FailureBadRequest},
		{status.Error(codes.AlreadyExists, "dup"), domain.FailureAlreadyExists},
		{status.Error(codes.FailedPrecondition, "state"), domain.FailureFailedPrecondition},
		{status.Error(codes.Unknown, "?"), domain.FailureUnknown},
		{context.Canceled, domain.FailureCancelled},
		{fmt.Errorf("attempt: %w", context.DeadlineExceeded), domain.FailureTimeout},
		{errors.New("connection reset by peer"), domain.FailureUnknown},
		{&domain.Error{Reason: domain.FailureNotFound}, domain.FailureNotFound},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expect, FromError(tt.err), "FromError(%v)", tt.err)
	}
}

func TestToError_WithoutDetails(t *testing.T) {
	err := status.Error(codes.Unavailable, "server unavailable")

	de := ToError("Get", 4, domain.FailureUnavailable, err)
	require.Equal(t, domain.FailureUnavailable, de.Reason)
	require.Equal(t, 4, de.Attempts)
	require.Equal(t, "server unavailable", de.Message)
	require.Empty(t, de.Details)
	require.ErrorIs(t, de, err)
	require.Equal(t, "Get: unavailable after 4 attempts: server unavailable", de.Error())
}

func TestToError_WithDetails(t *testing.T) {
	st := status.New(codes.PermissionDenied, "token lacks topic scope")
	stWithDetails, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   "TOPIC_SCOPE",
		Domain:   "cachekit.dev",
		Metadata: map[string]string{"topic": "orders", "cache": "default"},
	})
	require.NoError(t, err)

	de := ToError("Subscribe", 1, domain.FailurePermissionDenied, stWithDetails.Err())
	require.Equal(t,
		[]string{"Reason: TOPIC_SCOPE, Domain: cachekit.dev, Metadata: {cache: default, topic: orders}"},
		de.Details)
	require.Equal(t, domain.FailurePermissionDenied, domain.ReasonOf(de))
}

func TestToError_PlainError(t *testing.T) {
	de := ToError("Set", 1, domain.FailureUnknown, errors.New("broken pipe"))
	require.Equal(t, "Set: unknown: broken pipe", de.Error())
}
