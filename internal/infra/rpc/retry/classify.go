package retry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vietddude/cachekit/internal/core/domain"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var codeReasons = map[codes.Code]domain.FailureReason{
	codes.Unavailable:        domain.FailureUnavailable,
	codes.Internal:           domain.FailureInternal,
	codes.DataLoss:           domain.FailureInternal,
	codes.Aborted:            domain.FailureInternal,
	codes.DeadlineExceeded:   domain.FailureTimeout,
	codes.PermissionDenied:   domain.FailurePermissionDenied,
	codes.Unauthenticated:    domain.FailureAuthentication,
	codes.NotFound:           domain.FailureNotFound,
	codes.Canceled:           domain.FailureCancelled,
	codes.ResourceExhausted:  domain.FailureLimitExceeded,
	codes.InvalidArgument:    domain.FailureBadRequest,
	codes.OutOfRange:         domain.FailureBadRequest,
	codes.Unimplemented:      domain.FailureBadRequest,
	codes.AlreadyExists:      domain.FailureAlreadyExists,
	codes.FailedPrecondition: domain.FailureFailedPrecondition,
	codes.Unknown:            domain.FailureUnknown,
}

// FromError classifies a transport error. Context errors take precedence over
// the gRPC status because the client, not the server, ended the attempt.
func FromError(err error) domain.FailureReason {
	if err == nil {
		return domain.FailureUnknown
	}

	var de *domain.Error
	if errors.As(err, &de) {
		return de.Reason
	}

	switch {
	case errors.Is(err, context.Canceled):
		return domain.FailureCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTimeout
	}

	st, ok := status.FromError(err)
	if !ok {
		return domain.FailureUnknown
	}
	if reason, ok := codeReasons[st.Code()]; ok {
		return reason
	}
	return domain.FailureUnknown
}

// ToError wraps the last failure of an operation into the terminal error type,
// carrying gRPC ErrorInfo details when present.
func ToError(op string, attempts int, reason domain.FailureReason, err error) *domain.Error {
	de := &domain.Error{
		Reason:   reason,
		Op:       op,
		Attempts: attempts,
		Err:      err,
	}
	if err == nil {
		return de
	}

	st, ok := status.FromError(err)
	if !ok {
		de.Message = err.Error()
		return de
	}

	de.Message = st.Message()
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			detail := fmt.Sprintf("Reason: %s, Domain: %s", info.Reason, info.Domain)
			if len(info.Metadata) > 0 {
				pairs := make([]string, 0, len(info.Metadata))
				for _, k := range slices.Sorted(maps.Keys(info.Metadata)) {
					pairs = append(pairs, fmt.Sprintf("%s: %s", k, info.Metadata[k]))
				}
				detail += ", Metadata: {" + strings.Join(pairs, ", ") + "}"
			}
			de.Details = append(de.Details, detail)
		} else {
			de.Details = append(de.Details, fmt.Sprintf("%+v", d))
		}
	}
	return de
}
