package domain

// FailureReason classifies why a single attempt failed.
type FailureReason int

const (
	FailureUnknown            FailureReason = iota // Unrecognised transport failure
	FailureUnavailable                             // Service unavailable or stream dropped
	FailureInternal                                // Server-side internal error
	FailureTimeout                                 // Deadline or data-silence timeout
	FailurePermissionDenied                        // Caller lacks permission
	FailureNotFound                                // Cache or topic does not exist
	FailureAuthentication                          // Token rejected
	FailureCancelled                               // Caller cancelled
	FailureLimitExceeded                           // Quota or rate limit
	FailureBadRequest                              // Malformed request
	FailureAlreadyExists                           // Resource already exists
	FailureFailedPrecondition                      // Server state forbids the operation
)

var failureNames = map[FailureReason]string{
	FailureUnknown:            "unknown",
	FailureUnavailable:        "unavailable",
	FailureInternal:           "internal",
	FailureTimeout:            "timeout",
	FailurePermissionDenied:   "permission_denied",
	FailureNotFound:           "not_found",
	FailureAuthentication:     "authentication_failed",
	FailureCancelled:          "cancelled",
	FailureLimitExceeded:      "limit_exceeded",
	FailureBadRequest:         "bad_request",
	FailureAlreadyExists:      "already_exists",
	FailureFailedPrecondition: "failed_precondition",
}

func (r FailureReason) String() string {
	if name, ok := failureNames[r]; ok {
		return name
	}
	return "unknown"
}

// FailureCategory groups failure reasons by how callers should react to them.
type FailureCategory string

const (
	CategoryTransient    FailureCategory = "transient"
	CategoryClientFault  FailureCategory = "client_fault"
	CategorySecurity     FailureCategory = "security"
	CategoryCancellation FailureCategory = "cancellation"
	CategoryNotFound     FailureCategory = "not_found"
	CategoryUnknown      FailureCategory = "unknown"
)

// Category returns the error taxonomy bucket for the reason.
func (r FailureReason) Category() FailureCategory {
	switch r {
	case FailureUnavailable, FailureInternal, FailureTimeout:
		return CategoryTransient
	case FailureBadRequest, FailureLimitExceeded, FailureAlreadyExists, FailureFailedPrecondition:
		return CategoryClientFault
	case FailureAuthentication, FailurePermissionDenied:
		return CategorySecurity
	case FailureCancelled:
		return CategoryCancellation
	case FailureNotFound:
		return CategoryNotFound
	default:
		return CategoryUnknown
	}
}
