package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the terminal, user-visible failure of an operation or subscription.
// Intermediate attempt failures are never surfaced; Err holds the last one.
type Error struct {
	Reason   FailureReason
	Op       string
	Attempts int
	Message  string
	Details  []string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Reason)
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Details, ";"))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from an error chain.
func ReasonOf(err error) FailureReason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return FailureUnknown
}
