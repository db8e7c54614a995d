// Package executor runs one logical request as 1..N physical attempts under a
// retry strategy.
package executor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/cachekit/internal/core/clock"
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/infra/rpc/retry"
	"github.com/vietddude/cachekit/internal/metrics"
	"google.golang.org/grpc/metadata"
)

// Metadata keys attached to every attempt.
const (
	RequestIDHeader    = "x-request-id"
	RetryAttemptHeader = "x-retry-attempt"
)

// DefaultRequestTimeout bounds a logical request when the caller's context has no deadline.
const DefaultRequestTimeout = 5 * time.Second

// Operation is one logical request.
type Operation struct {
	// Name identifies the operation (e.g., "Get", "/cachekit.Cache/Set")
	Name string

	// Kind drives retry eligibility
	Kind domain.OperationKind

	// Invoke performs a single physical attempt
	Invoke func(ctx context.Context) (any, error)
}

// Config holds the executor's collaborators.
type Config struct {
	Strategy       retry.Strategy
	RequestTimeout time.Duration
	Clock          clock.Clock
	NewRequestID   func() string
	Logger         *slog.Logger
}

// Executor is safe for concurrent use; executions share no state.
type Executor struct {
	strategy       retry.Strategy
	requestTimeout time.Duration
	clock          clock.Clock
	newRequestID   func() string
	log            *slog.Logger
}

// New creates an executor. Zero-valued fields fall back to fixed-count(3),
// DefaultRequestTimeout, the wall clock, UUIDv4 ids and slog.Default().
func New(cfg Config) *Executor {
	e := &Executor{
		strategy:       cfg.Strategy,
		requestTimeout: cfg.RequestTimeout,
		clock:          cfg.Clock,
		newRequestID:   cfg.NewRequestID,
		log:            cfg.Logger,
	}
	if e.clock == nil {
		e.clock = clock.Real{}
	}
	if e.strategy == nil {
		e.strategy = &retry.FixedCount{MaxAttempts: 3, Eligibility: retry.DefaultEligibility{}, Clock: e.clock}
	}
	if e.requestTimeout <= 0 {
		e.requestTimeout = DefaultRequestTimeout
	}
	if e.newRequestID == nil {
		e.newRequestID = uuid.NewString
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("component", "executor")
	return e
}

// Execute runs op until it succeeds, fails with a non-retryable error, or the
// strategy gives up. The returned error is always a *domain.Error carrying the
// last attempt's failure.
func (e *Executor) Execute(ctx context.Context, op Operation) (any, error) {
	timeout := e.requestTimeout
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); left < timeout {
			timeout = left
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Deadline is expressed on the executor's clock so strategies can compare it with Now.
	start := e.clock.Now()
	deadline := start.Add(timeout)

	requestID := e.newRequestID()
	ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, requestID)

	defer func() {
		metrics.RequestLatency.WithLabelValues(op.Name).Observe(e.clock.Now().Sub(start).Seconds())
	}()

	for attempt := 1; ; attempt++ {
		result, err := e.attempt(ctx, op, attempt)
		if err == nil {
			metrics.RequestAttemptsTotal.WithLabelValues(op.Name, "success").Inc()
			return result, nil
		}
		metrics.RequestAttemptsTotal.WithLabelValues(op.Name, "failure").Inc()

		reason := retry.FromError(err)
		if ctx.Err() != nil {
			// The caller cancelled or the overall deadline elapsed mid-attempt.
			reason = retry.FromError(ctx.Err())
			return nil, e.fail(op, attempt, reason, err, requestID)
		}

		decision := e.strategy.DetermineWhenToRetry(retry.AttemptContext{
			Operation: op.Kind,
			Reason:    reason,
			Attempt:   attempt,
			Deadline:  deadline,
		})
		if !decision.Retry {
			return nil, e.fail(op, attempt, reason, err, requestID)
		}

		metrics.RetriesTotal.WithLabelValues(op.Name, reason.String()).Inc()
		e.log.Debug("Retrying request",
			"operation", op.Name,
			"request_id", requestID,
			"attempt", attempt,
			"reason", reason,
			"delay", decision.Delay,
		)

		if err := e.clock.Sleep(ctx, decision.Delay); err != nil {
			return nil, e.fail(op, attempt, retry.FromError(err), err, requestID)
		}
	}
}

func (e *Executor) attempt(ctx context.Context, op Operation, attempt int) (any, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, RetryAttemptHeader, strconv.Itoa(attempt))

	if t, ok := e.strategy.(retry.AttemptTimeouter); ok && t.AttemptTimeout() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.AttemptTimeout())
		defer cancel()
	}
	return op.Invoke(ctx)
}

func (e *Executor) fail(
	op Operation,
	attempts int,
	reason domain.FailureReason,
	err error,
	requestID string,
) error {
	metrics.RequestFailuresTotal.WithLabelValues(op.Name, reason.String()).Inc()

	level := slog.LevelWarn
	if reason == domain.FailureCancelled {
		level = slog.LevelDebug
	}
	e.log.Log(context.Background(), level, "Request failed",
		"operation", op.Name,
		"request_id", requestID,
		"attempts", attempts,
		"reason", reason,
		"error", err,
	)
	return retry.ToError(op.Name, attempts, reason, err)
}

// RequestID returns the correlation id attached to an outgoing context, if any.
func RequestID(ctx context.Context) string {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(RequestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

func hasRequestID(ctx context.Context) bool {
	return RequestID(ctx) != ""
}
