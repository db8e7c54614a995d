// Package cachekit is a resilient client for a gRPC cache and pub/sub service.
//
// It wraps every unary call in a retry loop driven by a pluggable strategy and
// keeps topic subscriptions alive across stream failures:
//   - Failure classification from gRPC status codes
//   - Fixed-count, fixed-timeout and exponential backoff retry strategies
//   - Request correlation ids and attempt headers on every physical attempt
//   - Automatic resubscription that resumes after the last seen sequence number
//   - Optional resume cursor persistence (memory or Redis)
//   - Health and Prometheus endpoints
//
// # Quick Start
//
//	cfg, _ := config.Load("config.yaml")
//	client, err := cachekit.NewClient(*cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	_ = client.Set(ctx, "default", "greeting", []byte("hello"), time.Minute)
//	value, found, err := client.Get(ctx, "default", "greeting")
//
// # Subscriptions
//
//	sub, err := client.Subscribe(ctx, "default", "orders")
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//
//	for ev := range sub.Events(ctx) {
//	    switch e := ev.(type) {
//	    case cachekit.TopicMessage:
//	        handle(e.Value())
//	    case cachekit.TopicError:
//	        log.Println("subscription ended:", e.Err)
//	    }
//	}
//
// Most types are re-exported at the root level for convenience.
package cachekit

import (
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/infra/rpc/executor"
	"github.com/vietddude/cachekit/internal/infra/rpc/retry"
	"github.com/vietddude/cachekit/internal/topic"
)

// =============================================================================
// Re-exported types from domain package
// =============================================================================

// FailureReason classifies why an attempt failed.
type FailureReason = domain.FailureReason

// OperationKind identifies the logical RPC an attempt belongs to.
type OperationKind = domain.OperationKind

// Error is the terminal failure of an operation or subscription.
type Error = domain.Error

// TopicEvent is one item produced by a subscription.
type TopicEvent = domain.TopicEvent

// TopicMessage is a value published to a topic.
type TopicMessage = domain.TopicMessage

// Heartbeat is a keep-alive frame.
type Heartbeat = domain.Heartbeat

// Discontinuity signals skipped messages.
type Discontinuity = domain.Discontinuity

// TopicError is the terminal event of a subscription.
type TopicError = domain.TopicError

// Cursor is a topic resume position.
type Cursor = domain.Cursor

// Failure reasons.
const (
	FailureUnknown            = domain.FailureUnknown
	FailureUnavailable        = domain.FailureUnavailable
	FailureInternal           = domain.FailureInternal
	FailureTimeout            = domain.FailureTimeout
	FailurePermissionDenied   = domain.FailurePermissionDenied
	FailureNotFound           = domain.FailureNotFound
	FailureAuthentication     = domain.FailureAuthentication
	FailureCancelled          = domain.FailureCancelled
	FailureLimitExceeded      = domain.FailureLimitExceeded
	FailureBadRequest         = domain.FailureBadRequest
	FailureAlreadyExists      = domain.FailureAlreadyExists
	FailureFailedPrecondition = domain.FailureFailedPrecondition
)

// Operation kinds.
const (
	OperationRead       = domain.OperationRead
	OperationWrite      = domain.OperationWrite
	OperationBatchRead  = domain.OperationBatchRead
	OperationBatchWrite = domain.OperationBatchWrite
	OperationAdmin      = domain.OperationAdmin
	OperationSubscribe  = domain.OperationSubscribe
	OperationPublish    = domain.OperationPublish
	OperationMutate     = domain.OperationMutate
)

// ReasonOf extracts the failure reason from an error chain.
func ReasonOf(err error) FailureReason {
	return domain.ReasonOf(err)
}

// =============================================================================
// Re-exported types from retry package
// =============================================================================

// RetryStrategy is a unary retry policy.
type RetryStrategy = retry.Strategy

// AttemptContext describes a failed attempt.
type AttemptContext = retry.AttemptContext

// RetryDecision is the outcome of a retry policy evaluation.
type RetryDecision = retry.Decision

// EligibilityStrategy decides whether a failure may be retried.
type EligibilityStrategy = retry.EligibilityStrategy

// SubscriptionStrategy decides whether and when to resubscribe.
type SubscriptionStrategy = retry.SubscriptionStrategy

// FixedCount retries immediately up to MaxAttempts.
type FixedCount = retry.FixedCount

// FixedTimeout retries with a jittered delay until the request deadline.
type FixedTimeout = retry.FixedTimeout

// ExponentialBackoff retries with decorrelated exponential delays.
type ExponentialBackoff = retry.ExponentialBackoff

// RetryConfig selects and tunes a unary retry strategy.
type RetryConfig = retry.Config

// =============================================================================
// Re-exported types from executor and topic packages
// =============================================================================

// Operation is one logical request run by Client.Execute.
type Operation = executor.Operation

// Subscription is a resilient topic subscription.
type Subscription = topic.Subscription

// SubscriptionState is the engine state of a subscription.
type SubscriptionState = topic.State

// SubscriptionStatus is a point-in-time view of a subscription.
type SubscriptionStatus = topic.Status

// SubscriptionConfig tunes subscriptions.
type SubscriptionConfig = topic.Config

// CursorStore persists topic resume positions.
type CursorStore = topic.CursorStore

// ErrSubscriptionClosed is returned by WaitReady after Close.
var ErrSubscriptionClosed = topic.ErrSubscriptionClosed
