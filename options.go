package cachekit

import (
	"log/slog"

	"github.com/vietddude/cachekit/internal/core/clock"
	"google.golang.org/grpc"
)

// Option customises a Client.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	clock        clock.Clock
	strategy     RetryStrategy
	eligibility  EligibilityStrategy
	subscription SubscriptionStrategy
	store        CursorStore
	dialOptions  []grpc.DialOption
	newID        func() string
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces the wall clock used for delays and deadlines.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRetryStrategy overrides the strategy built from the retry configuration.
func WithRetryStrategy(s RetryStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithEligibility overrides the eligibility used by the configured retry strategy.
func WithEligibility(e EligibilityStrategy) Option {
	return func(o *options) { o.eligibility = e }
}

// WithSubscriptionStrategy overrides the fixed-delay resubscribe policy.
func WithSubscriptionStrategy(s SubscriptionStrategy) Option {
	return func(o *options) { o.subscription = s }
}

// WithCursorStore overrides the cursor store selected from the configuration.
func WithCursorStore(s CursorStore) Option {
	return func(o *options) { o.store = s }
}

// WithDialOptions appends gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOptions = append(o.dialOptions, opts...) }
}

// WithIDGenerator replaces the UUID generator used for request and subscription ids.
func WithIDGenerator(f func() string) Option {
	return func(o *options) { o.newID = f }
}
