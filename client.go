package cachekit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/cachekit/internal/core/clock"
	"github.com/vietddude/cachekit/internal/core/config"
	"github.com/vietddude/cachekit/internal/core/cursor"
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/core/worker"
	"github.com/vietddude/cachekit/internal/health"
	redisclient "github.com/vietddude/cachekit/internal/infra/redis"
	"github.com/vietddude/cachekit/internal/infra/rpc/executor"
	"github.com/vietddude/cachekit/internal/infra/rpc/provider"
	"github.com/vietddude/cachekit/internal/topic"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a resilient cache and pub/sub client. It is safe for concurrent use.
type Client struct {
	exec     *executor.Executor
	provider *provider.GRPCProvider
	topics   *topic.Manager
	health   *health.Monitor
	redis    *redisclient.Client
	log      *slog.Logger

	stopPruner context.CancelFunc
	workers    sync.WaitGroup
}

// NewClient wires the retry executor, the gRPC connection, the subscription
// manager and the cursor store described by cfg.
func NewClient(cfg config.AppConfig, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = clock.Real{}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	strategy := o.strategy
	if strategy == nil {
		s, err := cfg.Retry.Build(o.clock, o.eligibility)
		if err != nil {
			return nil, fmt.Errorf("failed to build retry strategy: %w", err)
		}
		strategy = s
	}

	c := &Client{log: o.logger}
	c.exec = executor.New(executor.Config{
		Strategy:     strategy,
		Clock:        o.clock,
		NewRequestID: o.newID,
		Logger:       o.logger,
	})

	p, err := provider.NewGRPCProvider(cfg.Transport, c.exec, o.logger, o.dialOptions...)
	if err != nil {
		return nil, err
	}
	c.provider = p

	store := o.store
	if store == nil {
		if cfg.Redis.Enabled() {
			rc, err := redisclient.NewClient(cfg.Redis)
			if err != nil {
				_ = p.Close()
				return nil, err
			}
			c.redis = rc
			store = rc
		} else {
			mem := cursor.NewMemoryStore()
			c.startPruner(mem, cfg.Cursor.Retention)
			store = mem
		}
	}

	c.topics, err = topic.NewManager(topic.ManagerConfig{
		Streamer: topic.StreamerFunc(c.openStream),
		Strategy: o.subscription,
		Store:    store,
		Clock:    o.clock,
		Config:   cfg.Subscription,
		Logger:   o.logger,
		NewID:    o.newID,
	})
	if err != nil {
		_ = c.closeTransport()
		return nil, err
	}

	c.health = health.NewMonitor(c.provider, c.topics.Registry(), cfg.Server.HealthCacheTTL)

	o.logger.Info("Cache client created",
		"endpoint", cfg.Transport.Endpoint,
		"retry", cfg.Retry.String(),
		"cursor_store", cursorStoreName(c.redis != nil, o.store != nil),
	)
	return c, nil
}

func (c *Client) startPruner(store *cursor.MemoryStore, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopPruner = cancel
	p := worker.NewPruner("memory-cursors", retention, store.PruneOlderThan)
	c.workers.Go(func() { p.Start(ctx) })
}

func cursorStoreName(redis, custom bool) string {
	switch {
	case custom:
		return "custom"
	case redis:
		return "redis"
	default:
		return "memory"
	}
}

// openStream adapts the provider to topic.Streamer. On error the interface
// value must be a literal nil, never a typed nil *ServerStream.
func (c *Client) openStream(ctx context.Context, req *structpb.Struct) (topic.FrameStream, error) {
	s, err := c.provider.OpenServerStream(ctx, provider.MethodSubscribe, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Execute runs op through the retry loop. The returned error is a *Error.
func (c *Client) Execute(ctx context.Context, op Operation) (any, error) {
	return c.exec.Execute(ctx, op)
}

func (c *Client) call(ctx context.Context, name, method string, req map[string]any) (*structpb.Struct, error) {
	msg, err := structpb.NewStruct(req)
	if err != nil {
		return nil, &domain.Error{Reason: domain.FailureBadRequest, Op: name, Message: err.Error(), Err: err}
	}
	result, err := c.exec.Execute(ctx, executor.Operation{
		Name: name,
		Kind: provider.KindOf(method),
		Invoke: func(ctx context.Context) (any, error) {
			return c.provider.Invoke(ctx, method, msg)
		},
	})
	if err != nil {
		return nil, err
	}
	return result.(*structpb.Struct), nil
}

func requireNames(op string, names ...string) error {
	for _, n := range names {
		if n == "" {
			return &domain.Error{
				Reason:  domain.FailureBadRequest,
				Op:      op,
				Message: "cache name and key are required",
			}
		}
	}
	return nil
}

// Get returns the value stored under key and whether it was found.
func (c *Client) Get(ctx context.Context, cacheName, key string) ([]byte, bool, error) {
	if err := requireNames("Get", cacheName, key); err != nil {
		return nil, false, err
	}
	reply, err := c.call(ctx, "Get", provider.MethodGet, map[string]any{
		"cache_name": cacheName,
		"key":        key,
	})
	if err != nil {
		return nil, false, err
	}

	fields := reply.GetFields()
	if !fields["found"].GetBoolValue() {
		return nil, false, nil
	}
	value, err := base64.StdEncoding.DecodeString(fields["value"].GetStringValue())
	if err != nil {
		return nil, false, &domain.Error{
			Reason:  domain.FailureInternal,
			Op:      "Get",
			Message: "malformed value in response",
			Err:     err,
		}
	}
	return value, true, nil
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Client) Set(ctx context.Context, cacheName, key string, value []byte, ttl time.Duration) error {
	if err := requireNames("Set", cacheName, key); err != nil {
		return err
	}
	_, err := c.call(ctx, "Set", provider.MethodSet, map[string]any{
		"cache_name": cacheName,
		"key":        key,
		"value":      base64.StdEncoding.EncodeToString(value),
		"ttl_ms":     ttl.Milliseconds(),
	})
	return err
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, cacheName, key string) error {
	if err := requireNames("Delete", cacheName, key); err != nil {
		return err
	}
	_, err := c.call(ctx, "Delete", provider.MethodDelete, map[string]any{
		"cache_name": cacheName,
		"key":        key,
	})
	return err
}

// Publish sends a text message to a topic. Publishes are never retried.
func (c *Client) Publish(ctx context.Context, cacheName, topicName, text string) error {
	return c.publish(ctx, cacheName, topicName, "text", text)
}

// PublishBinary sends a binary message to a topic.
func (c *Client) PublishBinary(ctx context.Context, cacheName, topicName string, value []byte) error {
	return c.publish(ctx, cacheName, topicName, "binary", base64.StdEncoding.EncodeToString(value))
}

func (c *Client) publish(ctx context.Context, cacheName, topicName, field, value string) error {
	if err := requireNames("Publish", cacheName, topicName); err != nil {
		return err
	}
	_, err := c.call(ctx, "Publish", provider.MethodPublish, map[string]any{
		"cache_name": cacheName,
		"topic":      topicName,
		field:        value,
	})
	return err
}

// Subscribe starts a resilient subscription. It does not wait for the stream;
// call WaitReady on the result to block until it is established.
func (c *Client) Subscribe(ctx context.Context, cacheName, topicName string) (*Subscription, error) {
	return c.topics.Subscribe(ctx, cacheName, topicName)
}

// Subscriptions returns the status of every open subscription.
func (c *Client) Subscriptions() []SubscriptionStatus {
	return c.topics.Registry().Snapshot()
}

// Health returns the aggregated health report.
func (c *Client) Health(ctx context.Context) health.HealthReport {
	return c.health.CheckHealth(ctx)
}

// HealthMonitor exposes the monitor for a health.Server.
func (c *Client) HealthMonitor() *health.Monitor {
	return c.health
}

// Close closes every subscription and the connection.
func (c *Client) Close() error {
	return errors.Join(c.topics.Close(), c.closeTransport())
}

func (c *Client) closeTransport() error {
	if c.stopPruner != nil {
		c.stopPruner()
	}
	c.workers.Wait()

	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	errs = append(errs, c.provider.Close())
	return errors.Join(errs...)
}
