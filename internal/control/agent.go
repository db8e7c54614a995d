// Package control runs the long-lived cachekit agent: a client, a health
// server and a subscription per configured topic.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/cachekit"
	"github.com/vietddude/cachekit/internal/core/config"
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/health"
	"golang.org/x/sync/errgroup"
)

// Config holds the agent configuration.
type Config struct {
	App     config.AppConfig
	Sink    Sink // nil = LogSink on stdout
	Options []cachekit.Option
}

// Agent manages the client and subscription lifecycle.
type Agent struct {
	cfg          config.AppConfig
	client       *cachekit.Client
	healthServer *health.Server
	sink         Sink
	log          *slog.Logger

	mu     sync.Mutex
	subs   []*cachekit.Subscription
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewAgent creates the client and the health server. Nothing runs until Start.
func NewAgent(cfg Config) (*Agent, error) {
	client, err := cachekit.NewClient(cfg.App, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	sink := cfg.Sink
	if sink == nil {
		sink = NewLogSink(nil)
	}

	return &Agent{
		cfg:          cfg.App,
		client:       client,
		healthServer: health.NewServer(client.HealthMonitor(), cfg.App.Server.Port),
		sink:         sink,
		log:          slog.Default().With("component", "agent"),
	}, nil
}

// Client returns the agent's client.
func (a *Agent) Client() *cachekit.Client {
	return a.client
}

// Start subscribes to every configured topic and starts the health server.
// It returns once the subscriptions are running.
func (a *Agent) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	a.mu.Lock()
	a.cancel = cancel
	a.group = g
	a.mu.Unlock()

	g.Go(func() error {
		if err := a.healthServer.Start(); err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	for _, tc := range a.cfg.Topics {
		sub, err := a.client.Subscribe(ctx, tc.Cache, tc.Topic)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe to %s/%s: %w", tc.Cache, tc.Topic, err)
		}
		a.mu.Lock()
		a.subs = append(a.subs, sub)
		a.mu.Unlock()

		a.log.Info("Starting subscription", "cache", tc.Cache, "topic", tc.Topic, "id", sub.ID())
		g.Go(func() error {
			return a.consume(ctx, sub)
		})
	}
	return nil
}

// consume forwards events to the sink until the subscription ends. A terminal
// subscription error is reported but does not stop the other subscriptions.
func (a *Agent) consume(ctx context.Context, sub *cachekit.Subscription) error {
	key := sub.Key()
	for ev := range sub.Events(ctx) {
		if err := a.sink.Emit(ctx, key, ev); err != nil {
			a.log.Warn("Sink failed", "topic", key.String(), "error", err)
		}
		if ev.Kind() == domain.EventError {
			a.log.Error("Subscription terminated", "topic", key.String(), "error", sub.Err())
		}
	}
	return nil
}

// Stop closes the subscriptions, the client and the health server.
func (a *Agent) Stop(ctx context.Context) error {
	a.log.Info("Stopping agent...")

	a.mu.Lock()
	cancel, g := a.cancel, a.group
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var errs []error
	if err := a.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop health server: %w", err))
	}
	if err := a.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}
	if g != nil {
		if err := g.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	return errors.Join(errs...)
}
