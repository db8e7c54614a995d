package topic

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/cachekit/internal/core/clock"
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/infra/rpc/retry"
)

// ManagerConfig holds the collaborators shared by every subscription.
type ManagerConfig struct {
	Streamer Streamer
	Strategy retry.SubscriptionStrategy // nil = fixed delay of Config.ResubscribeDelay
	Store    CursorStore                // nil = no persistence
	Clock    clock.Clock
	Config   Config
	Logger   *slog.Logger
	NewID    func() string
}

// Manager creates subscriptions and tracks the live ones.
type Manager struct {
	streamer Streamer
	strategy retry.SubscriptionStrategy
	store    CursorStore
	clock    clock.Clock
	cfg      Config
	log      *slog.Logger
	newID    func() string

	registry *Registry
}

// NewManager creates a subscription manager.
func NewManager(mc ManagerConfig) (*Manager, error) {
	if mc.Streamer == nil {
		return nil, errors.New("topic manager requires a streamer")
	}
	cfg := mc.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		streamer: mc.Streamer,
		strategy: mc.Strategy,
		store:    mc.Store,
		clock:    mc.Clock,
		cfg:      cfg,
		log:      mc.Logger,
		newID:    mc.NewID,
		registry: NewRegistry(),
	}
	if m.strategy == nil {
		m.strategy = retry.NewFixedDelaySubscription(cfg.ResubscribeDelay)
	}
	if m.clock == nil {
		m.clock = clock.Real{}
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m, nil
}

// Subscribe starts a subscription to topicName in cacheName. It returns as soon
// as the engine is running; use WaitReady to block until the stream is up.
// ctx bounds only the cursor lookup, not the subscription.
func (m *Manager) Subscribe(ctx context.Context, cacheName, topicName string) (*Subscription, error) {
	if cacheName == "" || topicName == "" {
		return nil, &domain.Error{
			Reason:  domain.FailureBadRequest,
			Op:      "Subscribe",
			Message: "cache name and topic name are required",
		}
	}
	key := domain.TopicKey{CacheName: cacheName, Topic: topicName}
	id := m.newID()
	log := m.log.With("component", "subscription", "subscription_id", id, "topic", key.String())

	cur := domain.Cursor{Topic: key}
	if m.store != nil {
		stored, ok, err := m.store.Load(ctx, key)
		switch {
		case err != nil:
			log.Warn("Failed to load topic cursor, starting from the live tail", "error", err)
		case ok:
			cur = stored
			cur.Topic = key
			log.Info("Resuming topic from stored cursor", "sequence", cur.SequenceNumber, "page", cur.SequencePage)
		}
	}

	now := m.clock.Now()
	subCtx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		id:       id,
		key:      key,
		cfg:      m.cfg,
		streamer: m.streamer,
		strategy: m.strategy,
		store:    m.store,
		clock:    m.clock,
		log:      log,
		newID:    m.newID,
		onClose:  m.registry.remove,

		events: make(chan domain.TopicEvent, m.cfg.BufferSize),
		ctx:    subCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),

		state:          StateConnecting,
		cursor:         cur,
		startedAt:      now,
		lastTransition: NewTransition(StateConnecting, StateConnecting, "subscribe", now),
	}
	m.registry.add(s)
	s.start()
	return s, nil
}

// Registry returns the set of open subscriptions.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Close closes every open subscription.
func (m *Manager) Close() error {
	for _, s := range m.registry.list() {
		_ = s.Close()
	}
	return nil
}

// Status is a point-in-time view of one subscription.
type Status struct {
	ID             string    `json:"id"`
	Cache          string    `json:"cache"`
	Topic          string    `json:"topic"`
	State          string    `json:"state"`
	Resubscribes   int       `json:"resubscribes"`
	SequenceNumber uint64    `json:"sequence_number"`
	SequencePage   uint64    `json:"sequence_page"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	StateSince     time.Time `json:"state_since"`
}

// Registry tracks subscriptions from Subscribe until Close. Terminated
// subscriptions stay listed, with their error, until closed.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

func (r *Registry) add(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.id] = s
}

func (r *Registry) remove(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, s.id)
}

func (r *Registry) list() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Len returns the number of tracked subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Snapshot returns the status of every tracked subscription, ordered by ID.
func (r *Registry) Snapshot() []Status {
	subs := r.list()
	out := make([]Status, 0, len(subs))
	for _, s := range subs {
		cur := s.Cursor()
		st := Status{
			ID:             s.id,
			Cache:          s.key.CacheName,
			Topic:          s.key.Topic,
			State:          s.State().String(),
			Resubscribes:   s.ResubscribeCount(),
			SequenceNumber: cur.SequenceNumber,
			SequencePage:   cur.SequencePage,
			StartedAt:      s.startedAt,
			StateSince:     s.LastTransition().Timestamp,
		}
		if err := s.Err(); err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b Status) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
