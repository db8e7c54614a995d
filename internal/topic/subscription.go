package topic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/cachekit/internal/core/clock"
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/infra/rpc/executor"
	"github.com/vietddude/cachekit/internal/infra/rpc/retry"
	"github.com/vietddude/cachekit/internal/metrics"
	"google.golang.org/grpc/metadata"
)

const cursorSaveTimeout = 2 * time.Second

var (
	errConnectTimeout   = errors.New("no frame received before the connect timeout")
	errHeartbeatSilence = errors.New("no frame received before the heartbeat timeout")
	errStreamEnded      = errors.New("server closed the stream")
)

// streamFailure is why one stream period ended.
type streamFailure struct {
	reason domain.FailureReason
	err    error
	fatal  bool // skip the strategy
}

// Subscription is a live topic subscription. All state is written by the
// engine goroutine; accessors are safe for concurrent use.
//
// Events and Messages are meant for a single consumer. Concurrent enumerators
// split the events between them.
type Subscription struct {
	id  string
	key domain.TopicKey
	cfg Config

	streamer Streamer
	strategy retry.SubscriptionStrategy
	store    CursorStore
	clock    clock.Clock
	log      *slog.Logger
	newID    func() string
	onClose  func(*Subscription)

	events    chan domain.TopicEvent
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once

	pendingMu sync.Mutex
	pending   domain.TopicEvent

	mu             sync.RWMutex
	state          State
	established    bool
	cursor         domain.Cursor
	resubscribes   int
	err            *domain.Error
	startedAt      time.Time
	lastTransition Transition
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() string { return s.id }

// Key returns the subscribed topic.
func (s *Subscription) Key() domain.TopicKey { return s.key }

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Cursor returns the current resume position.
func (s *Subscription) Cursor() domain.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// ResubscribeCount returns how many times the stream has been reopened.
func (s *Subscription) ResubscribeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resubscribes
}

// LastTransition returns the most recent state change.
func (s *Subscription) LastTransition() Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTransition
}

// Err returns the terminal error once the subscription has failed, nil otherwise.
// Closing a subscription is not an error.
func (s *Subscription) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Done is closed when the engine goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// WaitReady blocks until the first frame arrives, the subscription ends or ctx
// is done.
func (s *Subscription) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
	}
	if err := s.Err(); err != nil {
		return err
	}
	if s.ctx.Err() != nil {
		return ErrSubscriptionClosed
	}
	return nil
}

// Events yields every event in order. The sequence ends after a TopicError,
// when ctx is done or when the subscription is closed.
func (s *Subscription) Events(ctx context.Context) iter.Seq[domain.TopicEvent] {
	return func(yield func(domain.TopicEvent) bool) {
		for {
			if ctx.Err() != nil || s.ctx.Err() != nil {
				return
			}
			ev, ok := s.takePending()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-s.ctx.Done():
					return
				case ev, ok = <-s.events:
					if !ok {
						return
					}
				}
				if s.ctx.Err() != nil {
					return
				}
				if ctx.Err() != nil {
					// Received as the consumer gave up; keep it for the next enumerator.
					s.putPending(ev)
					return
				}
			}
			if !yield(ev) || ev.Kind() == domain.EventError {
				return
			}
		}
	}
}

func (s *Subscription) takePending() (domain.TopicEvent, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	ev := s.pending
	s.pending = nil
	return ev, ev != nil
}

func (s *Subscription) putPending(ev domain.TopicEvent) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending = ev
}

// Messages yields only published messages. A terminal error ends the sequence
// without being yielded; check Err afterwards.
func (s *Subscription) Messages(ctx context.Context) iter.Seq[domain.TopicMessage] {
	return func(yield func(domain.TopicMessage) bool) {
		for ev := range s.Events(ctx) {
			msg, ok := ev.(domain.TopicMessage)
			if !ok {
				continue
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// Close stops the subscription from any state and waits for the engine to
// exit. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		if s.onClose != nil {
			s.onClose(s)
		}
	})
	<-s.done
	return nil
}

func (s *Subscription) start() {
	metrics.ActiveSubscriptions.Inc()
	go s.run()
}

func (s *Subscription) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.markReady()
	defer metrics.ActiveSubscriptions.Dec()

	s.log.Debug("Subscription started", "resume_sequence", s.Cursor().SequenceNumber)

	for first := true; ; first = false {
		f := s.streamOnce(first)
		if s.ctx.Err() != nil {
			s.setState(StateTerminated, "closed")
			return
		}
		if f.fatal {
			s.terminate(f)
			return
		}

		s.setState(StateResubscribing, f.reason.String())
		decision := s.strategy.DetermineWhenToResubscribe(f.reason)
		if !decision.Resubscribe {
			s.terminate(f)
			return
		}

		s.mu.Lock()
		s.resubscribes++
		s.mu.Unlock()
		metrics.ResubscriptionsTotal.WithLabelValues(s.key.CacheName, f.reason.String()).Inc()

		s.log.Info("Resubscribing to topic",
			"reason", f.reason,
			"delay", decision.Delay,
			"error", f.err,
		)

		if err := s.clock.Sleep(s.ctx, decision.Delay); err != nil {
			s.setState(StateTerminated, "closed")
			return
		}
		s.setState(StateConnecting, "resubscribe")
	}
}

// streamOnce runs one stream period from open to failure. Only the first
// stream of a subscription is bounded by the connect timeout.
func (s *Subscription) streamOnce(first bool) streamFailure {
	ctx, cancel := context.WithCancelCause(s.ctx)
	defer cancel(nil)

	var connectTimer *time.Timer
	if first && s.cfg.ConnectTimeout > 0 {
		connectTimer = time.AfterFunc(s.cfg.ConnectTimeout, func() { cancel(errConnectTimeout) })
		defer connectTimer.Stop()
	}

	ctx = metadata.AppendToOutgoingContext(ctx, executor.RequestIDHeader, s.newID())
	stream, err := s.streamer.OpenStream(ctx, SubscribeRequest(s.key, s.Cursor()))
	if err != nil {
		return s.classify(ctx, err)
	}

	var watchdog *time.Timer
	if hb := s.cfg.HeartbeatTimeout; hb > 0 {
		watchdog = time.AfterFunc(hb, func() { cancel(errHeartbeatSilence) })
		defer watchdog.Stop()
	}

	for {
		// Silence only counts while waiting on the server, not while a slow
		// consumer holds up emit.
		if watchdog != nil {
			watchdog.Reset(s.cfg.HeartbeatTimeout)
		}
		frame, err := stream.Recv()
		if err != nil {
			return s.classify(ctx, err)
		}
		if watchdog != nil {
			watchdog.Stop()
		}
		if s.State() == StateConnecting {
			if connectTimer != nil {
				connectTimer.Stop()
			}
			s.onEstablished()
		}

		ev, err := decodeFrame(frame)
		if err != nil {
			if errors.Is(err, errUnknownFrame) {
				s.log.Debug("Skipping unknown frame", "fields", len(frame.GetFields()))
				continue
			}
			return streamFailure{reason: domain.FailureInternal, err: err}
		}

		s.advance(ev)
		if !s.emit(ev) {
			return streamFailure{reason: domain.FailureCancelled, err: ErrSubscriptionClosed}
		}
	}
}

func (s *Subscription) classify(ctx context.Context, err error) streamFailure {
	cause := context.Cause(ctx)
	switch {
	case s.ctx.Err() != nil:
		return streamFailure{reason: domain.FailureCancelled, err: ErrSubscriptionClosed}
	case errors.Is(cause, errConnectTimeout):
		// The timer can fire just as the first frame arrives.
		return streamFailure{reason: domain.FailureTimeout, err: errConnectTimeout, fatal: !s.isEstablished()}
	case errors.Is(cause, errHeartbeatSilence):
		return streamFailure{reason: domain.FailureTimeout, err: errHeartbeatSilence}
	case errors.Is(err, io.EOF):
		return streamFailure{reason: domain.FailureUnavailable, err: errStreamEnded}
	default:
		return streamFailure{reason: retry.FromError(err), err: err}
	}
}

func (s *Subscription) onEstablished() {
	s.mu.Lock()
	first := !s.established
	s.established = true
	s.mu.Unlock()

	s.setState(StateStreaming, "first frame")
	if first {
		s.markReady()
		s.log.Debug("Subscription established")
	}
}

func (s *Subscription) isEstablished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.established
}

func (s *Subscription) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// advance moves the resume position past ev and persists it.
func (s *Subscription) advance(ev domain.TopicEvent) {
	s.mu.Lock()
	switch e := ev.(type) {
	case domain.TopicMessage:
		s.cursor.SequenceNumber = e.SequenceNumber
		s.cursor.SequencePage = e.SequencePage
	case domain.Discontinuity:
		s.log.Info("Topic discontinuity",
			"last_sequence", e.LastSequence,
			"new_sequence", e.NewSequence,
			"new_page", e.NewPage,
		)
		s.cursor.SequenceNumber = e.NewSequence
		s.cursor.SequencePage = e.NewPage
	default:
		s.mu.Unlock()
		return
	}
	s.cursor.UpdatedAt = s.clock.Now()
	cur := s.cursor
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, cursorSaveTimeout)
	defer cancel()
	if err := s.store.Save(ctx, cur); err != nil {
		s.log.Warn("Failed to save topic cursor", "sequence", cur.SequenceNumber, "error", err)
	}
}

// emit hands ev to consumers, blocking while the buffer is full. It returns
// false when the subscription was closed first.
func (s *Subscription) emit(ev domain.TopicEvent) bool {
	select {
	case s.events <- ev:
		metrics.TopicEventsTotal.WithLabelValues(s.key.CacheName, string(ev.Kind())).Inc()
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Subscription) terminate(f streamFailure) {
	s.mu.Lock()
	attempts := s.resubscribes + 1
	s.mu.Unlock()

	derr := retry.ToError("Subscribe", attempts, f.reason, f.err)

	s.mu.Lock()
	s.err = derr
	s.mu.Unlock()

	s.setState(StateTerminated, f.reason.String())
	metrics.SubscriptionTerminationsTotal.WithLabelValues(s.key.CacheName, f.reason.String()).Inc()

	level := slog.LevelWarn
	if f.reason == domain.FailureCancelled {
		level = slog.LevelDebug
	}
	s.log.Log(context.Background(), level, "Subscription terminated", "reason", f.reason, "error", f.err)

	s.emit(domain.TopicError{Err: derr})
}

// transition moves the state machine, rejecting moves not in ValidTransitions.
func (s *Subscription) transition(to State, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if from == to {
		return nil
	}
	t := NewTransition(from, to, reason, s.clock.Now())
	if !t.IsValid() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.state = to
	s.lastTransition = t
	return nil
}

func (s *Subscription) setState(to State, reason string) {
	from := s.State()
	if err := s.transition(to, reason); err != nil {
		s.log.Error("Rejected subscription state change", "error", err)
		return
	}
	if from != to {
		s.log.Debug("Subscription state changed", "from", from, "to", to, "reason", reason)
	}
}
