package cachekit

import (
	"context"
	"encoding/base64"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vietddude/cachekit/internal/core/clock"
	"github.com/vietddude/cachekit/internal/core/config"
	"github.com/vietddude/cachekit/internal/core/cursor"
	"github.com/vietddude/cachekit/internal/core/domain"
	"github.com/vietddude/cachekit/internal/infra/rpc/executor"
	"github.com/vietddude/cachekit/internal/infra/rpc/provider"
	"github.com/vietddude/cachekit/internal/topic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type request struct {
	method string
	req    *structpb.Struct
	md     metadata.MD
}

// cacheServer is an in-memory stand-in for the cache service. unary answers
// Get/Set/Delete/Publish; subscribe drives the Subscribe stream.
type cacheServer struct {
	mu       sync.Mutex
	requests []request
	perCall  map[string]int

	unary     func(n int, r request) (*structpb.Struct, error)
	subscribe func(n int, r request, stream grpc.ServerStream) error
}

func (s *cacheServer) handler(_ any, stream grpc.ServerStream) error {
	method, _ := grpc.MethodFromServerStream(stream)
	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	md, _ := metadata.FromIncomingContext(stream.Context())
	r := request{method: method, req: req, md: md}

	s.mu.Lock()
	s.requests = append(s.requests, r)
	if s.perCall == nil {
		s.perCall = make(map[string]int)
	}
	s.perCall[method]++
	n := s.perCall[method]
	s.mu.Unlock()

	if method == provider.MethodSubscribe {
		if s.subscribe == nil {
			<-stream.Context().Done()
			return nil
		}
		return s.subscribe(n, r, stream)
	}

	reply := &structpb.Struct{}
	if s.unary != nil {
		var err error
		if reply, err = s.unary(n, r); err != nil {
			return err
		}
	}
	return stream.SendMsg(reply)
}

func (s *cacheServer) Requests(method string) []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []request
	for _, r := range s.requests {
		if r.method == method {
			out = append(out, r)
		}
	}
	return out
}

func newTestClient(t *testing.T, srv *cacheServer, cfg config.AppConfig, opts ...Option) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnknownServiceHandler(srv.handler))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cfg.Transport.Endpoint = "passthrough:///bufnet"
	cfg.Transport.Insecure = true

	opts = append(opts, WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})))
	client, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func field(s *structpb.Struct, name string) *structpb.Value {
	return s.GetFields()[name]
}

func TestClient_GetRetriesUnavailable(t *testing.T) {
	srv := &cacheServer{unary: func(n int, r request) (*structpb.Struct, error) {
		if n <= 2 {
			return nil, status.Error(codes.Unavailable, "node restarting")
		}
		return structpb.NewStruct(map[string]any{
			"found": true,
			"value": base64.StdEncoding.EncodeToString([]byte("hello")),
		})
	}}
	clk := clock.NewFake(time.Now())
	client := newTestClient(t, srv, config.AppConfig{}, WithClock(clk))

	value, found, err := client.Get(context.Background(), "default", "greeting")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("hello"), value)

	// Two retries, both immediate.
	require.Equal(t, []time.Duration{0, 0}, clk.Sleeps())

	requests := srv.Requests(provider.MethodGet)
	require.Len(t, requests, 3)
	requestID := requests[0].md.Get(executor.RequestIDHeader)
	require.Len(t, requestID, 1)
	for i, r := range requests {
		require.Equal(t, requestID, r.md.Get(executor.RequestIDHeader))
		require.Equal(t, []string{string(rune('1' + i))}, r.md.Get(executor.RetryAttemptHeader))
		require.Equal(t, "greeting", field(r.req, "key").GetStringValue())
	}

	stats := client.provider.Monitor().Stats()
	require.Equal(t, 3, stats.Requests)
	require.Equal(t, 2, stats.Failures)
}

func TestClient_GetMissingKey(t *testing.T) {
	srv := &cacheServer{unary: func(int, request) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]any{"found": false})
	}}
	client := newTestClient(t, srv, config.AppConfig{})

	value, found, err := client.Get(context.Background(), "default", "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, value)
}

func TestClient_ExhaustedRetriesReturnLastFailure(t *testing.T) {
	srv := &cacheServer{unary: func(int, request) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "still down")
	}}
	clk := clock.NewFake(time.Now())
	client := newTestClient(t, srv, config.AppConfig{}, WithClock(clk))

	err := client.Set(context.Background(), "default", "k", []byte("v"), time.Minute)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, FailureUnavailable, cerr.Reason)
	require.Equal(t, 4, cerr.Attempts)
	require.Equal(t, "still down", cerr.Message)
	require.Len(t, srv.Requests(provider.MethodSet), 4)

	set := srv.Requests(provider.MethodSet)[0].req
	require.Equal(t, float64(60000), field(set, "ttl_ms").GetNumberValue())
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("v")), field(set, "value").GetStringValue())
}

func TestClient_NonRetryableFailure(t *testing.T) {
	srv := &cacheServer{unary: func(int, request) (*structpb.Struct, error) {
		return nil, status.Error(codes.PermissionDenied, "read only token")
	}}
	client := newTestClient(t, srv, config.AppConfig{})

	err := client.Delete(context.Background(), "default", "k")
	require.Equal(t, FailurePermissionDenied, ReasonOf(err))
	require.Len(t, srv.Requests(provider.MethodDelete), 1)
}

func TestClient_PublishIsNotRetried(t *testing.T) {
	srv := &cacheServer{unary: func(int, request) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "broker restarting")
	}}
	client := newTestClient(t, srv, config.AppConfig{})

	err := client.Publish(context.Background(), "default", "orders", "created")
	require.Equal(t, FailureUnavailable, ReasonOf(err))

	requests := srv.Requests(provider.MethodPublish)
	require.Len(t, requests, 1)
	require.Equal(t, "created", field(requests[0].req, "text").GetStringValue())
}

func TestClient_ValidatesNames(t *testing.T) {
	client := newTestClient(t, &cacheServer{}, config.AppConfig{})

	_, _, err := client.Get(context.Background(), "", "k")
	require.Equal(t, FailureBadRequest, ReasonOf(err))

	_, err = client.Subscribe(context.Background(), "default", "")
	require.Equal(t, FailureBadRequest, ReasonOf(err))
}

func TestClient_SubscriptionResumesAfterDrop(t *testing.T) {
	srv := &cacheServer{subscribe: func(n int, r request, stream grpc.ServerStream) error {
		switch n {
		case 1:
			for seq := uint64(1); seq <= 2; seq++ {
				frame := topic.ItemFrame(domain.TopicMessage{Text: "m", SequenceNumber: seq, SequencePage: 1})
				if err := stream.SendMsg(frame); err != nil {
					return err
				}
			}
			return status.Error(codes.Unavailable, "stream reset")
		default:
			resumeAt := uint64(field(r.req, "resume_at_topic_sequence_number").GetNumberValue())
			frame := topic.ItemFrame(domain.TopicMessage{Text: "m", SequenceNumber: resumeAt, SequencePage: 1})
			if err := stream.SendMsg(frame); err != nil {
				return err
			}
			<-stream.Context().Done()
			return nil
		}
	}}
	clk := clock.NewFake(time.Now())
	store := cursor.NewMemoryStore()
	client := newTestClient(t, srv, config.AppConfig{}, WithClock(clk), WithCursorStore(store))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.Subscribe(ctx, "default", "orders")
	require.NoError(t, err)
	defer sub.Close()

	var seqs []uint64
	for msg := range sub.Messages(ctx) {
		seqs = append(seqs, msg.SequenceNumber)
		if len(seqs) == 3 {
			break
		}
	}
	require.Equal(t, []uint64{1, 2, 3}, seqs)
	require.Equal(t, 1, sub.ResubscribeCount())
	require.NoError(t, sub.Err())

	requests := srv.Requests(provider.MethodSubscribe)
	require.Len(t, requests, 2)
	require.Equal(t, float64(0), field(requests[0].req, "resume_at_topic_sequence_number").GetNumberValue())
	require.Equal(t, float64(3), field(requests[1].req, "resume_at_topic_sequence_number").GetNumberValue())
	require.Equal(t, []time.Duration{topic.DefaultConfig().ResubscribeDelay}, clk.Sleeps())

	require.Eventually(t, func() bool {
		c, ok, _ := store.Load(ctx, domain.TopicKey{CacheName: "default", Topic: "orders"})
		return ok && c.SequenceNumber == 3
	}, 2*time.Second, 10*time.Millisecond)

	statuses := client.Subscriptions()
	require.Len(t, statuses, 1)
	require.Equal(t, "streaming", statuses[0].State)
}

func TestClient_SubscriptionKeepsRetryingWhileUnavailable(t *testing.T) {
	srv := &cacheServer{subscribe: func(int, request, grpc.ServerStream) error {
		return status.Error(codes.Unavailable, "no leader")
	}}
	clk := clock.NewFake(time.Now())
	client := newTestClient(t, srv, config.AppConfig{}, WithClock(clk))

	sub, err := client.Subscribe(context.Background(), "default", "orders")
	require.NoError(t, err)

	// Well past the default connect timeout's worth of resubscribe delays.
	require.Eventually(t, func() bool {
		return sub.ResubscribeCount() >= 30
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, sub.Err())

	require.NoError(t, sub.Close())
	require.Empty(t, client.Subscriptions())
}

func TestClient_SubscriptionFatalError(t *testing.T) {
	srv := &cacheServer{subscribe: func(int, request, grpc.ServerStream) error {
		return status.Error(codes.NotFound, "no such cache")
	}}
	client := newTestClient(t, srv, config.AppConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.Subscribe(ctx, "missing", "orders")
	require.NoError(t, err)
	defer sub.Close()

	var events []TopicEvent
	for ev := range sub.Events(ctx) {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	terr, ok := events[0].(TopicError)
	require.True(t, ok)
	require.Equal(t, FailureNotFound, terr.Reason())
	require.Equal(t, 0, sub.ResubscribeCount())

	report := client.Health(ctx)
	require.Len(t, report.Subscriptions, 1)
	require.Equal(t, "terminated", report.Subscriptions[0].State)
}
