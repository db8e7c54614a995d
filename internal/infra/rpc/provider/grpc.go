package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/cachekit/internal/infra/rpc/executor"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCProvider owns the client connection to the cache endpoint. Unary calls
// made on the connection run through the executor's retry loop when one is
// configured; every physical attempt is recorded by the monitor.
type GRPCProvider struct {
	endpoint string
	conn     *grpc.ClientConn
	monitor  *Monitor
	log      *slog.Logger
}

// NewGRPCProvider creates the connection. Dialing is lazy; the first call
// establishes it. extra options are appended last (tests use them to install
// an in-memory dialer).
func NewGRPCProvider(
	cfg Config,
	exec *executor.Executor,
	logger *slog.Logger,
	extra ...grpc.DialOption,
) (*GRPCProvider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	target, useTLS := parseEndpoint(cfg.Endpoint)
	if cfg.Insecure {
		useTLS = false
	}

	p := &GRPCProvider{
		endpoint: cfg.Endpoint,
		monitor:  NewMonitor(),
		log:      logger.With("component", "grpc_provider", "endpoint", target),
	}

	var opts []grpc.DialOption
	if useTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.AuthToken != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerToken{
			token:      cfg.AuthToken,
			requireTLS: useTLS,
		}))
	}

	opts = append(opts,
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  backoff.DefaultConfig.BaseDelay,
				Multiplier: backoff.DefaultConfig.Multiplier,
				Jitter:     backoff.DefaultConfig.Jitter,
				MaxDelay:   cfg.MaxConnectBackoff,
			},
			MinConnectTimeout: cfg.MinConnectTimeout,
		}),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize)),
	)

	interceptors := []grpc.UnaryClientInterceptor{p.monitor.UnaryClientInterceptor()}
	if exec != nil {
		// Outermost, so the monitor sees every physical attempt.
		interceptors = append([]grpc.UnaryClientInterceptor{exec.UnaryClientInterceptor(KindOf)}, interceptors...)
	}
	opts = append(opts, grpc.WithChainUnaryInterceptor(interceptors...))
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	p.conn = conn

	p.log.Debug("gRPC provider created", "tls", useTLS, "auth", cfg.AuthToken != "")
	return p, nil
}

// parseEndpoint strips an http(s) scheme and reports whether TLS should be used.
func parseEndpoint(endpoint string) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), false
	default:
		return endpoint, strings.HasSuffix(endpoint, ":443")
	}
}

// Invoke performs a unary call.
func (p *GRPCProvider) Invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	reply := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, method, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// OpenServerStream sends req and returns the response stream. Cancelling ctx
// tears the stream down.
func (p *GRPCProvider) OpenServerStream(ctx context.Context, method string, req *structpb.Struct) (*ServerStream, error) {
	desc := &grpc.StreamDesc{StreamName: streamName(method), ServerStreams: true}
	cs, err := p.conn.NewStream(ctx, desc, method)
	if err != nil {
		p.monitor.RecordFailure(err)
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		p.monitor.RecordFailure(err)
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		p.monitor.RecordFailure(err)
		return nil, err
	}
	return &ServerStream{cs: cs}, nil
}

func streamName(method string) string {
	if i := strings.LastIndex(method, "/"); i >= 0 {
		return method[i+1:]
	}
	return method
}

// Conn returns the underlying gRPC connection.
func (p *GRPCProvider) Conn() *grpc.ClientConn {
	return p.conn
}

// Endpoint returns the configured endpoint.
func (p *GRPCProvider) Endpoint() string {
	return p.endpoint
}

// Monitor returns the attempt monitor for this connection.
func (p *GRPCProvider) Monitor() *Monitor {
	return p.monitor
}

// Close cleans up resources.
func (p *GRPCProvider) Close() error {
	return p.conn.Close()
}

// ServerStream is the receive side of a server-streaming call.
type ServerStream struct {
	cs grpc.ClientStream
}

// Recv blocks for the next frame. It returns io.EOF when the server closes the
// stream cleanly.
func (s *ServerStream) Recv() (*structpb.Struct, error) {
	frame := &structpb.Struct{}
	if err := s.cs.RecvMsg(frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// bearerToken attaches the auth token to every call.
type bearerToken struct {
	token      string
	requireTLS bool
}

func (b bearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerToken) RequireTransportSecurity() bool {
	return b.requireTLS
}
