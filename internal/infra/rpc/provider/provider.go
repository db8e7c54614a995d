// Package provider implements the gRPC transport for the cache and pub-sub services.
//
// This package contains:
//   - GRPCProvider: unary invoke and server-stream open over one client connection
//   - ServerStream: a receive-only view of a server stream
//   - Monitor: per-attempt health and latency tracking
//
// Messages are google.protobuf.Struct values so no generated stubs are needed.
package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/cachekit/internal/core/domain"
)

// Full method names served by the cache endpoint.
const (
	MethodGet       = "/cachekit.Cache/Get"
	MethodSet       = "/cachekit.Cache/Set"
	MethodDelete    = "/cachekit.Cache/Delete"
	MethodPublish   = "/cachekit.Pubsub/Publish"
	MethodSubscribe = "/cachekit.Pubsub/Subscribe"
)

var methodKinds = map[string]domain.OperationKind{
	MethodGet:       domain.OperationRead,
	MethodSet:       domain.OperationWrite,
	MethodDelete:    domain.OperationWrite,
	MethodPublish:   domain.OperationPublish,
	MethodSubscribe: domain.OperationSubscribe,
}

// KindOf maps a full method name to its operation kind. Unknown methods are
// treated as non-idempotent mutations and therefore never retried.
func KindOf(method string) domain.OperationKind {
	if k, ok := methodKinds[method]; ok {
		return k
	}
	return domain.OperationMutate
}

// Config describes the connection to the cache endpoint.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"auth_token"`

	// Insecure disables TLS even for https:// or :443 endpoints.
	Insecure bool `yaml:"insecure"`

	KeepaliveTime     time.Duration `yaml:"keepalive_time"`
	KeepaliveTimeout  time.Duration `yaml:"keepalive_timeout"`
	MinConnectTimeout time.Duration `yaml:"min_connect_timeout"`
	MaxConnectBackoff time.Duration `yaml:"max_connect_backoff"`
	MaxRecvMsgSize    int           `yaml:"max_recv_msg_size"`
}

const (
	DefaultKeepaliveTime     = 30 * time.Second
	DefaultKeepaliveTimeout  = 10 * time.Second
	DefaultMinConnectTimeout = 5 * time.Second
	DefaultMaxConnectBackoff = 30 * time.Second
	DefaultMaxRecvMsgSize    = 5 * 1024 * 1024
)

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.KeepaliveTime == 0 {
		c.KeepaliveTime = DefaultKeepaliveTime
	}
	if c.KeepaliveTimeout == 0 {
		c.KeepaliveTimeout = DefaultKeepaliveTimeout
	}
	if c.MinConnectTimeout == 0 {
		c.MinConnectTimeout = DefaultMinConnectTimeout
	}
	if c.MaxConnectBackoff == 0 {
		c.MaxConnectBackoff = DefaultMaxConnectBackoff
	}
	if c.MaxRecvMsgSize == 0 {
		c.MaxRecvMsgSize = DefaultMaxRecvMsgSize
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("transport endpoint is required")
	}
	if c.KeepaliveTime < 0 || c.KeepaliveTimeout < 0 {
		return fmt.Errorf("keepalive durations must be non-negative, got time=%s timeout=%s",
			c.KeepaliveTime, c.KeepaliveTimeout)
	}
	if c.MinConnectTimeout < 0 || c.MaxConnectBackoff < 0 {
		return fmt.Errorf("connect durations must be non-negative, got min_connect_timeout=%s max_connect_backoff=%s",
			c.MinConnectTimeout, c.MaxConnectBackoff)
	}
	if c.MaxRecvMsgSize < 0 {
		return fmt.Errorf("max_recv_msg_size must be non-negative, got %d", c.MaxRecvMsgSize)
	}
	return nil
}
