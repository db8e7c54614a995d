// Package topic keeps topic subscriptions alive across transient stream failures.
//
// Each Subscription runs one goroutine that owns the stream and a small state
// machine:
//
//	Connecting → Streaming → Resubscribing → Connecting ...
//	         ↘            ↘               ↘
//	                    Terminated
//
// Stream failures are classified and handed to a retry.SubscriptionStrategy,
// which either reopens the stream from the last seen sequence number or ends
// the subscription with exactly one TopicError event. Consumers read events
// through Events or Messages; Close stops the goroutine from any state.
package topic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/cachekit/internal/core/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrSubscriptionClosed is returned by operations on a closed subscription.
var ErrSubscriptionClosed = errors.New("subscription closed")

// FrameStream is the receive side of one subscribe stream.
type FrameStream interface {
	// Recv blocks for the next frame and returns io.EOF on a clean close.
	Recv() (*structpb.Struct, error)
}

// Streamer opens subscribe streams. The stream must stop when ctx is cancelled.
type Streamer interface {
	OpenStream(ctx context.Context, req *structpb.Struct) (FrameStream, error)
}

// StreamerFunc adapts a function to Streamer.
type StreamerFunc func(ctx context.Context, req *structpb.Struct) (FrameStream, error)

func (f StreamerFunc) OpenStream(ctx context.Context, req *structpb.Struct) (FrameStream, error) {
	return f(ctx, req)
}

// CursorStore persists resume positions across process restarts.
type CursorStore interface {
	// Load returns the stored cursor and whether one existed.
	Load(ctx context.Context, key domain.TopicKey) (domain.Cursor, bool, error)
	Save(ctx context.Context, cur domain.Cursor) error
}

// Config tunes subscriptions.
type Config struct {
	// ResubscribeDelay is used by the default subscription strategy.
	ResubscribeDelay time.Duration `yaml:"resubscribe_delay"`

	// ConnectTimeout bounds how long the first stream may stay silent before its
	// first frame. A failure of that stream resubscribes as usual. Negative disables it.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// HeartbeatTimeout aborts a stream that stays silent this long. 0 disables it.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`

	// BufferSize is the capacity of the event channel between the engine and consumers.
	BufferSize int `yaml:"buffer_size"`
}

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultBufferSize     = 64
)

// DefaultConfig returns the default subscription settings.
func DefaultConfig() Config {
	return Config{
		ResubscribeDelay: 500 * time.Millisecond,
		ConnectTimeout:   DefaultConnectTimeout,
		BufferSize:       DefaultBufferSize,
	}
}

// ApplyDefaults fills zero-valued fields. Timeouts stay disabled when negative.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ResubscribeDelay == 0 {
		c.ResubscribeDelay = d.ResubscribeDelay
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ResubscribeDelay < 0 {
		return fmt.Errorf("resubscribe_delay must be non-negative, got %s", c.ResubscribeDelay)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be non-negative, got %d", c.BufferSize)
	}
	return nil
}
