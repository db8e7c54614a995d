package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/cachekit/internal/core/domain"
)

const defaultKeyPrefix = "cachekit"

// Client persists topic resume cursors in Redis. It implements topic.CursorStore.
type Client struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	KeyPrefix string        `yaml:"key_prefix"`
	CursorTTL time.Duration `yaml:"cursor_ttl"` // 0 keeps cursors forever
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Client{rdb: rdb, prefix: prefix, ttl: cfg.CursorTTL}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) cursorKey(key domain.TopicKey) string {
	return fmt.Sprintf("%s:cursor:%s:%s", c.prefix, key.CacheName, key.Topic)
}

func (c *Client) cursorPattern() string {
	return fmt.Sprintf("%s:cursor:*", c.prefix)
}

func (c *Client) topicFromKey(k string) (domain.TopicKey, bool) {
	rest, ok := strings.CutPrefix(k, c.prefix+":cursor:")
	if !ok {
		return domain.TopicKey{}, false
	}
	cacheName, topicName, ok := strings.Cut(rest, ":")
	if !ok {
		return domain.TopicKey{}, false
	}
	return domain.TopicKey{CacheName: cacheName, Topic: topicName}, true
}

const (
	fieldSequence  = "sequence_number"
	fieldPage      = "sequence_page"
	fieldUpdatedAt = "updated_at"
)

// Load returns the stored cursor for key.
func (c *Client) Load(ctx context.Context, key domain.TopicKey) (domain.Cursor, bool, error) {
	fields, err := c.rdb.HGetAll(ctx, c.cursorKey(key)).Result()
	if err != nil {
		return domain.Cursor{}, false, fmt.Errorf("hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return domain.Cursor{}, false, nil
	}
	cur, err := parseCursor(key, fields)
	if err != nil {
		return domain.Cursor{}, false, err
	}
	return cur, true, nil
}

// Save stores cur, refreshing its TTL when one is configured.
func (c *Client) Save(ctx context.Context, cur domain.Cursor) error {
	k := c.cursorKey(cur.Topic)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, cursorFields(cur))
		if c.ttl > 0 {
			pipe.Expire(ctx, k, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save cursor %s: %w", cur.Topic, err)
	}
	return nil
}

// Delete removes the stored cursor for key.
func (c *Client) Delete(ctx context.Context, key domain.TopicKey) error {
	return c.rdb.Del(ctx, c.cursorKey(key)).Err()
}

// List returns every stored cursor.
func (c *Client) List(ctx context.Context) ([]domain.Cursor, error) {
	var out []domain.Cursor
	iter := c.rdb.Scan(ctx, 0, c.cursorPattern(), 100).Iterator()
	for iter.Next(ctx) {
		key, ok := c.topicFromKey(iter.Val())
		if !ok {
			continue
		}
		cur, found, err := c.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, cur)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return out, nil
}

func cursorFields(cur domain.Cursor) map[string]any {
	updated := cur.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return map[string]any{
		fieldSequence:  strconv.FormatUint(cur.SequenceNumber, 10),
		fieldPage:      strconv.FormatUint(cur.SequencePage, 10),
		fieldUpdatedAt: strconv.FormatInt(updated.UnixMilli(), 10),
	}
}

func parseCursor(key domain.TopicKey, fields map[string]string) (domain.Cursor, error) {
	cur := domain.Cursor{Topic: key}

	seq, ok := fields[fieldSequence]
	if !ok {
		return cur, errors.New("stored cursor has no sequence number")
	}
	var err error
	if cur.SequenceNumber, err = strconv.ParseUint(seq, 10, 64); err != nil {
		return cur, fmt.Errorf("invalid sequence number: %w", err)
	}
	if page, ok := fields[fieldPage]; ok {
		if cur.SequencePage, err = strconv.ParseUint(page, 10, 64); err != nil {
			return cur, fmt.Errorf("invalid sequence page: %w", err)
		}
	}
	if ms, ok := fields[fieldUpdatedAt]; ok {
		n, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return cur, fmt.Errorf("invalid updated_at: %w", err)
		}
		cur.UpdatedAt = time.UnixMilli(n)
	}
	return cur, nil
}
