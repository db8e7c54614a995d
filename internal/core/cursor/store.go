// Package cursor keeps topic resume positions in process memory.
//
// MemoryStore is the default cursor store: positions survive resubscriptions
// and new subscriptions to the same topic, but not a restart. Use the Redis
// store when they must outlive the process.
package cursor

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/cachekit/internal/core/domain"
)

// Config controls cursor retention in the memory store. Redis cursors expire
// through redis.cursor_ttl instead.
type Config struct {
	Retention time.Duration `yaml:"retention"` // 0 keeps cursors forever
}

// MemoryStore is a concurrency-safe in-memory cursor store.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[domain.TopicKey]domain.Cursor
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[domain.TopicKey]domain.Cursor)}
}

// Load returns the stored cursor for key.
func (s *MemoryStore) Load(ctx context.Context, key domain.TopicKey) (domain.Cursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[key]
	return c, ok, nil
}

// Save stores cur. Cursors never move backwards within a page.
func (s *MemoryStore) Save(ctx context.Context, cur domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.cursors[cur.Topic]; ok &&
		prev.SequencePage == cur.SequencePage && prev.SequenceNumber > cur.SequenceNumber {
		return nil
	}
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = time.Now()
	}
	s.cursors[cur.Topic] = cur
	return nil
}

// Delete removes the cursor for key.
func (s *MemoryStore) Delete(ctx context.Context, key domain.TopicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, key)
	return nil
}

// List returns every stored cursor.
func (s *MemoryStore) List(ctx context.Context) ([]domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Cursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		out = append(out, c)
	}
	return out, nil
}

// PruneOlderThan removes cursors last updated before threshold and returns how
// many were removed.
func (s *MemoryStore) PruneOlderThan(ctx context.Context, threshold time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, c := range s.cursors {
		if c.UpdatedAt.Before(threshold) {
			delete(s.cursors, key)
			removed++
		}
	}
	return removed, nil
}
