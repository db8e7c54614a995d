package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/cachekit/internal/core/cursor"
	"github.com/vietddude/cachekit/internal/core/domain"
)

func TestPruner_RemovesStaleCursors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := cursor.NewMemoryStore()

	_ = store.Save(ctx, domain.Cursor{
		Topic:          domain.TopicKey{CacheName: "default", Topic: "old"},
		SequenceNumber: 1,
		UpdatedAt:      now.Add(-48 * time.Hour),
	})
	_ = store.Save(ctx, domain.Cursor{
		Topic:          domain.TopicKey{CacheName: "default", Topic: "fresh"},
		SequenceNumber: 1,
		UpdatedAt:      now.Add(-time.Hour),
	})

	p := NewPruner("memory-cursors", 24*time.Hour, store.PruneOlderThan)
	p.now = func() time.Time { return now }

	if removed := p.runOnce(ctx); removed != 1 {
		t.Fatalf("Expected 1 removed cursor, got %d", removed)
	}

	all, _ := store.List(ctx)
	if len(all) != 1 || all[0].Topic.Topic != "fresh" {
		t.Errorf("Expected only the fresh cursor to remain, got %+v", all)
	}
}

func TestPruner_Errors(t *testing.T) {
	p := NewPruner("broken", time.Hour, func(context.Context, time.Time) (int, error) {
		return 0, errors.New("store unavailable")
	})
	if removed := p.runOnce(context.Background()); removed != 0 {
		t.Errorf("Expected 0 removed on error, got %d", removed)
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	called := false
	p := NewPruner("disabled", 0, func(context.Context, time.Time) (int, error) {
		called = true
		return 0, nil
	})

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected Start to return when retention is disabled")
	}
	if called {
		t.Error("Expected no prune when retention is disabled")
	}
}
