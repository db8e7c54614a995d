package domain

import (
	"fmt"
	"time"
)

// TopicKey identifies a topic within a cache.
type TopicKey struct {
	CacheName string
	Topic     string
}

func (k TopicKey) String() string {
	return fmt.Sprintf("%s/%s", k.CacheName, k.Topic)
}

// Cursor is the resume position of a topic subscription.
// A zero SequenceNumber means "start from the live tail".
type Cursor struct {
	Topic          TopicKey
	SequenceNumber uint64
	SequencePage   uint64
	UpdatedAt      time.Time
}

// IsZero reports whether the cursor carries no resume position.
func (c Cursor) IsZero() bool {
	return c.SequenceNumber == 0 && c.SequencePage == 0
}
