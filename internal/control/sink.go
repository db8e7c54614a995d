package control

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vietddude/cachekit/internal/core/domain"
)

// Sink receives the events of the agent's subscriptions.
type Sink interface {
	// Emit handles one event of the topic identified by key
	Emit(ctx context.Context, key domain.TopicKey, event domain.TopicEvent) error

	// Close releases the sink
	Close() error
}

// LogSink writes messages and discontinuities to a writer, one line each.
type LogSink struct {
	out io.Writer
}

// NewLogSink creates a sink writing to out, or stdout when out is nil.
func NewLogSink(out io.Writer) *LogSink {
	if out == nil {
		out = os.Stdout
	}
	return &LogSink{out: out}
}

func (s *LogSink) Emit(ctx context.Context, key domain.TopicKey, event domain.TopicEvent) error {
	switch ev := event.(type) {
	case domain.TopicMessage:
		if ev.IsBinary {
			_, err := fmt.Fprintf(s.out, "[MESSAGE] %s #%d (%d bytes)\n", key, ev.SequenceNumber, len(ev.Binary))
			return err
		}
		_, err := fmt.Fprintf(s.out, "[MESSAGE] %s #%d %s\n", key, ev.SequenceNumber, ev.Text)
		return err
	case domain.Discontinuity:
		_, err := fmt.Fprintf(s.out, "[GAP] %s %d -> %d\n", key, ev.LastSequence, ev.NewSequence)
		return err
	case domain.TopicError:
		_, err := fmt.Fprintf(s.out, "[ERROR] %s %v\n", key, ev.Err)
		return err
	}
	return nil
}

func (s *LogSink) Close() error { return nil }
