package topic

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vietddude/cachekit/internal/core/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("TextItem", func(t *testing.T) {
		ev, err := decodeFrame(ItemFrame(domain.TopicMessage{
			Text:           "hello",
			SequenceNumber: 7,
			SequencePage:   2,
			PublisherID:    "svc-a",
		}))
		require.NoError(t, err)
		require.Equal(t, domain.TopicMessage{
			Text:           "hello",
			SequenceNumber: 7,
			SequencePage:   2,
			PublisherID:    "svc-a",
		}, ev)
	})

	t.Run("BinaryItem", func(t *testing.T) {
		ev, err := decodeFrame(ItemFrame(domain.TopicMessage{
			Binary:         []byte("raw"),
			IsBinary:       true,
			SequenceNumber: 8,
		}))
		require.NoError(t, err)
		msg := ev.(domain.TopicMessage)
		require.True(t, msg.IsBinary)
		require.Equal(t, []byte("raw"), msg.Binary)
	})

	t.Run("Heartbeat", func(t *testing.T) {
		ev, err := decodeFrame(HeartbeatFrame())
		require.NoError(t, err)
		require.Equal(t, domain.Heartbeat{}, ev)
	})

	t.Run("Discontinuity", func(t *testing.T) {
		d := domain.Discontinuity{LastSequence: 3, NewSequence: 10, NewPage: 4}
		ev, err := decodeFrame(DiscontinuityFrame(d))
		require.NoError(t, err)
		require.Equal(t, d, ev)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		frame, err := structpb.NewStruct(map[string]any{"snapshot": map[string]any{}})
		require.NoError(t, err)
		_, err = decodeFrame(frame)
		require.ErrorIs(t, err, errUnknownFrame)
	})

	t.Run("BadBinary", func(t *testing.T) {
		frame, err := structpb.NewStruct(map[string]any{
			"item": map[string]any{"topic_sequence_number": 1, "binary": "not base64!"},
		})
		require.NoError(t, err)
		_, err = decodeFrame(frame)
		require.ErrorContains(t, err, "decode binary item 1")
	})

	t.Run("EmptyItem", func(t *testing.T) {
		frame, err := structpb.NewStruct(map[string]any{
			"item": map[string]any{"topic_sequence_number": 2},
		})
		require.NoError(t, err)
		_, err = decodeFrame(frame)
		require.ErrorContains(t, err, "neither text nor binary")
	})
}

func TestSubscribeRequest(t *testing.T) {
	key := domain.TopicKey{CacheName: "default", Topic: "orders"}

	req := SubscribeRequest(key, domain.Cursor{})
	f := req.GetFields()
	require.Equal(t, "default", f["cache_name"].GetStringValue())
	require.Equal(t, "orders", f["topic"].GetStringValue())
	require.Equal(t, float64(0), f["resume_at_topic_sequence_number"].GetNumberValue())

	req = SubscribeRequest(key, domain.Cursor{SequenceNumber: 9, SequencePage: 2})
	f = req.GetFields()
	require.Equal(t, float64(10), f["resume_at_topic_sequence_number"].GetNumberValue())
	require.Equal(t, float64(2), f["sequence_page"].GetNumberValue())
}
