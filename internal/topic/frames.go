package topic

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/vietddude/cachekit/internal/core/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// errUnknownFrame marks frames of a kind this client does not understand.
// They are skipped so newer servers can add frame kinds.
var errUnknownFrame = errors.New("unknown frame kind")

// decodeFrame translates one stream frame into an event.
func decodeFrame(frame *structpb.Struct) (domain.TopicEvent, error) {
	fields := frame.GetFields()

	if v, ok := fields["item"]; ok {
		return decodeItem(v.GetStructValue())
	}
	if _, ok := fields["heartbeat"]; ok {
		return domain.Heartbeat{}, nil
	}
	if v, ok := fields["discontinuity"]; ok {
		d := v.GetStructValue().GetFields()
		return domain.Discontinuity{
			LastSequence: number(d["last_topic_sequence"]),
			NewSequence:  number(d["new_topic_sequence"]),
			NewPage:      number(d["new_sequence_page"]),
		}, nil
	}
	return nil, errUnknownFrame
}

func decodeItem(item *structpb.Struct) (domain.TopicEvent, error) {
	if item == nil {
		return nil, errors.New("item frame has no body")
	}
	f := item.GetFields()

	msg := domain.TopicMessage{
		SequenceNumber: number(f["topic_sequence_number"]),
		SequencePage:   number(f["sequence_page"]),
		PublisherID:    f["publisher_id"].GetStringValue(),
	}
	switch {
	case f["text"] != nil:
		msg.Text = f["text"].GetStringValue()
	case f["binary"] != nil:
		raw, err := base64.StdEncoding.DecodeString(f["binary"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("decode binary item %d: %w", msg.SequenceNumber, err)
		}
		msg.Binary = raw
		msg.IsBinary = true
	default:
		return nil, fmt.Errorf("item %d carries neither text nor binary", msg.SequenceNumber)
	}
	return msg, nil
}

func number(v *structpb.Value) uint64 {
	n := v.GetNumberValue()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// SubscribeRequest builds the subscribe request for key resuming after cur.
// A zero cursor asks for the live tail.
func SubscribeRequest(key domain.TopicKey, cur domain.Cursor) *structpb.Struct {
	var resumeAt uint64
	if !cur.IsZero() {
		resumeAt = cur.SequenceNumber + 1
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"cache_name":                      structpb.NewStringValue(key.CacheName),
		"topic":                           structpb.NewStringValue(key.Topic),
		"resume_at_topic_sequence_number": structpb.NewNumberValue(float64(resumeAt)),
		"sequence_page":                   structpb.NewNumberValue(float64(cur.SequencePage)),
	}}
}

// ItemFrame encodes a message as a stream frame.
func ItemFrame(msg domain.TopicMessage) *structpb.Struct {
	item := map[string]*structpb.Value{
		"topic_sequence_number": structpb.NewNumberValue(float64(msg.SequenceNumber)),
		"sequence_page":         structpb.NewNumberValue(float64(msg.SequencePage)),
	}
	if msg.PublisherID != "" {
		item["publisher_id"] = structpb.NewStringValue(msg.PublisherID)
	}
	if msg.IsBinary {
		item["binary"] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(msg.Binary))
	} else {
		item["text"] = structpb.NewStringValue(msg.Text)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"item": structpb.NewStructValue(&structpb.Struct{Fields: item}),
	}}
}

// HeartbeatFrame encodes a heartbeat frame.
func HeartbeatFrame() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"heartbeat": structpb.NewStructValue(&structpb.Struct{}),
	}}
}

// DiscontinuityFrame encodes a discontinuity frame.
func DiscontinuityFrame(d domain.Discontinuity) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"discontinuity": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"last_topic_sequence": structpb.NewNumberValue(float64(d.LastSequence)),
			"new_topic_sequence":  structpb.NewNumberValue(float64(d.NewSequence)),
			"new_sequence_page":   structpb.NewNumberValue(float64(d.NewPage)),
		}}),
	}}
}
