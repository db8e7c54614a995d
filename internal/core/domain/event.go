package domain

// TopicEvent is one item produced by a topic subscription. It is one of
// TopicMessage, Heartbeat, Discontinuity or TopicError.
type TopicEvent interface {
	Kind() EventKind
	isTopicEvent()
}

type EventKind string

const (
	EventMessage       EventKind = "message"
	EventHeartbeat     EventKind = "heartbeat"
	EventDiscontinuity EventKind = "discontinuity"
	EventError         EventKind = "error"
)

// TopicMessage is a value published to the topic.
type TopicMessage struct {
	Text           string
	Binary         []byte
	IsBinary       bool
	SequenceNumber uint64
	SequencePage   uint64
	PublisherID    string // empty when the publisher is anonymous
}

// Value returns the payload as bytes regardless of its encoding.
func (m TopicMessage) Value() []byte {
	if m.IsBinary {
		return m.Binary
	}
	return []byte(m.Text)
}

func (TopicMessage) Kind() EventKind { return EventMessage }
func (TopicMessage) isTopicEvent()   {}

// Heartbeat is a keep-alive frame sent by the server on an idle stream.
type Heartbeat struct{}

func (Heartbeat) Kind() EventKind { return EventHeartbeat }
func (Heartbeat) isTopicEvent()   {}

// Discontinuity signals that the server skipped messages between LastSequence and NewSequence.
type Discontinuity struct {
	LastSequence uint64
	NewSequence  uint64
	NewPage      uint64
}

func (Discontinuity) Kind() EventKind { return EventDiscontinuity }
func (Discontinuity) isTopicEvent()   {}

// TopicError is the terminal event of a subscription.
type TopicError struct {
	Err *Error
}

func (TopicError) Kind() EventKind { return EventError }
func (TopicError) isTopicEvent()   {}

// Reason returns the failure classification of the terminal error.
func (e TopicError) Reason() FailureReason {
	if e.Err == nil {
		return FailureUnknown
	}
	return e.Err.Reason
}
