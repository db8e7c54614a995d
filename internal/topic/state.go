package topic

import (
	"errors"
	"slices"
	"time"
)

// State is the lifecycle phase of a subscription.
type State int

const (
	StateConnecting    State = iota // Opening the stream, no frame received yet
	StateStreaming                  // Frames are flowing
	StateResubscribing              // Stream ended, waiting for the retry decision or delay
	StateTerminated                 // Absorbing; the event sequence has ended
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateResubscribing:
		return "resubscribing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
// Terminated is reachable from every state because disposal can happen at any time.
var ValidTransitions = map[State][]State{
	StateConnecting:    {StateStreaming, StateResubscribing, StateTerminated},
	StateStreaming:     {StateResubscribing, StateTerminated},
	StateResubscribing: {StateConnecting, StateTerminated},
	StateTerminated:    {},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// NewTransition creates a new transition record.
func NewTransition(from, to State, reason string, at time.Time) Transition {
	return Transition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: at,
	}
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case StateConnecting:
		return "Connecting - stream requested, waiting for the first frame"
	case StateStreaming:
		return "Streaming - delivering frames from the server"
	case StateResubscribing:
		return "Resubscribing - stream lost, waiting to reopen"
	case StateTerminated:
		return "Terminated - closed or failed permanently"
	default:
		return "Unknown state"
	}
}
