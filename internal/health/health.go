// Package health reports the state of the client connection and its topic subscriptions.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ConnectionHealth describes the gRPC connection.
type ConnectionHealth struct {
	Endpoint       string        `json:"endpoint"`
	Status         SystemStatus  `json:"status"`
	Transport      string        `json:"transport_status"`
	ErrorRate      float64       `json:"error_rate"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
}

// SubscriptionHealth describes one topic subscription.
type SubscriptionHealth struct {
	ID             string       `json:"id"`
	Cache          string       `json:"cache"`
	Topic          string       `json:"topic"`
	Status         SystemStatus `json:"status"`
	State          string       `json:"state"`
	Resubscribes   int          `json:"resubscribes"`
	SequenceNumber uint64       `json:"sequence_number"`
	SequencePage   uint64       `json:"sequence_page"`
	Error          string       `json:"error,omitempty"`
	StateSince     time.Time    `json:"state_since"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus  SystemStatus         `json:"system_status"`
	Connection    *ConnectionHealth    `json:"connection,omitempty"`
	Subscriptions []SubscriptionHealth `json:"subscriptions"`
	CheckedAt     time.Time            `json:"checked_at"`
}
