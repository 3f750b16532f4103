// Package events publishes simulation telemetry to Kafka: a
// high-frequency per-tick stream for live dashboards, and a
// low-frequency run-completed stream for downstream batch consumers.
// The two streams are deliberately backed by different client
// libraries, since they have different delivery-latency and
// throughput requirements.
package events

import "time"

// TickEvent reports one leaf's state at the end of a scheduler tick.
type TickEvent struct {
	RunID       string  `json:"run_id"`
	Now         float64 `json:"now"`
	Shaper      string  `json:"shaper"`
	State       string  `json:"state"`
	Tokens      float64 `json:"tokens"`
	CTokens     float64 `json:"ctokens"`
	QueueDepth  int     `json:"queue_depth"`
	BytesSent   int64   `json:"bytes_sent"`
	PacketsSent int     `json:"packets_sent"`
}

// RunCompletedEvent reports a finished simulation run's final summary.
type RunCompletedEvent struct {
	RunID       string    `json:"run_id"`
	ProfileName string    `json:"profile_name"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	LeafCount   int       `json:"leaf_count"`
	Error       string    `json:"error,omitempty"`
}

// Publisher is the contract the simulation driver depends on. It is
// kept narrow deliberately, so a NopPublisher can stand in whenever
// Kafka isn't configured.
type Publisher interface {
	PublishTick(event TickEvent) error
	PublishRunCompleted(event RunCompletedEvent) error
	Close() error
}

// NopPublisher discards everything. It's the default when no Kafka
// brokers are configured, so the core simulator never requires Kafka.
type NopPublisher struct{}

func (NopPublisher) PublishTick(TickEvent) error                 { return nil }
func (NopPublisher) PublishRunCompleted(RunCompletedEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

var _ Publisher = NopPublisher{}
