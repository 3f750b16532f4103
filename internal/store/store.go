// Package store persists completed simulation runs (Postgres, durable)
// and caches in-flight run status (Redis, short-TTL) so the API can
// answer queries without re-running a simulation. Both backends are
// optional: with neither configured, Store falls back to an in-memory
// map so the core simulator never requires external services.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the lifecycle state of a tracked run.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// LeafSummary is one shaper's final stats, as persisted in a RunSummary.
// StatsLine/SourceStatsLine/SinkStatsLine are captured once, at
// run-completion time, from the live shaper.Leaf/traffic.Source/Sink's
// own Stats() methods (spec.md §6's "every shaper's stats line"),
// since by the time the API serves a RunSummary the live tree is gone.
type LeafSummary struct {
	Name             string          `json:"name" db:"name"`
	PacketsSent      int             `json:"packets_sent" db:"packets_sent"`
	BytesSent        int64           `json:"bytes_sent" db:"bytes_sent"`
	BytesPerSec      float64         `json:"bytes_per_sec" db:"bytes_per_sec"`
	UtilizationOfCIR decimal.Decimal `json:"utilization_of_cir" db:"utilization_of_cir"`
	StatsLine        string          `json:"stats_line" db:"-"`
	SourceStatsLine  string          `json:"source_stats_line" db:"-"`
	SinkStatsLine    string          `json:"sink_stats_line" db:"-"`
}

// TopologyNode is one node's shape in a run's tree, as spec.md §6's
// topology output names it: its own rate/ceil plus which parent (if
// any) it borrows from.
type TopologyNode struct {
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
	Ceil   float64 `json:"ceil"`
	Parent string  `json:"parent,omitempty"`
	IsLeaf bool    `json:"is_leaf"`
}

// RunSummary is a completed (or in-flight) simulation's stats snapshot.
type RunSummary struct {
	RunID       string         `json:"run_id" db:"run_id"`
	ProfileName string         `json:"profile_name" db:"profile_name"`
	Status      RunStatus      `json:"status" db:"status"`
	StartedAt   time.Time      `json:"started_at" db:"started_at"`
	FinishedAt  time.Time      `json:"finished_at" db:"finished_at"`
	Duration    time.Duration  `json:"duration" db:"-"`
	Leaves      []LeafSummary  `json:"leaves" db:"-"`
	Topology    []TopologyNode `json:"topology" db:"-"`
	Error       string         `json:"error,omitempty" db:"error"`
}

// Store is the persistence contract the API depends on.
type Store interface {
	SaveRun(ctx context.Context, run RunSummary) error
	GetRun(ctx context.Context, runID string) (RunSummary, bool, error)
	SetStatus(ctx context.Context, runID string, status RunStatus) error
}
