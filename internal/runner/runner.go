// Package runner drives one end-to-end simulation run: build the HTB
// tree from a profile, wire it to a RateLimiter on a sim.Driver, step
// virtual time for the configured duration, and return a summary. It
// is the one orchestration point both the CLI and the API server call
// into, so profile loading and tree construction never happen twice.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/htbsim/htbsim/internal/constants"
	"github.com/htbsim/htbsim/internal/events"
	"github.com/htbsim/htbsim/internal/profile"
	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/sim"
	"github.com/htbsim/htbsim/internal/store"
)

// Options configures one run.
type Options struct {
	Profile     profile.Node
	Duration    time.Duration
	ProfileName string
	Publisher   events.Publisher
	Observers   []scheduler.TickObserver
}

// Result is everything callers need after a run completes.
type Result struct {
	RunID   string
	Tree    *profile.Tree
	Summary store.RunSummary
}

// Run generates a fresh run ID and delegates to RunWithID.
func Run(ctx context.Context, opts Options, rng *rand.Rand) (*Result, error) {
	return RunWithID(ctx, uuid.NewString(), opts, rng)
}

// RunWithID builds the tree, drives it for opts.Duration of virtual
// time under the given runID, and returns the final per-leaf stats.
// The supplied rng seeds both packet-size generation and scheduler
// tie-breaking, so a run is reproducible given the same seed. Callers
// that need the ID before the run completes (e.g. to answer an HTTP
// request immediately) should generate it themselves and pass it in.
func RunWithID(ctx context.Context, runID string, opts Options, rng *rand.Rand) (*Result, error) {
	startedAt := time.Now()

	driver := sim.New()
	tree, err := profile.Build(opts.Profile, driver, rng)
	if err != nil {
		return nil, fmt.Errorf("building profile tree: %w", err)
	}

	rl := scheduler.New(driver, rng)
	tree.Register(rl)
	for _, obs := range opts.Observers {
		rl.AddObserver(obs)
	}

	const interval = constants.ReplenishInterval
	durationSecs := opts.Duration.Seconds()

	for _, leaf := range tree.Leaves {
		leaf := leaf
		driver.Spawn("gen:"+leaf.Name(), func(p *sim.Proc) {
			for p.Now() < durationSecs {
				leaf.Source.EnqPkt()
				p.Timeout(interval)
			}
		})
	}

	driver.Spawn("scheduler", func(p *sim.Proc) {
		for p.Now() < durationSecs {
			if ctx.Err() != nil {
				return
			}
			if err := rl.Tick(); err != nil {
				return
			}
			p.Timeout(interval)
		}
	})

	if err := driver.Run(durationSecs); err != nil {
		return nil, fmt.Errorf("running simulation: %w", err)
	}

	summary := store.RunSummary{
		RunID:       runID,
		ProfileName: opts.ProfileName,
		Status:      store.StatusDone,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Duration:    opts.Duration,
	}
	for _, leaf := range tree.Leaves {
		ls := leafSummary(leaf.Name(), leaf.PacketsSent, leaf.BytesSent, leaf.Rate(), leaf.Node.Rate)
		ls.StatsLine = leaf.Stats()
		ls.SourceStatsLine = leaf.Source.Stats()
		ls.SinkStatsLine = leaf.Sink.Stats()
		summary.Leaves = append(summary.Leaves, ls)
	}
	summary.Topology = topologyOf(tree)

	if opts.Publisher != nil {
		_ = opts.Publisher.PublishRunCompleted(events.RunCompletedEvent{
			RunID:       runID,
			ProfileName: opts.ProfileName,
			StartedAt:   startedAt,
			FinishedAt:  summary.FinishedAt,
			LeafCount:   len(tree.Leaves),
		})
	}

	return &Result{RunID: runID, Tree: tree, Summary: summary}, nil
}

func topologyOf(tree *profile.Tree) []store.TopologyNode {
	nodes := tree.Topology()
	out := make([]store.TopologyNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, store.TopologyNode{
			Name:   n.Name,
			Rate:   n.Rate,
			Ceil:   n.Ceil,
			Parent: n.Parent,
			IsLeaf: n.IsLeaf,
		})
	}
	return out
}

func leafSummary(name string, packets int, bytes int64, rate, cir float64) store.LeafSummary {
	util := decimal.Zero
	if cir > 0 {
		util = decimal.NewFromFloat(rate).DivRound(decimal.NewFromFloat(cir), 4).Mul(decimal.NewFromInt(100))
	}
	return store.LeafSummary{
		Name:             name,
		PacketsSent:      packets,
		BytesSent:        bytes,
		BytesPerSec:      rate,
		UtilizationOfCIR: util,
	}
}
