package events

import (
	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/shaper"
)

// TickObserver adapts a Publisher into a scheduler.TickObserver,
// publishing one TickEvent per leaf per tick. Publish failures are
// swallowed; losing telemetry must never affect the simulation.
type TickObserver struct {
	RunID     string
	Publisher Publisher
}

func (o *TickObserver) OnTick(now float64, shapers []scheduler.Shaper) {
	for _, s := range shapers {
		leaf, ok := s.(*shaper.Leaf)
		if !ok {
			continue
		}
		_ = o.Publisher.PublishTick(TickEvent{
			RunID:       o.RunID,
			Now:         now,
			Shaper:      leaf.Name(),
			State:       leaf.State.String(),
			Tokens:      leaf.Tokens,
			CTokens:     leaf.CTokens,
			QueueDepth:  leaf.Source.Len(),
			BytesSent:   leaf.BytesSent,
			PacketsSent: leaf.PacketsSent,
		})
	}
}

var _ scheduler.TickObserver = (*TickObserver)(nil)
