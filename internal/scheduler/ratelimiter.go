// Package scheduler implements the per-tick RateLimiter: replenish the
// whole tree, then run the CIR pass and the PIR pass in strict
// priority order with intra-priority randomization.
//
// Grounded on original_source/htb.py's RateLimiter.
package scheduler

import (
	"math/rand"

	"github.com/htbsim/htbsim/internal/clock"
	"github.com/htbsim/htbsim/internal/constants"
)

// Shaper is the capability the scheduler needs from a leaf. *shaper.Leaf
// implements it; tests can supply fakes.
type Shaper interface {
	Name() string
	PrioLevel() int
	Replenish(t float64) error
	HasPackets() bool
	CanSend() bool
	CanBorrow() bool
	SendCIR()
	BorrowAndSend() bool
}

// TickObserver is a best-effort hook run after each tick completes.
// An observer that panics or wants to report an error should log it
// itself — observer failures never abort a tick or the simulation
// (spec.md §7's propagation policy only aborts on ConfigError/InvalidTime).
type TickObserver interface {
	OnTick(now float64, shapers []Shaper)
}

// RateLimiter is the scheduler: it owns the registered shapers and
// runs one tick at a time, reading "now" from its Clock rather than
// taking it as a parameter, since Clock is the single virtual-time
// source of truth (spec.md §4.4).
type RateLimiter struct {
	clock     clock.Clock
	shapers   []Shaper
	observers []TickObserver
	rng       *rand.Rand
}

// New builds an empty RateLimiter reading time from clk. Pass
// rand.New(rand.NewSource(seed)) for a reproducible shuffle order.
func New(clk clock.Clock, rng *rand.Rand) *RateLimiter {
	return &RateLimiter{clock: clk, rng: rng}
}

// AddShaper registers a shaper to be replenished and drained each tick.
func (r *RateLimiter) AddShaper(s Shaper) { r.shapers = append(r.shapers, s) }

// AddObserver registers a tick observer.
func (r *RateLimiter) AddObserver(o TickObserver) { r.observers = append(r.observers, o) }

// Shapers returns the registered shapers, for callers building
// topology/stats output.
func (r *RateLimiter) Shapers() []Shaper { return r.shapers }

// Tick runs one replenish + CIR pass + PIR pass cycle at the clock's
// current time, then notifies observers. It returns the first
// InvalidTime error encountered during replenish, if any, aborting the
// tick before any sends happen — per spec.md §7, this is fatal for the
// run and the caller should stop driving ticks.
func (r *RateLimiter) Tick() error {
	now := r.clock.Now()

	if err := r.replenish(now); err != nil {
		return err
	}

	r.processCanSend()
	r.processCanBorrow()

	for _, o := range r.observers {
		o.OnTick(now, r.shapers)
	}
	return nil
}

func (r *RateLimiter) replenish(now float64) error {
	for _, s := range r.shapers {
		if err := s.Replenish(now); err != nil {
			return err
		}
	}
	return nil
}

// processCanSend runs the CIR pass: priority order, shuffled within a
// priority, each shaper drained until it empties or stops being ready.
func (r *RateLimiter) processCanSend() {
	for prio := constants.HighestPrio; prio <= constants.LowestPrio; prio++ {
		group := r.shapersAtPrio(prio)
		r.shuffle(group)
		for _, s := range group {
			for s.HasPackets() && s.CanSend() {
				s.SendCIR()
			}
		}
	}
}

// processCanBorrow runs the PIR pass with the same ordering rule.
func (r *RateLimiter) processCanBorrow() {
	for prio := constants.HighestPrio; prio <= constants.LowestPrio; prio++ {
		group := r.shapersAtPrio(prio)
		r.shuffle(group)
		for _, s := range group {
			for s.HasPackets() && s.CanBorrow() {
				s.BorrowAndSend()
			}
		}
	}
}

func (r *RateLimiter) shapersAtPrio(prio int) []Shaper {
	var group []Shaper
	for _, s := range r.shapers {
		if s.PrioLevel() == prio {
			group = append(group, s)
		}
	}
	return group
}

func (r *RateLimiter) shuffle(group []Shaper) {
	if r.rng == nil || len(group) < 2 {
		return
	}
	r.rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
}
