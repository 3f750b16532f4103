// Package metrics exposes the simulator's per-leaf HTB state as
// Prometheus collectors: tokens/ctokens/queue_depth as gauges,
// packets_sent/bytes_sent as counters, each labeled by run ID and
// shaper name, fed from the RateLimiter's tick hook exactly the way
// internal/events.TickObserver feeds Kafka from the same hook.
// Grounded on pkg/monitoring/metrics.go's GaugeVec/CounterVec-per-metric
// registration shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/shaper"
)

// Registry holds the leaf-labeled collectors. One Registry is built at
// process startup and shared across every run; per-run bookkeeping
// (translating cumulative counters into counter deltas) lives in
// Observer instead.
type Registry struct {
	registry *prometheus.Registry

	tokens      *prometheus.GaugeVec
	ctokens     *prometheus.GaugeVec
	packetsSent *prometheus.CounterVec
	bytesSent   *prometheus.CounterVec
	queueDepth  *prometheus.GaugeVec
}

// NewRegistry builds a Registry with its collectors registered against
// a fresh prometheus.Registry (not the global DefaultRegisterer, so
// repeated construction in tests never collides).
func NewRegistry() *Registry {
	labels := []string{"run_id", "leaf"}
	r := &Registry{
		registry: prometheus.NewRegistry(),
		tokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "htbsim_leaf_tokens",
			Help: "Current CIR token bucket level, per leaf.",
		}, labels),
		ctokens: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "htbsim_leaf_ctokens",
			Help: "Current PIR token bucket level, per leaf.",
		}, labels),
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htbsim_leaf_packets_sent_total",
			Help: "Cumulative packets sent, per leaf.",
		}, labels),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "htbsim_leaf_bytes_sent_total",
			Help: "Cumulative bytes sent, per leaf.",
		}, labels),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "htbsim_leaf_queue_depth",
			Help: "Current source queue depth, per leaf.",
		}, labels),
	}
	r.registry.MustRegister(r.tokens, r.ctokens, r.packetsSent, r.bytesSent, r.queueDepth)
	return r
}

// Gatherer exposes the underlying registry for promhttp.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// Observer adapts a Registry into a scheduler.TickObserver for one
// run, converting each leaf's cumulative packets_sent/bytes_sent into
// counter deltas (the scheduler only ever reports totals-so-far, never
// per-tick increments) while setting tokens/ctokens/queue_depth
// directly as gauges.
type Observer struct {
	RunID    string
	Registry *Registry

	lastPackets map[string]int
	lastBytes   map[string]int64
}

// NewObserver builds an Observer reporting under runID against reg.
func NewObserver(runID string, reg *Registry) *Observer {
	return &Observer{
		RunID:       runID,
		Registry:    reg,
		lastPackets: make(map[string]int),
		lastBytes:   make(map[string]int64),
	}
}

func (o *Observer) OnTick(now float64, shapers []scheduler.Shaper) {
	for _, s := range shapers {
		leaf, ok := s.(*shaper.Leaf)
		if !ok {
			continue
		}
		name := leaf.Name()
		labels := prometheus.Labels{"run_id": o.RunID, "leaf": name}

		o.Registry.tokens.With(labels).Set(leaf.Tokens)
		o.Registry.ctokens.With(labels).Set(leaf.CTokens)
		o.Registry.queueDepth.With(labels).Set(float64(leaf.Source.Len()))

		if delta := leaf.PacketsSent - o.lastPackets[name]; delta > 0 {
			o.Registry.packetsSent.With(labels).Add(float64(delta))
			o.lastPackets[name] = leaf.PacketsSent
		}
		if delta := leaf.BytesSent - o.lastBytes[name]; delta > 0 {
			o.Registry.bytesSent.With(labels).Add(float64(delta))
			o.lastBytes[name] = leaf.BytesSent
		}
	}
}

var _ scheduler.TickObserver = (*Observer)(nil)
