package metrics_test

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htbsim/htbsim/internal/htb"
	"github.com/htbsim/htbsim/internal/metrics"
	"github.com/htbsim/htbsim/internal/scheduler"
	"github.com/htbsim/htbsim/internal/shaper"
	"github.com/htbsim/htbsim/internal/traffic"
)

type fixedClock struct{ t float64 }

func (c *fixedClock) Now() float64 { return c.t }

func TestObserverReportsLeafLabeledMetrics(t *testing.T) {
	clk := &fixedClock{}
	node, err := htb.New("L", 1000, 1000, nil)
	require.NoError(t, err)
	leaf := shaper.New(node, 0, 1000, traffic.NewSource("src", 1000, clk, nil), traffic.NewSink("sink", clk), clk)
	leaf.Source.Push(&traffic.Packet{Size: 100})
	require.NoError(t, leaf.Node.Replenish(0))
	leaf.SendCIR()

	reg := metrics.NewRegistry()
	obs := metrics.NewObserver("run-1", reg)
	obs.OnTick(0, []scheduler.Shaper{leaf})

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)

	var sawPacketsSent, sawTokens bool
	for _, mf := range families {
		switch mf.GetName() {
		case "htbsim_leaf_packets_sent_total":
			sawPacketsSent = true
			assert.Equal(t, float64(1), mf.Metric[0].GetCounter().GetValue())
			assert.True(t, hasLabel(mf.Metric[0], "leaf", "L"))
			assert.True(t, hasLabel(mf.Metric[0], "run_id", "run-1"))
		case "htbsim_leaf_tokens":
			sawTokens = true
		}
	}
	assert.True(t, sawPacketsSent, "expected htbsim_leaf_packets_sent_total to be registered")
	assert.True(t, sawTokens, "expected htbsim_leaf_tokens to be registered")
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name && l.GetValue() == value {
			return true
		}
	}
	return false
}

// nonLeafShaper satisfies scheduler.Shaper without being a *shaper.Leaf.
type nonLeafShaper struct{}

func (nonLeafShaper) Name() string            { return "fake" }
func (nonLeafShaper) PrioLevel() int          { return 0 }
func (nonLeafShaper) Replenish(float64) error { return nil }
func (nonLeafShaper) HasPackets() bool        { return false }
func (nonLeafShaper) CanSend() bool           { return false }
func (nonLeafShaper) CanBorrow() bool         { return false }
func (nonLeafShaper) SendCIR()                {}
func (nonLeafShaper) BorrowAndSend() bool     { return false }

func TestObserverIgnoresNonLeafShapers(t *testing.T) {
	reg := metrics.NewRegistry()
	obs := metrics.NewObserver("run-2", reg)
	assert.NotPanics(t, func() { obs.OnTick(0, []scheduler.Shaper{nonLeafShaper{}}) })

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "a non-leaf shaper must not produce any series")
}
