package sim_test

import (
	"testing"

	"github.com/htbsim/htbsim/internal/sim"
	"github.com/stretchr/testify/assert"
)

func TestDriverAdvancesVirtualTimeInLockstep(t *testing.T) {
	d := sim.New()

	var aTicks, bTicks []float64
	d.Spawn("a", func(p *sim.Proc) {
		for p.Now() <= 0.003 {
			aTicks = append(aTicks, p.Now())
			p.Timeout(0.001)
		}
	})
	d.Spawn("b", func(p *sim.Proc) {
		for p.Now() <= 0.0025 {
			bTicks = append(bTicks, p.Now())
			p.Timeout(0.0015)
		}
	})

	require := assert.New(t)
	err := d.Run(0.01)
	require.NoError(err)

	require.InDeltaSlice([]float64{0, 0.001, 0.002, 0.003}, aTicks, 1e-9)
	require.InDeltaSlice([]float64{0, 0.0015}, bTicks, 1e-9)
	require.InDelta(0.01, d.Now(), 1e-9)
}

func TestDriverRunsProcessWithNoTimeoutToCompletion(t *testing.T) {
	d := sim.New()
	ran := false
	d.Spawn("once", func(p *sim.Proc) { ran = true })

	err := d.Run(1)
	assert.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1.0, d.Now())
}
