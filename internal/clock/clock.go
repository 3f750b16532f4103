// Package clock defines the virtual-time source every simulation
// component reads from. The simulation driver is the only writer;
// everything else only ever calls Now.
package clock

// Clock is a read-only view of the current virtual time, in seconds.
type Clock interface {
	Now() float64
}

// Fixed is a Clock that never advances. Useful for unit tests that
// drive replenish/account calls directly without a SimDriver.
type Fixed float64

// Now implements Clock.
func (f Fixed) Now() float64 { return float64(f) }
