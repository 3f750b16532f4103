package traffic

import (
	"fmt"

	"github.com/htbsim/htbsim/internal/clock"
)

// Sink is the terminal consumer of a leaf's sent packets: it records
// counts and the last-arrival virtual time, nothing more.
type Sink struct {
	Name string

	PacketsRecv int
	BytesRecv   int64
	lastArrival float64

	clock clock.Clock
}

// NewSink builds a Sink that stamps arrivals from clk.
func NewSink(name string, clk clock.Clock) *Sink {
	return &Sink{Name: name, clock: clk}
}

// Put accumulates one arriving packet.
func (s *Sink) Put(pkt *Packet) {
	s.PacketsRecv++
	s.BytesRecv += int64(pkt.Size)
	s.lastArrival = s.clock.Now()
}

// Rate returns bytes_recv/last_arrival, or 0 before the first packet.
func (s *Sink) Rate() float64 {
	if s.lastArrival == 0 {
		return 0
	}
	return float64(s.BytesRecv) / s.lastArrival
}

// Stats renders a one-line human-readable summary.
func (s *Sink) Stats() string {
	return fmt.Sprintf("%s recv: %d packets(%d B) rate: %.0f Bps", s.Name, s.PacketsRecv, s.BytesRecv, s.Rate())
}
