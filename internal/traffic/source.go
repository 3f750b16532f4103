package traffic

import (
	"container/list"
	"fmt"
	"math/rand"

	"github.com/htbsim/htbsim/internal/clock"
	"github.com/htbsim/htbsim/internal/constants"
)

// Source produces variable-size packets toward a bounded-rate target
// (Throughput), topping up its own queue once per tick without ever
// exceeding its declared average rate. The queue is a peek-capable
// deque (container/list) so the shaper can inspect the head packet
// without dequeuing it (spec.md §4.2/§9 head-of-line discipline).
type Source struct {
	Name       string
	Throughput float64 // bytes/sec target, spec.md's input_rate

	PacketsSent int
	BytesSent   int64
	lastSent    float64

	clock clock.Clock
	queue *list.List
	rng   *rand.Rand
}

// NewSource builds a Source that reads virtual time from clk and draws
// packet sizes from rng (pass rand.New(rand.NewSource(seed)) for
// reproducible simulations).
func NewSource(name string, throughput float64, clk clock.Clock, rng *rand.Rand) *Source {
	return &Source{
		Name:       name,
		Throughput: throughput,
		clock:      clk,
		queue:      list.New(),
		rng:        rng,
	}
}

func (s *Source) randomPacket() *Packet {
	size := constants.PktMinLen + s.rng.Intn(constants.PktMaxLen-constants.PktMinLen+1)
	return &Packet{Size: size}
}

// EnqPkt tops up the queue for one tick: at t=0 it caps total bytes
// generated at Throughput*ReplenishInterval; afterward it stops before
// the rolling average (bytes_sent+next)/now would exceed Throughput.
func (s *Source) EnqPkt() {
	now := s.clock.Now()
	bytesGenerated := 0

	for {
		pkt := s.randomPacket()
		if now == 0 {
			if float64(bytesGenerated+pkt.Size) > s.Throughput*constants.ReplenishInterval {
				break
			}
		} else {
			if float64(s.BytesSent+int64(pkt.Size))/now > s.Throughput {
				break
			}
		}

		s.queue.PushBack(pkt)
		s.PacketsSent++
		s.BytesSent += int64(pkt.Size)
		bytesGenerated += pkt.Size
	}

	s.lastSent = now
}

// Push enqueues a packet directly, bypassing the rate-limited
// generator. Used by tests and by adapters that feed externally
// produced packets into a leaf's queue.
func (s *Source) Push(pkt *Packet) {
	s.queue.PushBack(pkt)
}

// Len reports how many packets are queued.
func (s *Source) Len() int { return s.queue.Len() }

// Front peeks the head packet without removing it, or nil if empty.
func (s *Source) Front() *Packet {
	e := s.queue.Front()
	if e == nil {
		return nil
	}
	return e.Value.(*Packet)
}

// PopFront removes and returns the head packet, or nil if empty.
func (s *Source) PopFront() *Packet {
	e := s.queue.Front()
	if e == nil {
		return nil
	}
	s.queue.Remove(e)
	return e.Value.(*Packet)
}

// Rate returns the source's own generation rate in bytes/sec, or 0 if
// it has never generated anything.
func (s *Source) Rate() float64 {
	if s.lastSent == 0 {
		return 0
	}
	return float64(s.BytesSent) / s.lastSent
}

// Stats renders a one-line human-readable summary.
func (s *Source) Stats() string {
	return fmt.Sprintf("%s sent: %d packets(%d B) rate: %.0f Bps", s.Name, s.PacketsSent, s.BytesSent, s.Rate())
}
