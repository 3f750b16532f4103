// Package shaper layers the one behavioral extension spec.md §9 calls
// for over a plain htb.Node: a queue, a priority, and the CIR/PIR drain
// loops. It is composition, not inheritance — Leaf embeds *htb.Node so
// its accounting API (CanSend, CanBorrow, Replenish, ...) is promoted
// directly, while the leaf-only state (Source, Sink, counters) lives
// alongside it.
//
// Grounded on original_source/htb.py's ShaperTokenBucket.
package shaper

import (
	"fmt"

	"github.com/htbsim/htbsim/internal/clock"
	"github.com/htbsim/htbsim/internal/htb"
	"github.com/htbsim/htbsim/internal/traffic"
)

// Leaf is a traffic-shaping class: it owns a Source and Sink and
// drains its Source's queue under the scheduler's direction. Only
// leaves hold packet queues — inner htb.Node values never do.
type Leaf struct {
	*htb.Node

	Prio      int
	InputRate float64

	Source *traffic.Source
	Sink   *traffic.Sink

	PacketsSent  int
	BytesSent    int64
	lastSentTime float64
	everSent     bool

	clock clock.Clock
}

// New builds a Leaf backed by node, with its own Source/Sink pair.
func New(node *htb.Node, prio int, inputRate float64, src *traffic.Source, sink *traffic.Sink, clk clock.Clock) *Leaf {
	return &Leaf{
		Node:      node,
		Prio:      prio,
		InputRate: inputRate,
		Source:    src,
		Sink:      sink,
		clock:     clk,
	}
}

// Name returns the underlying node's name, satisfying scheduler.Shaper.
func (l *Leaf) Name() string { return l.Node.Name }

// PrioLevel returns the leaf's scheduling priority, satisfying
// scheduler.Shaper. Named PrioLevel (not Prio) to avoid colliding with
// the embedded Prio field.
func (l *Leaf) PrioLevel() int { return l.Prio }

// HasPackets reports whether the leaf's source queue is non-empty.
func (l *Leaf) HasPackets() bool { return l.Source.Len() > 0 }

// SendCIR drains the queue while the head packet is affordable at the
// committed rate, stopping (without consuming) at the first refusal so
// head-of-line order is preserved.
func (l *Leaf) SendCIR() {
	for l.Source.Len() > 0 {
		pkt := l.Source.Front()
		if !l.Node.AccountCIR(float64(pkt.Size)) {
			break
		}
		l.Source.PopFront()
		l.deliver(pkt)
	}
}

// SendPIR is the same drain loop under the relaxed peak-rate check.
func (l *Leaf) SendPIR() {
	for l.Source.Len() > 0 {
		pkt := l.Source.Front()
		if !l.Node.AccountPIR(float64(pkt.Size)) {
			break
		}
		l.Source.PopFront()
		l.deliver(pkt)
	}
}

// BorrowAndSend asks the parent chain for borrowed capacity and, if
// granted, drains under PIR. Mirrors htb.py: the leaf only checks
// BorrowFromParent (not its own Borrow), since the scheduler has
// already verified the leaf itself is CAN_BORROW before calling this.
func (l *Leaf) BorrowAndSend() bool {
	if !l.Node.BorrowFromParent() {
		return false
	}
	l.SendPIR()
	return true
}

func (l *Leaf) deliver(pkt *traffic.Packet) {
	l.Sink.Put(pkt)
	l.PacketsSent++
	l.BytesSent += int64(pkt.Size)
	l.lastSentTime = l.clock.Now()
	l.everSent = true
}

// Rate returns bytes_sent/last_sent_time, or 0 before the first send.
func (l *Leaf) Rate() float64 {
	if !l.everSent {
		return 0
	}
	return float64(l.BytesSent) / l.lastSentTime
}

// Stats renders the leaf's own summary, plus its Source and Sink.
func (l *Leaf) Stats() string {
	return fmt.Sprintf("%s sent: %d packets(%d B) rate: %.0f Bps", l.Node.Name, l.PacketsSent, l.BytesSent, l.Rate())
}
