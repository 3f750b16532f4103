// Package traffic implements the Source/Sink/Packet collaborators
// spec.md §4.4 names: the leaf's producer, its terminal consumer, and
// the immutable packet record that flows between them.
//
// Grounded on original_source/htb.py's PacketGenerator/PacketSink/Packet.
package traffic

// Packet is an immutable record of one unit of traffic.
type Packet struct {
	Size int // bytes, in [constants.PktMinLen, constants.PktMaxLen]
}
