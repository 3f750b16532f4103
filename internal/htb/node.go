// Package htb implements the token-bucket accounting at the heart of
// the HTB tree: committed (CIR) and peak (PIR) token levels, refill
// from a caller-supplied virtual clock, and the parent-child borrowing
// discipline. A Node has no queue and no notion of packets — leaves
// layer that on top (see package shaper).
//
// Grounded on original_source/htb.py's TokenBucketNode, the dual
// CIR/PIR-accounting variant per spec.md §9.
package htb

import (
	"math"

	"github.com/htbsim/htbsim/internal/apperr"
	"github.com/htbsim/htbsim/internal/constants"
)

// State is the tri-state readiness of a Node.
type State int

const (
	// CanSend means tokens alone cover the quantum: the class may send
	// at its committed rate right now.
	CanSend State = iota
	// CanBorrow means tokens are short but ctokens cover the quantum:
	// the class may send only with an ancestor's consent.
	CanBorrow
	// CannotSend means neither bucket covers the quantum.
	CannotSend
)

func (s State) String() string {
	switch s {
	case CanSend:
		return "CAN_SEND"
	case CanBorrow:
		return "CAN_BORROW"
	default:
		return "CANNOT_SEND"
	}
}

// Node is one class in the HTB tree: committed/peak token buckets plus
// a weak (non-owning) reference to the enclosing inner node.
type Node struct {
	Name string

	Rate float64 // CIR, bytes/sec
	Ceil float64 // PIR, bytes/sec

	Burst  float64 // CIR bucket capacity, bytes
	CBurst float64 // PIR bucket capacity, bytes

	Quantum float64 // minimum tokens to be deemed sendable

	Tokens  float64 // current CIR bucket level
	CTokens float64 // current PIR bucket level

	UpdateTime float64
	State      State

	Parent *Node
}

// New builds a Node, validating the CIR/PIR invariants spec.md §3
// requires (ceil >= rate >= 0). burst/cburst default to rate/ceil and
// quantum to max(PktMaxLen, rate/10), exactly as spec.md §3 specifies.
func New(name string, rate, ceil float64, parent *Node) (*Node, error) {
	if rate < 0 {
		return nil, apperr.Config("node %q: rate %g must be >= 0", name, rate)
	}
	if ceil < rate {
		return nil, apperr.Config("node %q: ceil %g must be >= rate %g", name, ceil, rate)
	}

	burst := rate
	cburst := ceil
	quantum := math.Max(float64(constants.PktMaxLen), rate/10)

	return &Node{
		Name:       name,
		Rate:       rate,
		Ceil:       ceil,
		Burst:      burst,
		CBurst:     cburst,
		Quantum:    quantum,
		Tokens:     burst,
		CTokens:    cburst,
		UpdateTime: 0,
		State:      CanSend,
		Parent:     parent,
	}, nil
}

// Replenish tops up both buckets from elapsed virtual time, refilling
// the parent first so an ancestor's capacity is fresh before this node
// accounts against it. Fails if t is earlier than the last replenish.
func (n *Node) Replenish(t float64) error {
	if n.Parent != nil {
		if err := n.Parent.Replenish(t); err != nil {
			return err
		}
	}

	elapsed := t - n.UpdateTime
	if elapsed < 0 {
		return apperr.InvalidTime("node %q: replenish(%g) precedes update_time %g", n.Name, t, n.UpdateTime)
	}

	n.Tokens = math.Min(n.Burst, n.Tokens+n.Rate*elapsed)
	n.CTokens = math.Min(n.CBurst, n.CTokens+n.Ceil*elapsed)
	n.UpdateTime = t
	n.updateState()
	return nil
}

// AccountCIR debits amount from both buckets if, and only if, this
// node and every ancestor can cover amount out of tokens alone. No
// debits happen anywhere in the chain unless every node would succeed.
func (n *Node) AccountCIR(amount float64) bool {
	if amount > n.Tokens {
		return false
	}
	if n.Parent != nil {
		if !n.Parent.AccountCIR(amount) {
			return false
		}
	}

	n.Tokens = math.Max(0, n.Tokens-amount)
	n.CTokens = math.Max(0, n.CTokens-amount)
	n.updateState()
	return true
}

// AccountPIR debits amount from both buckets if either bucket alone
// covers it, recursing the same relaxed check up to every ancestor.
func (n *Node) AccountPIR(amount float64) bool {
	if amount > n.Tokens && amount > n.CTokens {
		return false
	}
	if n.Parent != nil {
		if !n.Parent.AccountPIR(amount) {
			return false
		}
	}

	n.Tokens = math.Max(0, n.Tokens-amount)
	n.CTokens = math.Max(0, n.CTokens-amount)
	n.updateState()
	return true
}

// CanSend reports whether this node and every ancestor is CAN_SEND.
func (n *Node) CanSend() bool {
	ok := n.State == CanSend
	if n.Parent != nil {
		ok = ok && n.Parent.CanSend()
	}
	return ok
}

// CanBorrow reports whether this node is CAN_BORROW and every ancestor
// is CAN_SEND or CAN_BORROW (logical OR, per spec.md §9).
func (n *Node) CanBorrow() bool {
	ok := n.State == CanBorrow
	if n.Parent != nil {
		ok = ok && (n.Parent.CanSend() || n.Parent.CanBorrow())
	}
	return ok
}

// Borrow is the composite check a node runs on itself: send outright
// if possible, else try to borrow from further up the tree.
func (n *Node) Borrow() bool {
	if n.CanSend() {
		return true
	}
	if n.CanBorrow() {
		return n.BorrowFromParent()
	}
	return false
}

// BorrowFromParent delegates the composite Borrow check to the parent.
func (n *Node) BorrowFromParent() bool {
	if n.Parent == nil {
		return false
	}
	return n.Parent.Borrow()
}

func (n *Node) updateState() {
	switch {
	case n.Tokens >= n.Quantum:
		n.State = CanSend
	case n.CTokens >= n.Quantum:
		n.State = CanBorrow
	default:
		n.State = CannotSend
	}
}
