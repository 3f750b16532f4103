package htb_test

import (
	"testing"

	"github.com/htbsim/htbsim/internal/apperr"
	"github.com/htbsim/htbsim/internal/htb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesInvariants(t *testing.T) {
	_, err := htb.New("bad-ceil", 10, 5, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))

	_, err = htb.New("bad-rate", -1, 5, nil)
	require.Error(t, err)
	assert.True(t, apperr.IsConfig(err))

	n, err := htb.New("ok", 1000, 2000, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, n.Burst)
	assert.Equal(t, 2000.0, n.CBurst)
	assert.Equal(t, 1518.0, n.Quantum) // max(PktMaxLen, rate/10) = max(1518, 100)
}

func TestReplenishIsMonotonicAndBounded(t *testing.T) {
	n, err := htb.New("root", 1000, 2000, nil)
	require.NoError(t, err)

	require.NoError(t, n.Replenish(0))
	assert.Equal(t, 1000.0, n.Tokens, "tokens already at burst, replenish(0) is a no-op")

	// Drain both buckets, then replenish partially.
	n.Tokens = 0
	n.CTokens = 0
	require.NoError(t, n.Replenish(0.5))
	assert.InDelta(t, 500.0, n.Tokens, 1e-9)
	assert.InDelta(t, 1000.0, n.CTokens, 1e-9)
	assert.LessOrEqual(t, n.Tokens, n.Burst)
	assert.LessOrEqual(t, n.CTokens, n.CBurst)

	// Idempotent replenish: same t twice changes nothing the second time.
	before := n.Tokens
	require.NoError(t, n.Replenish(0.5))
	assert.Equal(t, before, n.Tokens)

	err = n.Replenish(0.1)
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidTime(err))
}

func TestAccountCIRRequiresCommittedTokens(t *testing.T) {
	n, err := htb.New("leaf", 100, 1000, nil)
	require.NoError(t, err)
	n.Tokens = 50
	n.CTokens = 1000

	assert.False(t, n.AccountCIR(60), "exceeds committed tokens")
	assert.Equal(t, 50.0, n.Tokens, "failed account must not debit")

	assert.True(t, n.AccountCIR(50))
	assert.Equal(t, 0.0, n.Tokens)
	assert.Equal(t, 950.0, n.CTokens, "CIR debits both buckets")
}

func TestAccountPIRSucceedsIfEitherBucketCovers(t *testing.T) {
	n, err := htb.New("leaf", 100, 1000, nil)
	require.NoError(t, err)
	n.Tokens = 0
	n.CTokens = 200

	assert.True(t, n.AccountPIR(150), "ctokens alone covers it")
	assert.Equal(t, 0.0, n.Tokens)
	assert.Equal(t, 50.0, n.CTokens)

	assert.False(t, n.AccountPIR(60), "neither bucket covers it now")
}

func TestParentMustAlsoSucceed(t *testing.T) {
	parent, err := htb.New("parent", 100, 100, nil)
	require.NoError(t, err)
	child, err := htb.New("child", 1000, 1000, parent)
	require.NoError(t, err)

	parent.Tokens = 10 // parent can't cover 50 at CIR
	child.Tokens = 1000

	assert.False(t, child.AccountCIR(50))
	assert.Equal(t, 1000.0, child.Tokens, "child must not debit when parent refuses")
	assert.Equal(t, 10.0, parent.Tokens, "parent must not debit either")
}

func TestCanBorrowIsLogicalOrOfAncestorReadiness(t *testing.T) {
	parent, err := htb.New("parent", 100, 1000, nil)
	require.NoError(t, err)
	child, err := htb.New("child", 100, 1000, parent)
	require.NoError(t, err)

	parent.Tokens = parent.Quantum // parent CAN_SEND
	parent.State = htb.CanSend
	child.Tokens = 0
	child.CTokens = child.Quantum
	child.State = htb.CanBorrow

	assert.True(t, child.CanBorrow(), "parent CAN_SEND satisfies the OR")

	parent.State = htb.CanBorrow
	assert.True(t, child.CanBorrow(), "parent CAN_BORROW also satisfies the OR")

	parent.State = htb.CannotSend
	assert.False(t, child.CanBorrow())
}

func TestBorrowFromParentDelegatesUpTheTree(t *testing.T) {
	grandparent, err := htb.New("gp", 100, 1000, nil)
	require.NoError(t, err)
	parent, err := htb.New("p", 100, 1000, grandparent)
	require.NoError(t, err)
	child, err := htb.New("c", 100, 1000, parent)
	require.NoError(t, err)

	grandparent.State = htb.CanSend
	parent.State = htb.CanBorrow
	child.State = htb.CanBorrow

	assert.True(t, child.BorrowFromParent())
}
