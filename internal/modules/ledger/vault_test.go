package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/poolvault/internal/domain"
)

func TestSharePriceDefinedForEmptyVault(t *testing.T) {
	v := NewVault()
	assert.True(t, v.SharePrice().Equal(decimal.NewFromInt(1)))
}

func TestAcquireIsExclusive(t *testing.T) {
	v := NewVault()

	require.NoError(t, v.Acquire())
	assert.ErrorIs(t, v.Acquire(), domain.ErrOperationInProgress)

	v.Release()
	assert.NoError(t, v.Acquire())
	v.Release()
}

func TestHaltFlag(t *testing.T) {
	v := NewVault()
	assert.False(t, v.Halted())

	v.Halt()
	assert.True(t, v.Halted())

	v.ClearHalt()
	assert.False(t, v.Halted())
}

func TestCheckConsistencyDetectsClaimMismatch(t *testing.T) {
	v := NewVault()
	now := time.Now()
	v.CommitDeposit("alice", decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(100), now)

	// Positions hold nothing, the whole value sits in the buffer
	require.NoError(t, v.CheckConsistency(decimal.Zero, 100))

	// Burning claims without touching the account ledger is a fault
	v.CommitWithdraw("alice", decimal.Zero, decimal.Zero, decimal.Zero, now)
	v.totalClaims = v.totalClaims.Sub(decimal.NewFromInt(1))
	err := v.CheckConsistency(decimal.Zero, 100)
	assert.ErrorIs(t, err, domain.ErrConsistencyFault)
}

func TestCheckConsistencyDetectsValueDrift(t *testing.T) {
	v := NewVault()
	v.CommitDeposit("alice", decimal.NewFromInt(1000), decimal.NewFromInt(1000), decimal.Zero, time.Now())

	// Tracked positions are 2% short of the ledger total
	err := v.CheckConsistency(decimal.NewFromInt(980), 100)
	assert.ErrorIs(t, err, domain.ErrConsistencyFault)

	// Within the tolerance it passes
	require.NoError(t, v.CheckConsistency(decimal.NewFromInt(995), 100))
}

func TestZeroLockstepInvariant(t *testing.T) {
	v := NewVault()
	v.CommitDeposit("alice", decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.Zero, time.Now())

	// Value without claims must be rejected
	v.CommitWithdraw("alice", decimal.Zero, decimal.NewFromInt(100), decimal.Zero, time.Now())
	err := v.CheckConsistency(decimal.NewFromInt(100), 100)
	assert.ErrorIs(t, err, domain.ErrConsistencyFault)
}
