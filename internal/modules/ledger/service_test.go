package ledger

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/poolvault/internal/adapters"
	"github.com/aristath/poolvault/internal/database"
	"github.com/aristath/poolvault/internal/domain"
	"github.com/aristath/poolvault/internal/events"
)

func newTestService(t *testing.T) (*Service, *adapters.Set) {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.New(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	positions := adapters.NewSet(
		adapters.NewLendingPool(420, log),
		adapters.NewStakingPosition(900, log),
		adapters.NewLiquidityPosition(1250, log),
	)

	svc := NewService(NewVault(), positions, NewRepository(db), events.NewManager(log), 100, log)
	return svc, positions
}

func TestFirstDepositMintsOneToOne(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	result, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, result.ClaimsIssued.Equal(decimal.NewFromInt(1000)))
	assert.True(t, result.SharePrice.Equal(decimal.NewFromInt(1)))

	state := svc.Vault().State()
	assert.True(t, state.TotalValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, state.TotalClaims.Equal(decimal.NewFromInt(1000)))
}

func TestDepositSeedsPositionsProportionally(t *testing.T) {
	ctx := context.Background()
	svc, positions := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	// Even allocation 3334/3333/3333 floors each share to 333, the
	// remaining 1 unit stays in the buffer
	balances, err := positions.Balances(ctx)
	require.NoError(t, err)
	for i := range balances {
		assert.True(t, balances[i].Equal(decimal.NewFromInt(333)), "position %d", i)
	}
	assert.True(t, svc.Vault().State().Buffer.Equal(decimal.NewFromInt(1)))
}

func TestSubsequentDepositMintsAtRatio(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	result, err := svc.Deposit(ctx, "bob", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, result.ClaimsIssued.Equal(decimal.NewFromInt(500)))

	state := svc.Vault().State()
	assert.True(t, state.TotalClaims.Equal(decimal.NewFromInt(1500)))
	assert.True(t, state.TotalValue.Equal(decimal.NewFromInt(1500)))
}

func TestDepositValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Deposit(ctx, "alice", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Deposit(ctx, "", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDepositTooSmallToMintClaims(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	// At share price 1.0 a half-unit deposit floors to zero claims
	_, err = svc.Deposit(ctx, "bob", decimal.NewFromFloat(0.5))
	assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)

	// Nothing moved
	state := svc.Vault().State()
	assert.True(t, state.TotalValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, state.TotalClaims.Equal(decimal.NewFromInt(1000)))
}

func TestWithdrawReturnsFloorValue(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	result, err := svc.Withdraw(ctx, "alice", decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.True(t, result.AmountReturned.Equal(decimal.NewFromInt(400)))

	state := svc.Vault().State()
	assert.True(t, state.TotalValue.Equal(decimal.NewFromInt(600)))
	assert.True(t, state.TotalClaims.Equal(decimal.NewFromInt(600)))

	acct, ok := svc.Vault().Account("alice")
	require.True(t, ok)
	assert.True(t, acct.Claims.Equal(decimal.NewFromInt(600)))
}

func TestWithdrawAllZeroesTheVault(t *testing.T) {
	ctx := context.Background()
	svc, positions := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	result, err := svc.Withdraw(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, result.AmountReturned.Equal(decimal.NewFromInt(1000)))

	state := svc.Vault().State()
	assert.True(t, state.TotalValue.IsZero())
	assert.True(t, state.TotalClaims.IsZero())
	assert.True(t, state.Buffer.IsZero())

	total, err := positions.TotalBalance(ctx)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	// The empty account persists
	acct, ok := svc.Vault().Account("alice")
	require.True(t, ok)
	assert.True(t, acct.Claims.IsZero())
}

func TestWithdrawInsufficientClaims(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, "alice", decimal.NewFromInt(101))
	assert.ErrorIs(t, err, domain.ErrInsufficientClaims)

	_, err = svc.Withdraw(ctx, "stranger", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientClaims)
}

func TestWithdrawAdapterFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	svc, positions := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	before := svc.Vault().State()

	// The drain visits positions in ascending order; failing the second one
	// forces compensation of the first
	positions.At(1).(*adapters.StakingPosition).FailNext(assert.AnError)

	_, err = svc.Withdraw(ctx, "alice", decimal.NewFromInt(900))
	assert.ErrorIs(t, err, domain.ErrAdapterFailure)

	after := svc.Vault().State()
	assert.True(t, after.TotalValue.Equal(before.TotalValue))
	assert.True(t, after.TotalClaims.Equal(before.TotalClaims))

	balances, err := positions.Balances(ctx)
	require.NoError(t, err)
	for i := range balances {
		assert.True(t, balances[i].Equal(decimal.NewFromInt(333)), "position %d", i)
	}
	assert.False(t, svc.Vault().Halted())
}

func TestClaimSumMatchesTotalAcrossSequences(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	deposits := []struct {
		address string
		amount  int64
	}{
		{"alice", 1000}, {"bob", 500}, {"carol", 2500}, {"alice", 750}, {"bob", 125},
	}
	for _, d := range deposits {
		_, err := svc.Deposit(ctx, d.address, decimal.NewFromInt(d.amount))
		require.NoError(t, err)
	}
	_, err := svc.Withdraw(ctx, "carol", decimal.NewFromInt(1200))
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, "alice", decimal.NewFromInt(300))
	require.NoError(t, err)

	state := svc.Vault().State()
	sum := decimal.Zero
	for _, address := range []string{"alice", "bob", "carol"} {
		acct, ok := svc.Vault().Account(address)
		require.True(t, ok)
		sum = sum.Add(acct.Claims)
	}
	assert.True(t, sum.Equal(state.TotalClaims))
}

func TestReentrancyGuardFailsFast(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.Vault().Acquire())
	defer svc.Vault().Release()

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)

	_, err = svc.Withdraw(ctx, "alice", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)
}

func TestDepositorViewReportsValueAndYield(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	view, err := svc.Depositor(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, view.Value.Equal(decimal.NewFromInt(1000)))
	assert.True(t, view.Yield.IsZero())

	_, err = svc.Depositor(ctx, "stranger")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.TotalValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, summary.SharePrice.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, domain.EvenAllocation(), summary.Allocation)
	assert.Len(t, summary.Positions, domain.PositionCount)
	assert.Equal(t, 1, summary.Depositors)
	assert.False(t, summary.Halted)
}

func TestAccountsPersistAcrossRepository(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)

	stored, err := svc.repo.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stored.Claims.Equal(decimal.NewFromInt(1000)))
	assert.True(t, stored.CumulativeDeposited.Equal(decimal.NewFromInt(1000)))
}

func TestDepositorsListsPersistedAccounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	empty, err := svc.Depositors(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, "bob", decimal.NewFromInt(500))
	require.NoError(t, err)

	accounts, err := svc.Depositors(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	byAddress := map[string]decimal.Decimal{}
	for _, acct := range accounts {
		byAddress[acct.Address] = acct.Claims
	}
	assert.True(t, byAddress["alice"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, byAddress["bob"].Equal(decimal.NewFromInt(500)))
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Deposit(ctx, "alice", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NoError(t, svc.SaveSnapshot(ctx))

	snap, err := svc.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.TotalValue.Equal(decimal.NewFromInt(1000)))
	assert.True(t, snap.TotalClaims.Equal(decimal.NewFromInt(1000)))
	assert.True(t, snap.SharePrice.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, domain.EvenAllocation(), snap.Allocation)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestRejectedOperationsEmitFailureEvents(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	log := zerolog.New(&buf)

	db, err := database.New(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	positions := adapters.NewSet(
		adapters.NewLendingPool(420, zerolog.Nop()),
		adapters.NewStakingPosition(900, zerolog.Nop()),
		adapters.NewLiquidityPosition(1250, zerolog.Nop()),
	)
	svc := NewService(NewVault(), positions, NewRepository(db), events.NewManager(log), 100, zerolog.Nop())

	cases := []struct {
		name string
		op   func() error
	}{
		{"invalid deposit amount", func() error {
			_, err := svc.Deposit(ctx, "alice", decimal.Zero)
			return err
		}},
		{"missing address", func() error {
			_, err := svc.Deposit(ctx, "", decimal.NewFromInt(10))
			return err
		}},
		{"unknown withdrawer", func() error {
			_, err := svc.Withdraw(ctx, "stranger", decimal.NewFromInt(1))
			return err
		}},
	}
	for _, tc := range cases {
		buf.Reset()
		require.Error(t, tc.op(), tc.name)
		assert.True(t, strings.Contains(buf.String(), string(events.OperationFailed)), tc.name)
	}
}
