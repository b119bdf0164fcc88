// Package ledger owns the pooled-value and per-depositor-claim bookkeeping.
// The Vault is the process-wide singleton state; the Service wraps it with
// the deposit and withdrawal flows.
package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/domain"
)

// State is an immutable snapshot of the vault's aggregate figures.
type State struct {
	TotalValue    decimal.Decimal
	TotalClaims   decimal.Decimal
	Buffer        decimal.Decimal
	Allocation    domain.Allocation
	LastRebalance time.Time
}

// Vault holds the pool's authoritative state. Every mutating operation runs
// inside the admission guard so no two mutations interleave; reads take the
// read lock and may run concurrently with each other.
type Vault struct {
	mu     sync.RWMutex
	busy   atomic.Bool
	halted atomic.Bool

	totalValue    decimal.Decimal
	totalClaims   decimal.Decimal
	buffer        decimal.Decimal
	allocation    domain.Allocation
	lastRebalance time.Time
	accounts      map[string]*Account
}

// NewVault creates an empty vault seeded with the even allocation.
func NewVault() *Vault {
	return &Vault{
		totalValue:  decimal.Zero,
		totalClaims: decimal.Zero,
		buffer:      decimal.Zero,
		allocation:  domain.EvenAllocation(),
		accounts:    make(map[string]*Account),
	}
}

// Acquire admits one mutating operation. It fails fast instead of queueing so
// a re-entrant call from an adapter callback cannot deadlock the vault.
func (v *Vault) Acquire() error {
	if !v.busy.CompareAndSwap(false, true) {
		return domain.ErrOperationInProgress
	}
	return nil
}

// Release ends the current mutating operation.
func (v *Vault) Release() {
	v.busy.Store(false)
}

// Halt disables rebalancing until ClearHalt is called.
func (v *Vault) Halt() {
	v.halted.Store(true)
}

// Halted reports whether rebalancing is disabled.
func (v *Vault) Halted() bool {
	return v.halted.Load()
}

// ClearHalt re-enables rebalancing after operator intervention.
func (v *Vault) ClearHalt() {
	v.halted.Store(false)
}

// State returns a snapshot of the aggregate figures.
func (v *Vault) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return State{
		TotalValue:    v.totalValue,
		TotalClaims:   v.totalClaims,
		Buffer:        v.buffer,
		Allocation:    v.allocation,
		LastRebalance: v.lastRebalance,
	}
}

// SharePrice is totalValue / totalClaims, defined as 1.0 for an empty vault.
func (v *Vault) SharePrice() decimal.Decimal {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return sharePrice(v.totalValue, v.totalClaims)
}

func sharePrice(totalValue, totalClaims decimal.Decimal) decimal.Decimal {
	if totalClaims.IsZero() {
		return decimal.NewFromInt(1)
	}
	return totalValue.DivRound(totalClaims, 18)
}

// Account returns a copy of the depositor's account.
func (v *Vault) Account(address string) (Account, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	acct, ok := v.accounts[address]
	if !ok {
		return Account{}, false
	}
	return *acct, true
}

// AccountCount returns the number of depositor records, empty ones included.
func (v *Vault) AccountCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.accounts)
}

// CommitDeposit applies a fully executed deposit: claims minted, adapter
// seeding done, flooring remainder parked in the buffer.
func (v *Vault) CommitDeposit(address string, amount, claims, remainder decimal.Decimal, now time.Time) Account {
	v.mu.Lock()
	defer v.mu.Unlock()

	acct, ok := v.accounts[address]
	if !ok {
		acct = &Account{
			Address:             address,
			Claims:              decimal.Zero,
			CumulativeDeposited: decimal.Zero,
			CreatedAt:           now,
		}
		v.accounts[address] = acct
	}

	acct.Claims = acct.Claims.Add(claims)
	acct.CumulativeDeposited = acct.CumulativeDeposited.Add(amount)
	acct.UpdatedAt = now

	v.totalValue = v.totalValue.Add(amount)
	v.totalClaims = v.totalClaims.Add(claims)
	v.buffer = v.buffer.Add(remainder)

	return *acct
}

// CommitWithdraw applies a fully executed withdrawal. bufferTake is the part
// of the payout drained from the liquid buffer rather than the adapters.
func (v *Vault) CommitWithdraw(address string, amount, claims, bufferTake decimal.Decimal, now time.Time) Account {
	v.mu.Lock()
	defer v.mu.Unlock()

	acct := v.accounts[address]
	acct.Claims = acct.Claims.Sub(claims)
	acct.UpdatedAt = now

	v.totalValue = v.totalValue.Sub(amount)
	v.totalClaims = v.totalClaims.Sub(claims)
	v.buffer = v.buffer.Sub(bufferTake)

	return *acct
}

// CommitRebalance records the approved allocation. bufferDelta is the net
// buffer movement of the executed plan (exited minus entered).
func (v *Vault) CommitRebalance(alloc domain.Allocation, bufferDelta decimal.Decimal, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.allocation = alloc
	v.buffer = v.buffer.Add(bufferDelta)
	v.lastRebalance = at
}

// CheckConsistency verifies the core invariants against the observed adapter
// total: claims ledger sums exactly, value and claims reach zero together,
// and tracked value matches buffer plus positions within the tolerance.
func (v *Vault) CheckConsistency(positionsTotal decimal.Decimal, toleranceBps int64) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	claimSum := decimal.Zero
	for _, acct := range v.accounts {
		claimSum = claimSum.Add(acct.Claims)
	}
	if !claimSum.Equal(v.totalClaims) {
		return fmt.Errorf("%w: claim sum %s != total claims %s",
			domain.ErrConsistencyFault, claimSum.String(), v.totalClaims.String())
	}

	if v.totalValue.IsZero() != v.totalClaims.IsZero() {
		return fmt.Errorf("%w: value %s and claims %s must reach zero together",
			domain.ErrConsistencyFault, v.totalValue.String(), v.totalClaims.String())
	}

	tracked := v.buffer.Add(positionsTotal)
	drift := v.totalValue.Sub(tracked).Abs()
	limit := domain.BpsOf(v.totalValue, toleranceBps)
	if drift.GreaterThan(limit) {
		return fmt.Errorf("%w: tracked value %s drifts %s from total %s",
			domain.ErrConsistencyFault, tracked.String(), drift.String(), v.totalValue.String())
	}

	return nil
}
