// Package adapters holds the position adapters the vault deploys capital
// through. Every venue exposes the same four-operation surface so the ledger
// and the rebalancing engine never special-case a position.
package adapters

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/domain"
)

// Adapter is the capability surface a yield venue must implement. Deposit and
// Withdraw return the effective amount after the venue's entry or exit rate is
// applied; with the default 1:1 rates the effective amount equals the request.
// A failed operation leaves the venue balance untouched.
type Adapter interface {
	Name() string
	Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
	YieldRate(ctx context.Context) (int64, error)
}

// book is the venue-side position ledger shared by all simulated adapters.
// entryRate and exitRate model conversion between base units and the venue's
// position units.
type book struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	yieldBps  int64
	entryRate decimal.Decimal
	exitRate  decimal.Decimal
	failNext  error
}

func newBook(yieldBps int64) book {
	return book{
		balance:   decimal.Zero,
		yieldBps:  yieldBps,
		entryRate: decimal.NewFromInt(1),
		exitRate:  decimal.NewFromInt(1),
	}
}

// FailNext arms a one-shot fault consumed by the next Deposit or Withdraw.
// Used in tests to exercise rollback paths.
func (b *book) FailNext(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = err
}

// SetRates overrides the 1:1 entry and exit conversion rates.
func (b *book) SetRates(entry, exit decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entryRate = entry
	b.exitRate = exit
}

func (b *book) deposit(name string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s deposit amount must be positive", domain.ErrInvalidInput, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return decimal.Zero, fmt.Errorf("%w: %s deposit: %v", domain.ErrAdapterFailure, name, err)
	}

	credited := amount.Mul(b.entryRate)
	b.balance = b.balance.Add(credited)
	return credited, nil
}

func (b *book) withdraw(name string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: %s withdraw amount must be positive", domain.ErrInvalidInput, name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return decimal.Zero, fmt.Errorf("%w: %s withdraw: %v", domain.ErrAdapterFailure, name, err)
	}

	if b.balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: %s holds %s, requested %s",
			domain.ErrInsufficientLiquidity, name, b.balance.String(), amount.String())
	}

	b.balance = b.balance.Sub(amount)
	return amount.Mul(b.exitRate), nil
}

func (b *book) currentBalance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

func (b *book) currentYield() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.yieldBps
}

// Set is the fixed registry of the vault's positions, ordered by index.
// Registration happens once at startup; the ordering drives deterministic
// drain and seed sequencing.
type Set struct {
	positions [domain.PositionCount]Adapter
}

// NewSet builds the registry in position-index order.
func NewSet(lending, staking, liquidity Adapter) *Set {
	return &Set{positions: [domain.PositionCount]Adapter{lending, staking, liquidity}}
}

// At returns the adapter at the given position index.
func (s *Set) At(i int) Adapter {
	return s.positions[i]
}

// Balances reads every position balance in index order.
func (s *Set) Balances(ctx context.Context) ([domain.PositionCount]decimal.Decimal, error) {
	var out [domain.PositionCount]decimal.Decimal
	for i, a := range s.positions {
		bal, err := a.Balance(ctx)
		if err != nil {
			return out, fmt.Errorf("reading %s balance: %w", a.Name(), err)
		}
		out[i] = bal
	}
	return out, nil
}

// TotalBalance sums the balances across all positions.
func (s *Set) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	balances, err := s.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, bal := range balances {
		total = total.Add(bal)
	}
	return total, nil
}
