package adapters

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LendingPool simulates a supply position on an overcollateralized lending
// market. Supplied principal is redeemable on demand up to the pool balance.
type LendingPool struct {
	book
	log zerolog.Logger
}

// NewLendingPool creates a lending position with the given advertised
// supply rate in basis points.
func NewLendingPool(yieldBps int64, log zerolog.Logger) *LendingPool {
	return &LendingPool{
		book: newBook(yieldBps),
		log:  log.With().Str("adapter", "lending").Logger(),
	}
}

func (p *LendingPool) Name() string { return "lending" }

// Deposit supplies principal to the market.
func (p *LendingPool) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	credited, err := p.book.deposit(p.Name(), amount)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug().Str("supplied", credited.String()).Msg("Principal supplied")
	return credited, nil
}

// Withdraw redeems supplied principal from the market.
func (p *LendingPool) Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	received, err := p.book.withdraw(p.Name(), amount)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug().Str("redeemed", received.String()).Msg("Principal redeemed")
	return received, nil
}

// Balance returns the supplied principal.
func (p *LendingPool) Balance(ctx context.Context) (decimal.Decimal, error) {
	return p.book.currentBalance(), nil
}

// YieldRate returns the advertised supply rate in basis points.
func (p *LendingPool) YieldRate(ctx context.Context) (int64, error) {
	return p.book.currentYield(), nil
}
