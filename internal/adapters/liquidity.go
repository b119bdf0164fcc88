package adapters

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LiquidityPosition simulates a liquidity-provision position on an AMM pool.
// The vault's share of the pool is carried in base units; single-sided entry
// and exit conversion is captured by the book's rate factors.
type LiquidityPosition struct {
	book
	log zerolog.Logger
}

// NewLiquidityPosition creates an LP position with the given advertised
// fee yield in basis points.
func NewLiquidityPosition(yieldBps int64, log zerolog.Logger) *LiquidityPosition {
	return &LiquidityPosition{
		book: newBook(yieldBps),
		log:  log.With().Str("adapter", "liquidity").Logger(),
	}
}

func (p *LiquidityPosition) Name() string { return "liquidity" }

// Deposit adds single-sided liquidity to the pool.
func (p *LiquidityPosition) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	minted, err := p.book.deposit(p.Name(), amount)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug().Str("minted", minted.String()).Msg("Liquidity added")
	return minted, nil
}

// Withdraw burns pool share for base units.
func (p *LiquidityPosition) Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	received, err := p.book.withdraw(p.Name(), amount)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug().Str("received", received.String()).Msg("Liquidity removed")
	return received, nil
}

// Balance returns the vault's pool share valued in base units.
func (p *LiquidityPosition) Balance(ctx context.Context) (decimal.Decimal, error) {
	return p.book.currentBalance(), nil
}

// YieldRate returns the advertised fee yield in basis points.
func (p *LiquidityPosition) YieldRate(ctx context.Context) (int64, error) {
	return p.book.currentYield(), nil
}
