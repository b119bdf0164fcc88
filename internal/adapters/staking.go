package adapters

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StakingPosition simulates a liquid-staking position. Bonded stake is
// represented through a liquid receipt so exits settle immediately instead of
// waiting out an unbonding period.
type StakingPosition struct {
	book
	log zerolog.Logger
}

// NewStakingPosition creates a staking position with the given advertised
// staking reward rate in basis points.
func NewStakingPosition(yieldBps int64, log zerolog.Logger) *StakingPosition {
	return &StakingPosition{
		book: newBook(yieldBps),
		log:  log.With().Str("adapter", "staking").Logger(),
	}
}

func (p *StakingPosition) Name() string { return "staking" }

// Deposit bonds stake through the liquid-staking provider.
func (p *StakingPosition) Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	bonded, err := p.book.deposit(p.Name(), amount)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug().Str("bonded", bonded.String()).Msg("Stake bonded")
	return bonded, nil
}

// Withdraw redeems the liquid receipt back to base units.
func (p *StakingPosition) Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	received, err := p.book.withdraw(p.Name(), amount)
	if err != nil {
		return decimal.Zero, err
	}
	p.log.Debug().Str("unbonded", received.String()).Msg("Stake redeemed")
	return received, nil
}

// Balance returns the bonded stake valued in base units.
func (p *StakingPosition) Balance(ctx context.Context) (decimal.Decimal, error) {
	return p.book.currentBalance(), nil
}

// YieldRate returns the advertised reward rate in basis points.
func (p *StakingPosition) YieldRate(ctx context.Context) (int64, error) {
	return p.book.currentYield(), nil
}
