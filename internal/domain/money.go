package domain

import (
	"github.com/shopspring/decimal"
)

// All vault amounts are denominated in base-asset units and carried as
// decimals. Claim issuance and redemption use truncating division so the
// ledger never hands out more than the pool holds.

// MulDivFloor returns floor(a * b / c). Operands are expected to be
// non-negative; the truncating quotient then equals the floor.
func MulDivFloor(a, b, c decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// BpsOf returns floor(amount * bps / AllocationUnits).
func BpsOf(amount decimal.Decimal, bps int64) decimal.Decimal {
	return MulDivFloor(amount, decimal.NewFromInt(bps), decimal.NewFromInt(AllocationUnits))
}
