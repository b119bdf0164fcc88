package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/domain"
)

// Account is one depositor's position in the pool. Claims are the accounting
// unit of proportional ownership; cumulative deposits back yield reporting.
// Accounts persist as empty records after a full withdrawal.
type Account struct {
	Address             string          `json:"address"`
	Claims              decimal.Decimal `json:"claims"`
	CumulativeDeposited decimal.Decimal `json:"cumulative_deposited"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DepositResult reports the outcome of a deposit.
type DepositResult struct {
	Address      string          `json:"address"`
	Amount       decimal.Decimal `json:"amount"`
	ClaimsIssued decimal.Decimal `json:"claims_issued"`
	SharePrice   decimal.Decimal `json:"share_price"`
}

// WithdrawResult reports the outcome of a withdrawal.
type WithdrawResult struct {
	Address        string          `json:"address"`
	ClaimsBurned   decimal.Decimal `json:"claims_burned"`
	AmountReturned decimal.Decimal `json:"amount_returned"`
}

// DepositorView is the query surface for one depositor.
type DepositorView struct {
	Address             string          `json:"address"`
	Claims              decimal.Decimal `json:"claims"`
	Value               decimal.Decimal `json:"value"`
	Yield               decimal.Decimal `json:"yield"`
	CumulativeDeposited decimal.Decimal `json:"cumulative_deposited"`
}

// PositionView is one yield position in the vault summary.
type PositionView struct {
	Name          string          `json:"name"`
	Balance       decimal.Decimal `json:"balance"`
	YieldRateBps  int64           `json:"yield_rate_bps"`
	AllocationBps int64           `json:"allocation_bps"`
}

// VaultSummary is the public view of the pool.
type VaultSummary struct {
	TotalValue    decimal.Decimal   `json:"total_value"`
	TotalClaims   decimal.Decimal   `json:"total_claims"`
	SharePrice    decimal.Decimal   `json:"share_price"`
	Buffer        decimal.Decimal   `json:"buffer"`
	Allocation    domain.Allocation `json:"allocation"`
	Positions     []PositionView    `json:"positions"`
	Depositors    int               `json:"depositors"`
	LastRebalance *time.Time        `json:"last_rebalance,omitempty"`
	Halted        bool              `json:"halted"`
}

// Snapshot is a point-in-time record of the pool written by the daily job.
type Snapshot struct {
	TotalValue  decimal.Decimal   `json:"total_value"`
	TotalClaims decimal.Decimal   `json:"total_claims"`
	SharePrice  decimal.Decimal   `json:"share_price"`
	Allocation  domain.Allocation `json:"allocation"`
	CreatedAt   time.Time         `json:"created_at"`
}
