package domain

import "errors"

// Failure taxonomy surfaced by the vault's public operations. Every failure
// rolls the triggering operation back completely; callers match with
// errors.Is and wrapped context carries the detail.
var (
	// Invalid caller input: zero/negative amounts, malformed proposals.
	ErrInvalidInput      = errors.New("invalid input")
	ErrMalformedProposal = errors.New("malformed proposal")

	// Shortfalls on the caller or pool side.
	ErrInsufficientDeposit   = errors.New("deposit too small to mint claims")
	ErrInsufficientClaims    = errors.New("insufficient claims")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// Oracle gate failures. Rebalancing is expected to fail this way under
	// unsafe market conditions; the proposer retries later.
	ErrNoPriceData        = errors.New("no price data")
	ErrStalePrice         = errors.New("stale price")
	ErrVolatilityExceeded = errors.New("volatility exceeded")

	// Execution failures.
	ErrAdapterFailure    = errors.New("position adapter failure")
	ErrToleranceExceeded = errors.New("post-rebalance tolerance exceeded")

	// ErrConsistencyFault means a core invariant no longer holds. Rebalancing
	// halts until an operator resets the engine.
	ErrConsistencyFault = errors.New("ledger consistency fault")

	// Serialized-mutation admission control.
	ErrOperationInProgress = errors.New("operation in progress")
	ErrRebalancingHalted   = errors.New("rebalancing halted")

	// Proposer authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers lookups of records that do not exist.
	ErrNotFound = errors.New("not found")
)
