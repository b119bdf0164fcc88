package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/adapters"
	"github.com/aristath/poolvault/internal/domain"
	"github.com/aristath/poolvault/internal/events"
)

const moduleName = "ledger"

// Service runs the deposit and withdrawal flows over the vault and the
// position adapters. Both flows are all-or-nothing: adapter movements happen
// first and are compensated on failure, state commits only after every
// external call succeeded.
type Service struct {
	vault        *Vault
	positions    *adapters.Set
	repo         *Repository
	events       *events.Manager
	toleranceBps int64
	log          zerolog.Logger
}

// NewService creates a ledger service.
func NewService(vault *Vault, positions *adapters.Set, repo *Repository, ev *events.Manager, toleranceBps int64, log zerolog.Logger) *Service {
	return &Service{
		vault:        vault,
		positions:    positions,
		repo:         repo,
		events:       ev,
		toleranceBps: toleranceBps,
		log:          log.With().Str("service", moduleName).Logger(),
	}
}

// Vault exposes the shared vault state for the rebalancing engine.
func (s *Service) Vault() *Vault {
	return s.vault
}

// failOp emits OperationFailed and hands the error back. Every failed
// deposit or withdrawal goes through here so rejections are observable.
func (s *Service) failOp(op, address string, err error, fields map[string]interface{}) error {
	data := map[string]interface{}{
		"operation": op,
		"address":   address,
	}
	for k, v := range fields {
		data[k] = v
	}
	s.events.EmitFailure(moduleName, err, data)
	return err
}

// Deposit pools the amount, mints claims at the current share ratio and seeds
// the adapters proportionally to the active allocation. The flooring
// remainder of the proportional split stays in the liquid buffer.
func (s *Service) Deposit(ctx context.Context, address string, amount decimal.Decimal) (*DepositResult, error) {
	if address == "" {
		return nil, s.failOp("deposit", address,
			fmt.Errorf("%w: address is required", domain.ErrInvalidInput), nil)
	}
	if amount.Sign() <= 0 {
		return nil, s.failOp("deposit", address,
			fmt.Errorf("%w: deposit amount must be positive", domain.ErrInvalidInput), nil)
	}

	if err := s.vault.Acquire(); err != nil {
		return nil, s.failOp("deposit", address, err, nil)
	}
	defer s.vault.Release()

	state := s.vault.State()

	// First deposit into an empty vault mints 1:1, later deposits mint at
	// the current ratio. A deposit too small to mint a single claim unit is
	// rejected rather than silently absorbed by the pool.
	var claims decimal.Decimal
	if state.TotalClaims.IsZero() {
		claims = amount
	} else {
		claims = domain.MulDivFloor(amount, state.TotalClaims, state.TotalValue)
		if claims.IsZero() {
			return nil, s.failOp("deposit", address,
				fmt.Errorf("%w: %s mints zero claims at share price %s",
					domain.ErrInsufficientDeposit, amount.String(), sharePrice(state.TotalValue, state.TotalClaims).String()),
				map[string]interface{}{"amount": amount.String()})
		}
	}

	seeded, err := s.seedPositions(ctx, amount, state.Allocation)
	if err != nil {
		return nil, s.failOp("deposit", address, err,
			map[string]interface{}{"amount": amount.String()})
	}
	remainder := amount.Sub(seeded)

	now := time.Now()
	acct := s.vault.CommitDeposit(address, amount, claims, remainder, now)

	if err := s.repo.SaveAccount(ctx, acct); err != nil {
		s.log.Error().Err(err).Str("address", address).Msg("Failed to persist account")
	}

	s.events.Emit(events.Deposited, moduleName, map[string]interface{}{
		"depositor":     address,
		"amount":        amount.String(),
		"claims_issued": claims.String(),
	})

	if err := s.verifyConsistency(ctx); err != nil {
		return nil, err
	}

	return &DepositResult{
		Address:      address,
		Amount:       amount,
		ClaimsIssued: claims,
		SharePrice:   s.vault.SharePrice(),
	}, nil
}

// seedPositions pushes the deposit into the adapters proportionally to the
// allocation, in ascending index order. A mid-sequence failure withdraws the
// already seeded shares again before returning.
func (s *Service) seedPositions(ctx context.Context, amount decimal.Decimal, alloc domain.Allocation) (decimal.Decimal, error) {
	seeded := decimal.Zero
	shares := make([]decimal.Decimal, domain.PositionCount)

	for i := 0; i < domain.PositionCount; i++ {
		share := domain.BpsOf(amount, alloc[i])
		if share.Sign() <= 0 {
			continue
		}
		if _, err := s.positions.At(i).Deposit(ctx, share); err != nil {
			s.compensateDeposits(ctx, shares)
			return decimal.Zero, fmt.Errorf("seeding %s: %w", s.positions.At(i).Name(), err)
		}
		shares[i] = share
		seeded = seeded.Add(share)
	}
	return seeded, nil
}

func (s *Service) compensateDeposits(ctx context.Context, shares []decimal.Decimal) {
	for i, share := range shares {
		if share.Sign() <= 0 {
			continue
		}
		if _, err := s.positions.At(i).Withdraw(ctx, share); err != nil {
			s.vault.Halt()
			s.log.Error().Err(err).Str("adapter", s.positions.At(i).Name()).
				Msg("Compensating withdrawal failed, halting rebalancing")
		}
	}
}

// Withdraw burns the claims and pays out their pre-mutation value, draining
// the liquid buffer first and then the adapters in ascending index order.
func (s *Service) Withdraw(ctx context.Context, address string, claims decimal.Decimal) (*WithdrawResult, error) {
	if address == "" {
		return nil, s.failOp("withdraw", address,
			fmt.Errorf("%w: address is required", domain.ErrInvalidInput), nil)
	}
	if claims.Sign() <= 0 {
		return nil, s.failOp("withdraw", address,
			fmt.Errorf("%w: claims to burn must be positive", domain.ErrInvalidInput), nil)
	}

	if err := s.vault.Acquire(); err != nil {
		return nil, s.failOp("withdraw", address, err, nil)
	}
	defer s.vault.Release()

	acct, ok := s.vault.Account(address)
	if !ok || acct.Claims.LessThan(claims) {
		held := decimal.Zero
		if ok {
			held = acct.Claims
		}
		return nil, s.failOp("withdraw", address,
			fmt.Errorf("%w: %s holds %s claims, requested %s",
				domain.ErrInsufficientClaims, address, held.String(), claims.String()),
			map[string]interface{}{"claims": claims.String()})
	}

	state := s.vault.State()
	amount := domain.MulDivFloor(claims, state.TotalValue, state.TotalClaims)

	bufferTake, takes, err := s.planDrain(ctx, amount, state.Buffer)
	if err != nil {
		return nil, s.failOp("withdraw", address, err,
			map[string]interface{}{"claims": claims.String()})
	}

	if err := s.executeDrain(ctx, takes); err != nil {
		return nil, s.failOp("withdraw", address, err,
			map[string]interface{}{"claims": claims.String()})
	}

	now := time.Now()
	updated := s.vault.CommitWithdraw(address, amount, claims, bufferTake, now)

	if err := s.repo.SaveAccount(ctx, updated); err != nil {
		s.log.Error().Err(err).Str("address", address).Msg("Failed to persist account")
	}

	s.events.Emit(events.Withdrawn, moduleName, map[string]interface{}{
		"depositor":       address,
		"claims_burned":   claims.String(),
		"amount_returned": amount.String(),
	})

	if err := s.verifyConsistency(ctx); err != nil {
		return nil, err
	}

	return &WithdrawResult{
		Address:        address,
		ClaimsBurned:   claims,
		AmountReturned: amount,
	}, nil
}

// planDrain decides how much to take from the buffer and from each adapter
// without moving anything. The whole payout must be coverable or the
// withdrawal is rejected up front.
func (s *Service) planDrain(ctx context.Context, amount, buffer decimal.Decimal) (decimal.Decimal, []decimal.Decimal, error) {
	bufferTake := decimal.Min(buffer, amount)
	remaining := amount.Sub(bufferTake)

	takes := make([]decimal.Decimal, domain.PositionCount)
	if remaining.Sign() > 0 {
		balances, err := s.positions.Balances(ctx)
		if err != nil {
			return decimal.Zero, nil, err
		}
		for i := 0; i < domain.PositionCount && remaining.Sign() > 0; i++ {
			take := decimal.Min(balances[i], remaining)
			takes[i] = take
			remaining = remaining.Sub(take)
		}
	}

	if remaining.Sign() > 0 {
		return decimal.Zero, nil, fmt.Errorf("%w: pool is short %s of the requested payout",
			domain.ErrInsufficientLiquidity, remaining.String())
	}
	return bufferTake, takes, nil
}

// executeDrain performs the planned adapter withdrawals. A mid-sequence
// failure re-deposits what was already drained before returning.
func (s *Service) executeDrain(ctx context.Context, takes []decimal.Decimal) error {
	done := make([]decimal.Decimal, domain.PositionCount)
	for i, take := range takes {
		if take.Sign() <= 0 {
			continue
		}
		if _, err := s.positions.At(i).Withdraw(ctx, take); err != nil {
			s.compensateWithdrawals(ctx, done)
			return fmt.Errorf("draining %s: %w", s.positions.At(i).Name(), err)
		}
		done[i] = take
	}
	return nil
}

func (s *Service) compensateWithdrawals(ctx context.Context, done []decimal.Decimal) {
	for i, take := range done {
		if take.Sign() <= 0 {
			continue
		}
		if _, err := s.positions.At(i).Deposit(ctx, take); err != nil {
			s.vault.Halt()
			s.log.Error().Err(err).Str("adapter", s.positions.At(i).Name()).
				Msg("Compensating deposit failed, halting rebalancing")
		}
	}
}

// verifyConsistency checks the ledger invariants against the live adapter
// balances. A violation halts rebalancing until an operator resets it.
func (s *Service) verifyConsistency(ctx context.Context) error {
	positionsTotal, err := s.positions.TotalBalance(ctx)
	if err != nil {
		return err
	}
	if err := s.vault.CheckConsistency(positionsTotal, s.toleranceBps); err != nil {
		s.vault.Halt()
		s.events.EmitFailure(moduleName, err, nil)
		s.log.Error().Err(err).Msg("Consistency fault, halting rebalancing")
		return err
	}
	return nil
}

// Depositor returns the query view for one address.
func (s *Service) Depositor(ctx context.Context, address string) (*DepositorView, error) {
	acct, ok := s.vault.Account(address)
	if !ok {
		return nil, fmt.Errorf("%w: depositor %s", domain.ErrNotFound, address)
	}

	state := s.vault.State()
	value := decimal.Zero
	if !state.TotalClaims.IsZero() {
		value = domain.MulDivFloor(acct.Claims, state.TotalValue, state.TotalClaims)
	}
	yield := decimal.Max(decimal.Zero, value.Sub(acct.CumulativeDeposited))

	return &DepositorView{
		Address:             acct.Address,
		Claims:              acct.Claims,
		Value:               value,
		Yield:               yield,
		CumulativeDeposited: acct.CumulativeDeposited,
	}, nil
}

// Depositors lists every persisted account, most recently active first.
func (s *Service) Depositors(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// Summary returns the public view of the pool.
func (s *Service) Summary(ctx context.Context) (*VaultSummary, error) {
	state := s.vault.State()

	positions := make([]PositionView, 0, domain.PositionCount)
	for i := 0; i < domain.PositionCount; i++ {
		a := s.positions.At(i)
		bal, err := a.Balance(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading %s balance: %w", a.Name(), err)
		}
		rate, err := a.YieldRate(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading %s yield rate: %w", a.Name(), err)
		}
		positions = append(positions, PositionView{
			Name:          a.Name(),
			Balance:       bal,
			YieldRateBps:  rate,
			AllocationBps: state.Allocation[i],
		})
	}

	summary := &VaultSummary{
		TotalValue:  state.TotalValue,
		TotalClaims: state.TotalClaims,
		SharePrice:  s.vault.SharePrice(),
		Buffer:      state.Buffer,
		Allocation:  state.Allocation,
		Positions:   positions,
		Depositors:  s.vault.AccountCount(),
		Halted:      s.vault.Halted(),
	}
	if !state.LastRebalance.IsZero() {
		t := state.LastRebalance
		summary.LastRebalance = &t
	}
	return summary, nil
}

// SaveSnapshot writes a point-in-time record of the pool. Called by the
// daily snapshot job.
func (s *Service) SaveSnapshot(ctx context.Context) error {
	state := s.vault.State()
	snap := Snapshot{
		TotalValue:  state.TotalValue,
		TotalClaims: state.TotalClaims,
		SharePrice:  s.vault.SharePrice(),
		Allocation:  state.Allocation,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	s.events.Emit(events.VaultSnapshotSaved, moduleName, map[string]interface{}{
		"total_value": snap.TotalValue.String(),
		"share_price": snap.SharePrice.String(),
	})
	return nil
}

// LatestSnapshot returns the most recent persisted snapshot, or ErrNotFound
// when none has been taken yet.
func (s *Service) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	return s.repo.LatestSnapshot(ctx)
}
