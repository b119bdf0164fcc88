package rebalancing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/adapters"
	"github.com/aristath/poolvault/internal/domain"
)

// step is one adapter movement within a plan.
type step struct {
	index  int
	amount decimal.Decimal
}

// plan is the full execution plan for one proposal, computed against an
// immutable snapshot before anything moves. Exits run before enters so the
// buffer always covers the enter phase.
type plan struct {
	targets [domain.PositionCount]decimal.Decimal
	exits   []step
	enters  []step
}

// execResult records what actually moved. applied holds per-step balance
// deltas as the venues reported them (positive: balance decreased), so an
// undo restores balances exactly even under non-1:1 conversion rates.
// bufferDelta is the net liquid-buffer movement.
type execResult struct {
	applied     []step
	bufferDelta decimal.Decimal
}

// buildPlan computes per-position targets and the exit and enter lists, both
// in ascending index order.
func buildPlan(totalValue decimal.Decimal, balances [domain.PositionCount]decimal.Decimal, target domain.Allocation) plan {
	p := plan{}
	for i := 0; i < domain.PositionCount; i++ {
		p.targets[i] = domain.BpsOf(totalValue, target[i])
	}
	for i := 0; i < domain.PositionCount; i++ {
		if balances[i].GreaterThan(p.targets[i]) {
			p.exits = append(p.exits, step{index: i, amount: balances[i].Sub(p.targets[i])})
		}
	}
	for i := 0; i < domain.PositionCount; i++ {
		if balances[i].LessThan(p.targets[i]) {
			p.enters = append(p.enters, step{index: i, amount: p.targets[i].Sub(balances[i])})
		}
	}
	return p
}

// execute runs the plan against the adapters. A failure mid-plan undoes the
// already applied steps in reverse before returning.
func (p plan) execute(ctx context.Context, positions *adapters.Set) (execResult, error) {
	var res execResult

	for _, s := range p.exits {
		received, err := positions.At(s.index).Withdraw(ctx, s.amount)
		if err != nil {
			if undoErr := undoSteps(ctx, positions, res.applied); undoErr != nil {
				return res, fmt.Errorf("%w: rollback failed after %v: %v", domain.ErrConsistencyFault, err, undoErr)
			}
			return res, fmt.Errorf("exit phase at %s: %w", positions.At(s.index).Name(), err)
		}
		res.applied = append(res.applied, s)
		res.bufferDelta = res.bufferDelta.Add(received)
	}

	for _, s := range p.enters {
		credited, err := positions.At(s.index).Deposit(ctx, s.amount)
		if err != nil {
			if undoErr := undoSteps(ctx, positions, res.applied); undoErr != nil {
				return res, fmt.Errorf("%w: rollback failed after %v: %v", domain.ErrConsistencyFault, err, undoErr)
			}
			return res, fmt.Errorf("enter phase at %s: %w", positions.At(s.index).Name(), err)
		}
		res.applied = append(res.applied, step{index: s.index, amount: credited.Neg()})
		res.bufferDelta = res.bufferDelta.Sub(s.amount)
	}

	return res, nil
}

// undoSteps reverses applied steps, newest first. Positive amounts were
// debits and are re-deposited; negative amounts were credits and are
// withdrawn again.
func undoSteps(ctx context.Context, positions *adapters.Set, applied []step) error {
	for i := len(applied) - 1; i >= 0; i-- {
		s := applied[i]
		var err error
		if s.amount.Sign() > 0 {
			_, err = positions.At(s.index).Deposit(ctx, s.amount)
		} else {
			_, err = positions.At(s.index).Withdraw(ctx, s.amount.Neg())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// verify checks every post-execution balance against its target within the
// tolerance, expressed in basis points of total value.
func (p plan) verify(ctx context.Context, positions *adapters.Set, totalValue decimal.Decimal, toleranceBps int64) error {
	limit := domain.BpsOf(totalValue, toleranceBps)
	balances, err := positions.Balances(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < domain.PositionCount; i++ {
		drift := balances[i].Sub(p.targets[i]).Abs()
		if drift.GreaterThan(limit) {
			return fmt.Errorf("%w: %s drifts %s from target %s, limit %s",
				domain.ErrToleranceExceeded, positions.At(i).Name(),
				drift.String(), p.targets[i].String(), limit.String())
		}
	}
	return nil
}
