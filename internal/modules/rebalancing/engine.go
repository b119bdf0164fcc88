// Package rebalancing validates and executes reallocation proposals from the
// untrusted proposer. Execution is all-or-nothing: a proposal either converges
// to its target within tolerance or leaves the pool exactly as it was.
package rebalancing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/adapters"
	"github.com/aristath/poolvault/internal/domain"
	"github.com/aristath/poolvault/internal/events"
	"github.com/aristath/poolvault/internal/modules/history"
	"github.com/aristath/poolvault/internal/modules/ledger"
	"github.com/aristath/poolvault/internal/modules/oracle"
)

const moduleName = "rebalancing"

// Engine drives the proposal lifecycle: Idle, Validating, OracleChecking,
// Executing, Recorded. Any failure short-circuits back to Idle with no
// mutation. A consistency fault halts the engine until Reset.
type Engine struct {
	vault        *ledger.Vault
	positions    *adapters.Set
	gate         *oracle.Gate
	history      *history.Repository
	events       *events.Manager
	toleranceBps int64
	log          zerolog.Logger

	mu         sync.Mutex
	state      EngineState
	lastError  string
	lastResult *Result
}

// NewEngine creates a rebalancing engine.
func NewEngine(vault *ledger.Vault, positions *adapters.Set, gate *oracle.Gate, hist *history.Repository, ev *events.Manager, toleranceBps int64, log zerolog.Logger) *Engine {
	return &Engine{
		vault:        vault,
		positions:    positions,
		gate:         gate,
		history:      hist,
		events:       ev,
		toleranceBps: toleranceBps,
		state:        StateIdle,
		log:          log.With().Str("service", moduleName).Logger(),
	}
}

func (e *Engine) setState(s EngineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Submit runs one proposal through the full lifecycle. Rejections are not
// cached: the same proposal resubmitted later is re-evaluated against current
// oracle and ledger state.
func (e *Engine) Submit(ctx context.Context, proposal Proposal) (*Result, error) {
	if e.vault.Halted() {
		return nil, fmt.Errorf("%w: reset required before new proposals", domain.ErrRebalancingHalted)
	}

	if err := e.vault.Acquire(); err != nil {
		return nil, err
	}
	defer e.vault.Release()

	result, err := e.run(ctx, proposal.TargetAllocation)
	e.mu.Lock()
	e.state = StateIdle
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
		e.lastResult = result
	}
	e.mu.Unlock()

	if err != nil {
		e.events.EmitFailure(moduleName, err, map[string]interface{}{
			"target_allocation": proposal.TargetAllocation.String(),
			"submitted_at":      proposal.SubmittedAt,
		})
		e.log.Warn().Err(err).Str("target", proposal.TargetAllocation.String()).Msg("Proposal rejected")
		return nil, err
	}

	e.events.Emit(events.Rebalanced, moduleName, map[string]interface{}{
		"previous_allocation": result.PreviousAllocation.String(),
		"new_allocation":      result.NewAllocation.String(),
		"submitted_at":        proposal.SubmittedAt,
		"executed_at":         result.ExecutedAt,
	})
	e.log.Info().
		Str("previous", result.PreviousAllocation.String()).
		Str("new", result.NewAllocation.String()).
		Msg("Rebalance recorded")
	return result, nil
}

func (e *Engine) run(ctx context.Context, target domain.Allocation) (*Result, error) {
	e.setState(StateValidating)
	if err := target.Validate(); err != nil {
		return nil, err
	}

	e.setState(StateOracleChecking)
	if err := e.gate.CheckSafety(ctx); err != nil {
		return nil, err
	}

	e.setState(StateExecuting)
	state := e.vault.State()
	balances, err := e.positions.Balances(ctx)
	if err != nil {
		return nil, err
	}

	p := buildPlan(state.TotalValue, balances, target)
	res, err := p.execute(ctx, e.positions)
	if err != nil {
		if isFault(err) {
			e.halt(err)
		}
		return nil, err
	}

	if err := p.verify(ctx, e.positions, state.TotalValue, e.toleranceBps); err != nil {
		return nil, e.abort(ctx, res, err)
	}

	// Value invariant against the prospective committed state. Checked
	// before anything is committed so a fault leaves the pool untouched.
	if err := e.checkValueInvariant(ctx, state, res.bufferDelta); err != nil {
		return nil, e.abort(ctx, res, err)
	}

	e.setState(StateRecorded)
	now := time.Now()
	e.vault.CommitRebalance(target, res.bufferDelta, now)

	result := &Result{
		PreviousAllocation: state.Allocation,
		NewAllocation:      target,
		ExecutedAt:         now,
	}

	entry, err := e.history.Append(ctx, state.Allocation, target, now)
	if err != nil {
		// The rebalance itself is committed; losing the audit row is logged
		// loudly but does not fail the operation.
		e.log.Error().Err(err).Msg("Failed to append history entry")
	} else {
		result.HistoryID = entry.ID
	}

	return result, nil
}

// abort rolls the executed plan back and escalates to a halt when either the
// triggering error or the rollback itself is a consistency fault.
func (e *Engine) abort(ctx context.Context, res execResult, cause error) error {
	if undoErr := undoSteps(ctx, e.positions, res.applied); undoErr != nil {
		fault := fmt.Errorf("%w: rollback failed after %v: %v", domain.ErrConsistencyFault, cause, undoErr)
		e.halt(fault)
		return fault
	}
	if isFault(cause) {
		e.halt(cause)
	}
	return cause
}

// checkValueInvariant verifies that buffer plus positions would still match
// the ledger total within tolerance once the buffer delta commits. Venue
// conversion losses beyond the tolerance surface here as a fault.
func (e *Engine) checkValueInvariant(ctx context.Context, state ledger.State, bufferDelta decimal.Decimal) error {
	positionsTotal, err := e.positions.TotalBalance(ctx)
	if err != nil {
		return err
	}
	tracked := state.Buffer.Add(bufferDelta).Add(positionsTotal)
	drift := state.TotalValue.Sub(tracked).Abs()
	limit := domain.BpsOf(state.TotalValue, e.toleranceBps)
	if drift.GreaterThan(limit) {
		return fmt.Errorf("%w: tracked value %s drifts %s from total %s",
			domain.ErrConsistencyFault, tracked.String(), drift.String(), state.TotalValue.String())
	}
	return nil
}

func isFault(err error) bool {
	return errors.Is(err, domain.ErrConsistencyFault)
}

func (e *Engine) halt(err error) {
	e.vault.Halt()
	e.events.Emit(events.RebalancingHalted, moduleName, map[string]interface{}{
		"reason": err.Error(),
	})
	e.log.Error().Err(err).Msg("Engine halted")
}

// Reset clears a halt after operator intervention.
func (e *Engine) Reset(ctx context.Context) {
	e.vault.ClearHalt()
	e.mu.Lock()
	e.lastError = ""
	e.mu.Unlock()
	e.events.Emit(events.RebalancingReset, moduleName, nil)
	e.log.Info().Msg("Engine reset")
}

// Status reports the engine and allocation state.
func (e *Engine) Status(ctx context.Context) Status {
	e.mu.Lock()
	state := e.state
	lastError := e.lastError
	e.mu.Unlock()

	vs := e.vault.State()
	status := Status{
		State:             state,
		Halted:            e.vault.Halted(),
		CurrentAllocation: vs.Allocation,
		LastError:         lastError,
	}
	if !vs.LastRebalance.IsZero() {
		t := vs.LastRebalance
		status.LastRebalance = &t
	}
	return status
}
