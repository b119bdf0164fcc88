package rebalancing

import (
	"time"

	"github.com/aristath/poolvault/internal/domain"
)

// EngineState names the engine's position in the proposal lifecycle.
type EngineState string

const (
	StateIdle           EngineState = "idle"
	StateValidating     EngineState = "validating"
	StateOracleChecking EngineState = "oracle_checking"
	StateExecuting      EngineState = "executing"
	StateRecorded       EngineState = "recorded"
)

// Proposal is an untrusted reallocation instruction. It lives only for the
// duration of one Submit call; the surviving record is the history entry.
type Proposal struct {
	TargetAllocation domain.Allocation `json:"target_allocation"`
	SubmittedAt      time.Time         `json:"submitted_at"`
}

// Result reports a recorded rebalance.
type Result struct {
	PreviousAllocation domain.Allocation `json:"previous_allocation"`
	NewAllocation      domain.Allocation `json:"new_allocation"`
	ExecutedAt         time.Time         `json:"executed_at"`
	HistoryID          string            `json:"history_id,omitempty"`
}

// Status is the engine view for the status endpoint.
type Status struct {
	State             EngineState       `json:"state"`
	Halted            bool              `json:"halted"`
	CurrentAllocation domain.Allocation `json:"current_allocation"`
	LastRebalance     *time.Time        `json:"last_rebalance,omitempty"`
	LastError         string            `json:"last_error,omitempty"`
}
