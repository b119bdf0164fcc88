package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Ledger events
	Deposited EventType = "DEPOSITED"
	Withdrawn EventType = "WITHDRAWN"

	// Rebalancing events
	Rebalanced        EventType = "REBALANCED"
	RebalancingHalted EventType = "REBALANCING_HALTED"
	RebalancingReset  EventType = "REBALANCING_RESET"

	// Housekeeping events
	VaultSnapshotSaved EventType = "VAULT_SNAPSHOT_SAVED"
	OracleRefreshed    EventType = "ORACLE_REFRESHED"

	// Failure events
	OperationFailed EventType = "OPERATION_FAILED"
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	// Log event
	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitFailure emits an operation failure event
func (m *Manager) EmitFailure(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(OperationFailed, module, data)
}
