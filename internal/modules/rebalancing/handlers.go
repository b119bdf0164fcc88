package rebalancing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poolvault/internal/domain"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	engine *Engine
	log    zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(engine *Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "rebalancing").Logger(),
	}
}

type proposalRequest struct {
	TargetAllocation []int64 `json:"target_allocation"`
}

// HandleSubmitProposal runs a reallocation proposal through the engine.
// Proposer authorization happens in the router middleware.
func (h *Handler) HandleSubmitProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.TargetAllocation) != domain.PositionCount {
		h.writeError(w, http.StatusBadRequest, "target_allocation must have exactly three elements")
		return
	}
	var target domain.Allocation
	copy(target[:], req.TargetAllocation)

	proposal := Proposal{
		TargetAllocation: target,
		SubmittedAt:      time.Now(),
	}

	result, err := h.engine.Submit(r.Context(), proposal)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetStatus returns the engine state and current allocation
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Status(r.Context()))
}

// HandleReset clears a halted engine
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeFailure maps the failure taxonomy onto HTTP statuses. Market-gate
// rejections are expected outcomes the proposer retries later.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMalformedProposal), errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoPriceData),
		errors.Is(err, domain.ErrStalePrice),
		errors.Is(err, domain.ErrVolatilityExceeded),
		errors.Is(err, domain.ErrToleranceExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrOperationInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRebalancingHalted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrAdapterFailure):
		status = http.StatusBadGateway
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
