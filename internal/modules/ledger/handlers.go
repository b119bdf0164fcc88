package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/domain"
)

// Handler handles vault HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type depositRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

type withdrawRequest struct {
	Address string          `json:"address"`
	Claims  decimal.Decimal `json:"claims"`
}

// HandleDeposit pools a deposit and mints claims
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Deposit(r.Context(), req.Address, req.Amount)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleWithdraw burns claims and pays out their value
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Withdraw(r.Context(), req.Address, req.Claims)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleGetSummary returns the public pool view
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetDepositor returns one depositor's position, value and yield
func (h *Handler) HandleGetDepositor(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	view, err := h.service.Depositor(r.Context(), address)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleListDepositors returns every persisted account
func (h *Handler) HandleListDepositors(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Depositors(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(accounts),
		"depositors": accounts,
	})
}

// HandleGetLatestSnapshot returns the most recent daily snapshot
func (h *Handler) HandleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.LatestSnapshot(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// writeFailure maps the failure taxonomy onto HTTP statuses.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrMalformedProposal):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientDeposit),
		errors.Is(err, domain.ErrInsufficientClaims),
		errors.Is(err, domain.ErrInsufficientLiquidity):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrOperationInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrConsistencyFault):
		status = http.StatusInternalServerError
	}
	h.writeError(w, status, err.Error())
}

// Helper methods

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
