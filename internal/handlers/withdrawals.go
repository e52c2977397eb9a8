package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"staypay/internal/middleware"
	"staypay/internal/models"
	"staypay/internal/services"

	"github.com/go-chi/chi/v5"
)

type withdrawalRequestBody struct {
	Amount string `json:"amount"`
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req withdrawalRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	withdrawal, err := h.withdrawSvc.Request(r.Context(), userID, amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusUnprocessableEntity, "insufficient available balance")
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid amount")
		default:
			respondError(w, http.StatusInternalServerError, "unable to create withdrawal")
		}
		return
	}

	// Settlement runs inline; the response reports the attempt's outcome and
	// the withdrawal stays queryable either way.
	result := h.withdrawSvc.Process(r.Context(), withdrawal.ID, false)
	withdrawal, err = h.withdrawals.GetByID(r.Context(), withdrawal.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load withdrawal")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"withdrawal": withdrawalPayload(withdrawal),
		"result":     result,
	})
}

func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 20)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	withdrawals, err := h.withdrawals.ListByRealtor(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load withdrawals")
		return
	}
	normalized := make([]map[string]any, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		normalized = append(normalized, withdrawalPayload(withdrawal))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawal, ok := h.loadOwnWithdrawal(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, withdrawalPayload(withdrawal))
}

// RetryWithdrawal re-runs a failed withdrawal on the realtor's request. If
// the failed attempt already restored the funds, the retry re-reserves them
// first.
func (h *Handler) RetryWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawal, ok := h.loadOwnWithdrawal(w, r)
	if !ok {
		return
	}
	if withdrawal.Status != models.WithdrawalFailed {
		respondError(w, http.StatusConflict, "only failed withdrawals can be retried")
		return
	}
	result := h.withdrawSvc.Process(r.Context(), withdrawal.ID, true)
	withdrawal, err := h.withdrawals.GetByID(r.Context(), withdrawal.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load withdrawal")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"withdrawal": withdrawalPayload(withdrawal),
		"result":     result,
	})
}

func (h *Handler) loadOwnWithdrawal(w http.ResponseWriter, r *http.Request) (models.WithdrawalRequest, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return models.WithdrawalRequest{}, false
	}
	withdrawal, err := h.withdrawals.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "withdrawal not found")
		return models.WithdrawalRequest{}, false
	}
	if withdrawal.RealtorID != userID {
		respondError(w, http.StatusForbidden, "not your withdrawal")
		return models.WithdrawalRequest{}, false
	}
	return withdrawal, true
}

func withdrawalPayload(withdrawal models.WithdrawalRequest) map[string]any {
	payload := map[string]any{
		"id":           withdrawal.ID,
		"amount":       valueToMoney(withdrawal.Amount),
		"fee_amount":   valueToMoney(withdrawal.FeeAmount),
		"net_amount":   valueToMoney(withdrawal.NetAmount),
		"status":       withdrawal.Status,
		"retry_count":  withdrawal.RetryCount,
		"requested_at": withdrawal.RequestedAt,
	}
	if withdrawal.FailureReason != nil {
		payload["failure_reason"] = *withdrawal.FailureReason
	}
	if withdrawal.ProcessedAt != nil {
		payload["processed_at"] = *withdrawal.ProcessedAt
	}
	return payload
}
