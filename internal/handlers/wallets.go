package handlers

import (
	"database/sql"
	"net/http"

	"staypay/internal/middleware"
	"staypay/internal/models"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.wallets.GetByOwner(r.Context(), models.OwnerRealtor, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "no wallet for this account")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":                wallet.ID,
		"balance_available": valueToMoney(wallet.BalanceAvailable),
		"balance_pending":   valueToMoney(wallet.BalancePending),
	})
}

func (h *Handler) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.wallets.GetByOwner(r.Context(), models.OwnerRealtor, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "no wallet for this account")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 20)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	entries, err := h.entries.ListByWallet(r.Context(), wallet.ID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	normalized := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		normalized = append(normalized, map[string]any{
			"id":           entry.ID,
			"type":         entry.Type,
			"source":       entry.Source,
			"amount":       valueToMoney(entry.Amount),
			"reference_id": entry.ReferenceID,
			"status":       entry.Status,
			"created_at":   entry.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}
