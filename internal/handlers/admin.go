package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"staypay/internal/middleware"
	"staypay/internal/models"
	"staypay/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

type adminTransitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// AdminTransitionBooking forces a booking into a target status outside the
// normal lifecycle graph. The reason is mandatory and audited.
func (h *Handler) AdminTransitionBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req adminTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	booking, err := h.bookingSvc.Transition(r.Context(), services.TransitionRequest{
		BookingID:     chi.URLParam(r, "id"),
		Target:        models.BookingStatus(req.Target),
		ActorID:       userID,
		Reason:        req.Reason,
		AdminOverride: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOverrideNeedsReason):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInvalidStatus):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrBookingNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrStatusConflict):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "unable to transition booking")
		}
		return
	}
	respondJSON(w, http.StatusOK, bookingPayload(booking))
}

func (h *Handler) AdminRefundPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	payment, err := h.paymentSvc.Refund(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrNotRefundEligible):
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, services.ErrPaymentConflict):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "unable to refund payment")
		}
		return
	}
	respondJSON(w, http.StatusOK, paymentPayload(payment))
}

// AdminRetrySweep triggers one retry pass outside the background schedule.
func (h *Handler) AdminRetrySweep(w http.ResponseWriter, r *http.Request) {
	stats, err := h.retries.RetryFailedWithdrawals(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "retry sweep failed")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type promoteRequest struct {
	Identifier string `json:"identifier"`
}

func (h *Handler) PromoteAdmin(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	_, isSuper, err := h.admin.IsAdmin(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to verify admin")
		return
	}
	if !isSuper {
		respondError(w, http.StatusForbidden, "super_admin_required")
		return
	}
	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !strings.Contains(req.Identifier, "@") {
		respondError(w, http.StatusBadRequest, "identifier must be an email")
		return
	}
	user, err := h.users.GetByEmail(r.Context(), req.Identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to resolve user")
		return
	}
	targetUserID := valueToString(user["id"])
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.CreateAdmin(r.Context(), tx, targetUserID, false, &userID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"target_user_id": targetUserID,
		})
		return h.audit.Log(r.Context(), tx, userID, "promote_admin", "admin", targetUserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to promote admin")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "promoted"})
}

type grantRoleRequest struct {
	AdminUserID string `json:"admin_user_id"`
	Role        string `json:"role"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	_, isSuper, err := h.admin.IsAdmin(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to verify admin")
		return
	}
	if !isSuper {
		respondError(w, http.StatusForbidden, "super_admin_required")
		return
	}
	var req grantRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminUserID == "" || req.Role == "" {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	isAdmin, targetSuper, err := h.admin.IsAdmin(r.Context(), req.AdminUserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to verify target admin")
		return
	}
	if !isAdmin {
		respondError(w, http.StatusBadRequest, "target is not an admin")
		return
	}
	if targetSuper {
		respondError(w, http.StatusBadRequest, "cannot assign roles to super admin")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admin.GrantRole(r.Context(), tx, req.AdminUserID, req.Role); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"admin_user_id": req.AdminUserID,
			"role":          req.Role,
		})
		return h.audit.Log(r.Context(), tx, userID, "grant_role", "admin_role", req.AdminUserID, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to grant role")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "role_granted"})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// Reconcile compares every wallet's balances against the net of its
// COMPLETED ledger entries. A non-zero difference means a drifted wallet.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rows, err := h.wallets.ListBalanceSummaries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to reconcile wallets")
		return
	}
	normalized := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, map[string]any{
			"wallet_id":         row.ID,
			"owner_type":        row.OwnerType,
			"owner_id":          row.OwnerID,
			"balance_available": valueToMoney(row.BalanceAvailable),
			"balance_pending":   valueToMoney(row.BalancePending),
			"ledger_net":        valueToMoney(row.LedgerNet),
			"difference":        valueToMoney(row.Difference),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}
