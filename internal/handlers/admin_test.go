package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"staypay/internal/models"
	"staypay/internal/services"
	"staypay/internal/store"
)

func TestAdminTransitionBooking(t *testing.T) {
	var got services.TransitionRequest
	h := newTestHandler(handlerDeps{
		bookingSvc: stubBookingService{
			transitionFn: func(ctx context.Context, req services.TransitionRequest) (models.Booking, error) {
				got = req
				if req.Reason == "" {
					return models.Booking{}, services.ErrOverrideNeedsReason
				}
				return models.Booking{ID: req.BookingID, Status: req.Target}, nil
			},
		},
	})

	rr := serveWithAuthParam(t, h.AdminTransitionBooking, "admin-1", "book-1", map[string]string{"target": "CANCELLED"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a reason, got %d", rr.Code)
	}

	rr = serveWithAuthParam(t, h.AdminTransitionBooking, "admin-1", "book-1", map[string]string{
		"target": "CANCELLED",
		"reason": "chargeback confirmed by the processor",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !got.AdminOverride {
		t.Fatal("expected an admin override transition")
	}
	if got.Target != models.BookingCancelled {
		t.Fatalf("expected CANCELLED target, got %s", got.Target)
	}
}

func TestAdminRefundPayment(t *testing.T) {
	h := newTestHandler(handlerDeps{
		paymentSvc: stubPaymentService{
			refundFn: func(ctx context.Context, paymentID, actorID string) (models.Payment, error) {
				if actorID != "admin-1" {
					t.Fatalf("expected admin-1 as actor, got %s", actorID)
				}
				return models.Payment{ID: paymentID, Status: models.PaymentRefunded, RefundAmount: 100000}, nil
			},
		},
	})
	rr := serveWithAuthParam(t, h.AdminRefundPayment, "admin-1", "pay-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "REFUNDED" {
		t.Fatalf("expected REFUNDED, got %v", body["status"])
	}
}

func TestAdminRefundNotEligible(t *testing.T) {
	h := newTestHandler(handlerDeps{
		paymentSvc: stubPaymentService{
			refundFn: func(ctx context.Context, paymentID, actorID string) (models.Payment, error) {
				return models.Payment{}, services.ErrNotRefundEligible
			},
		},
	})
	rr := serveWithAuthParam(t, h.AdminRefundPayment, "admin-1", "pay-1", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestAdminRetrySweep(t *testing.T) {
	h := newTestHandler(handlerDeps{
		retries: stubRetryCoordinator{
			retryFn: func(ctx context.Context) (services.RetryStats, error) {
				return services.RetryStats{Processed: 3, Successful: 2, Failed: 1}, nil
			},
		},
	})
	rr := serveWithAuth(t, h.AdminRetrySweep, "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["processed"] != float64(3) || body["successful"] != float64(2) || body["failed"] != float64(1) {
		t.Fatalf("unexpected sweep stats: %v", body)
	}
}

func TestPromoteAdminRequiresSuper(t *testing.T) {
	h := newTestHandler(handlerDeps{
		admin: stubAdminStore{
			isAdminFn: func(ctx context.Context, userID string) (bool, bool, error) {
				return true, false, nil
			},
		},
	})
	rr := serveWithAuthJSON(t, h.PromoteAdmin, "admin-1", map[string]string{"identifier": "ada@example.com"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-super admin, got %d", rr.Code)
	}
}

func TestPromoteAdminByEmail(t *testing.T) {
	var promotedID string
	h := newTestHandler(handlerDeps{
		admin: stubAdminStore{
			isAdminFn: func(ctx context.Context, userID string) (bool, bool, error) {
				return true, userID == "super-1", nil
			},
			createAdminFn: func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
				promotedID = userID
				if isSuper {
					t.Fatal("promoted admins must not be super")
				}
				if createdBy == nil || *createdBy != "super-1" {
					t.Fatalf("expected super-1 as creator, got %v", createdBy)
				}
				return nil
			},
		},
		users: stubUserStore{
			getByEmailFn: func(ctx context.Context, email string) (map[string]any, error) {
				return map[string]any{"id": "user-9", "email": email}, nil
			},
		},
	})

	rr := serveWithAuthJSON(t, h.PromoteAdmin, "super-1", map[string]string{"identifier": "not-an-email"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-email identifier, got %d", rr.Code)
	}

	rr = serveWithAuthJSON(t, h.PromoteAdmin, "super-1", map[string]string{"identifier": "ada@example.com"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if promotedID != "user-9" {
		t.Fatalf("expected user-9 promoted, got %s", promotedID)
	}
}

func TestGrantRoleGuards(t *testing.T) {
	var granted string
	h := newTestHandler(handlerDeps{
		admin: stubAdminStore{
			isAdminFn: func(ctx context.Context, userID string) (bool, bool, error) {
				switch userID {
				case "super-1":
					return true, true, nil
				case "admin-2":
					return true, false, nil
				case "super-2":
					return true, true, nil
				default:
					return false, false, nil
				}
			},
			grantRoleFn: func(ctx context.Context, tx store.Execer, adminUserID, role string) error {
				granted = adminUserID + ":" + role
				return nil
			},
		},
	})

	rr := serveWithAuthJSON(t, h.GrantRole, "super-1", map[string]string{"admin_user_id": "user-9", "role": "CanManageBookings"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when target is not an admin, got %d", rr.Code)
	}
	rr = serveWithAuthJSON(t, h.GrantRole, "super-1", map[string]string{"admin_user_id": "super-2", "role": "CanManageBookings"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when target is a super admin, got %d", rr.Code)
	}
	rr = serveWithAuthJSON(t, h.GrantRole, "super-1", map[string]string{"admin_user_id": "admin-2", "role": "CanManageBookings"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if granted != "admin-2:CanManageBookings" {
		t.Fatalf("unexpected grant: %s", granted)
	}
}

func TestReconcile(t *testing.T) {
	h := newTestHandler(handlerDeps{
		wallets: stubWalletStore{
			listSummsFn: func(ctx context.Context) ([]store.WalletBalanceSummary, error) {
				return []store.WalletBalanceSummary{
					{ID: "wal-1", OwnerType: "REALTOR", OwnerID: "realtor-1", BalanceAvailable: 100000, BalancePending: 0, LedgerNet: 100000, Difference: 0},
					{ID: "wal-2", OwnerType: "REALTOR", OwnerID: "realtor-2", BalanceAvailable: 5000, BalancePending: 0, LedgerNet: 4000, Difference: 1000},
				}, nil
			},
		},
	})
	rr := serveWithAuth(t, h.Reconcile, "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 wallets, got %d", len(rows))
	}
	if rows[0]["difference"] != "0.00" {
		t.Fatalf("expected a clean wallet first, got %v", rows[0]["difference"])
	}
	if rows[1]["difference"] != "10.00" {
		t.Fatalf("expected 10.00 drift, got %v", rows[1]["difference"])
	}
}
