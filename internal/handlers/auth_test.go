package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"staypay/internal/auth"
	"staypay/internal/models"
	"staypay/internal/store"

	"github.com/lib/pq"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func postJSON(t *testing.T, handler http.HandlerFunc, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRegisterRealtorProvisionsWallet(t *testing.T) {
	var createdRole string
	var walletEnsured bool
	var adminCreated bool
	var auditAction string
	h := newTestHandler(handlerDeps{
		users: stubUserStore{
			createFn: func(ctx context.Context, tx store.Execer, id, username, email, passwordHash, role string) error {
				createdRole = role
				if passwordHash == "secret-pass-123" {
					t.Fatal("password stored in clear text")
				}
				return nil
			},
		},
		wallets: stubWalletStore{
			ensureFn: func(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error {
				walletEnsured = true
				if ownerType != models.OwnerRealtor {
					t.Fatalf("expected realtor wallet, got owner type %s", ownerType)
				}
				return nil
			},
		},
		admin: stubAdminStore{
			hasAnyAdminFn: func(ctx context.Context) (bool, error) { return false, nil },
			createAdminFn: func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
				adminCreated = true
				if !isSuper {
					t.Fatal("first admin should be super")
				}
				return nil
			},
		},
		audit: stubAuditStore{
			logFn: func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
				auditAction = action
				return nil
			},
		},
	})

	rr := postJSON(t, h.Register, map[string]string{
		"username": "ada_realtor",
		"email":    "ada@example.com",
		"password": "secret-pass-123",
		"role":     "realtor",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["token"] == "" || body["token"] == nil {
		t.Fatal("expected a token in the response")
	}
	if createdRole != "realtor" {
		t.Fatalf("expected role realtor, got %s", createdRole)
	}
	if !walletEnsured {
		t.Fatal("expected a wallet to be provisioned for the realtor")
	}
	if !adminCreated {
		t.Fatal("expected the first user to be bootstrapped as super admin")
	}
	if auditAction != "register" {
		t.Fatalf("expected register audit entry, got %q", auditAction)
	}
}

func TestRegisterGuestSkipsWallet(t *testing.T) {
	h := newTestHandler(handlerDeps{
		wallets: stubWalletStore{
			ensureFn: func(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error {
				t.Fatal("guests should not get a wallet")
				return nil
			},
		},
		admin: stubAdminStore{
			hasAnyAdminFn: func(ctx context.Context) (bool, error) { return true, nil },
		},
	})
	rr := postJSON(t, h.Register, map[string]string{
		"username": "guest_user",
		"email":    "guest@example.com",
		"password": "secret-pass-123",
		"role":     "guest",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	h := newTestHandler(handlerDeps{})
	rr := postJSON(t, h.Register, map[string]string{
		"username": "someone",
		"email":    "someone@example.com",
		"password": "secret-pass-123",
		"role":     "admin",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRegisterDuplicateConflict(t *testing.T) {
	h := newTestHandler(handlerDeps{
		users: stubUserStore{
			createFn: func(ctx context.Context, tx store.Execer, id, username, email, passwordHash, role string) error {
				return &pq.Error{Code: "23505"}
			},
		},
	})
	rr := postJSON(t, h.Register, map[string]string{
		"username": "ada_realtor",
		"email":    "ada@example.com",
		"password": "secret-pass-123",
		"role":     "guest",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("secret-pass-123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	var auditAction string
	h := newTestHandler(handlerDeps{
		users: stubUserStore{
			getByEmailFn: func(ctx context.Context, email string) (map[string]any, error) {
				if email != "ada@example.com" {
					return nil, sql.ErrNoRows
				}
				return map[string]any{"id": "user-1", "password_hash": hash}, nil
			},
		},
		audit: stubAuditStore{
			logFn: func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
				auditAction = action
				return nil
			},
		},
	})

	rr := postJSON(t, h.Login, map[string]string{"email": "ada@example.com", "password": "secret-pass-123"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a token in the response")
	}
	claims, err := auth.ParseToken("secret", token)
	if err != nil {
		t.Fatalf("token did not parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected token for user-1, got %s", claims.UserID)
	}
	if auditAction != "login" {
		t.Fatalf("expected login audit entry, got %q", auditAction)
	}

	rr = postJSON(t, h.Login, map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rr.Code)
	}
	rr = postJSON(t, h.Login, map[string]string{"email": "nobody@example.com", "password": "secret-pass-123"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rr.Code)
	}
}

func TestMe(t *testing.T) {
	h := newTestHandler(handlerDeps{
		users: stubUserStore{
			getByIDFn: func(ctx context.Context, userID string) (map[string]any, error) {
				return map[string]any{"id": userID, "username": "ada_realtor", "email": "ada@example.com", "role": "realtor"}, nil
			},
		},
	})
	rr := serveWithAuth(t, h.Me, "user-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["id"] != "user-1" || body["role"] != "realtor" {
		t.Fatalf("unexpected profile payload: %v", body)
	}
}

func TestUpsertPayoutAccount(t *testing.T) {
	var savedRef string
	h := newTestHandler(handlerDeps{
		payouts: stubPayoutStore{
			upsertFn: func(ctx context.Context, tx store.Execer, realtorID, payeeReference, bankName, accountLast4 string) error {
				if realtorID != "realtor-1" {
					t.Fatalf("expected realtor-1, got %s", realtorID)
				}
				savedRef = payeeReference
				return nil
			},
		},
	})
	rr := serveWithAuthJSON(t, h.UpsertPayoutAccount, "realtor-1", map[string]string{
		"payee_reference": "PAYEE_123",
		"bank_name":       "First Bank",
		"account_last4":   "4421",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if savedRef != "PAYEE_123" {
		t.Fatalf("expected payee reference to be saved, got %q", savedRef)
	}

	rr = serveWithAuthJSON(t, h.UpsertPayoutAccount, "realtor-1", map[string]string{"bank_name": "First Bank"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without payee reference, got %d", rr.Code)
	}
}
