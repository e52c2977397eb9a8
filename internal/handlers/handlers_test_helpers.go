package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staypay/internal/auth"
	"staypay/internal/config"
	"staypay/internal/middleware"
	"staypay/internal/models"
	"staypay/internal/notify"
	"staypay/internal/services"
	"staypay/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash, role string) error
	getByEmailFn func(ctx context.Context, email string) (map[string]any, error)
	getByIDFn    func(ctx context.Context, userID string) (map[string]any, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, role string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash, role)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (map[string]any, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (map[string]any, error) {
	if s.getByIDFn == nil {
		return nil, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubBookingStore struct {
	getByIDFn       func(ctx context.Context, bookingID string) (models.Booking, error)
	listByGuestFn   func(ctx context.Context, guestID string, limit, offset int) ([]models.Booking, error)
	listByRealtorFn func(ctx context.Context, realtorID string, limit, offset int) ([]models.Booking, error)
}

func (s stubBookingStore) GetByID(ctx context.Context, bookingID string) (models.Booking, error) {
	if s.getByIDFn == nil {
		return models.Booking{}, nil
	}
	return s.getByIDFn(ctx, bookingID)
}

func (s stubBookingStore) ListByGuest(ctx context.Context, guestID string, limit, offset int) ([]models.Booking, error) {
	if s.listByGuestFn == nil {
		return nil, nil
	}
	return s.listByGuestFn(ctx, guestID, limit, offset)
}

func (s stubBookingStore) ListByRealtor(ctx context.Context, realtorID string, limit, offset int) ([]models.Booking, error) {
	if s.listByRealtorFn == nil {
		return nil, nil
	}
	return s.listByRealtorFn(ctx, realtorID, limit, offset)
}

type stubWalletStore struct {
	ensureFn       func(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error
	getByOwnerFn   func(ctx context.Context, ownerType models.OwnerType, ownerID string) (models.Wallet, error)
	listSummsFn    func(ctx context.Context) ([]store.WalletBalanceSummary, error)
}

func (s stubWalletStore) Ensure(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error {
	if s.ensureFn == nil {
		return nil
	}
	return s.ensureFn(ctx, tx, id, ownerType, ownerID)
}

func (s stubWalletStore) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) (models.Wallet, error) {
	if s.getByOwnerFn == nil {
		return models.Wallet{}, nil
	}
	return s.getByOwnerFn(ctx, ownerType, ownerID)
}

func (s stubWalletStore) ListBalanceSummaries(ctx context.Context) ([]store.WalletBalanceSummary, error) {
	if s.listSummsFn == nil {
		return nil, nil
	}
	return s.listSummsFn(ctx)
}

type stubEntryStore struct {
	listByWalletFn func(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, error)
	sumFn          func(ctx context.Context, walletID string) (int64, error)
}

func (s stubEntryStore) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, error) {
	if s.listByWalletFn == nil {
		return nil, nil
	}
	return s.listByWalletFn(ctx, walletID, limit, offset)
}

func (s stubEntryStore) SumCompletedByWallet(ctx context.Context, walletID string) (int64, error) {
	if s.sumFn == nil {
		return 0, nil
	}
	return s.sumFn(ctx, walletID)
}

type stubWithdrawalStore struct {
	getByIDFn       func(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error)
	listByRealtorFn func(ctx context.Context, realtorID string, limit, offset int) ([]models.WithdrawalRequest, error)
}

func (s stubWithdrawalStore) GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	if s.getByIDFn == nil {
		return models.WithdrawalRequest{}, nil
	}
	return s.getByIDFn(ctx, withdrawalID)
}

func (s stubWithdrawalStore) ListByRealtor(ctx context.Context, realtorID string, limit, offset int) ([]models.WithdrawalRequest, error) {
	if s.listByRealtorFn == nil {
		return nil, nil
	}
	return s.listByRealtorFn(ctx, realtorID, limit, offset)
}

type stubPayoutStore struct {
	upsertFn func(ctx context.Context, tx store.Execer, realtorID, payeeReference, bankName, accountLast4 string) error
	getRefFn func(ctx context.Context, realtorID string) (string, error)
}

func (s stubPayoutStore) Upsert(ctx context.Context, tx store.Execer, realtorID, payeeReference, bankName, accountLast4 string) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, tx, realtorID, payeeReference, bankName, accountLast4)
}

func (s stubPayoutStore) GetReference(ctx context.Context, realtorID string) (string, error) {
	if s.getRefFn == nil {
		return "", nil
	}
	return s.getRefFn(ctx, realtorID)
}

type stubAdminStore struct {
	isAdminFn     func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn     func(ctx context.Context, userID, role string) (bool, error)
	createAdminFn func(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	grantRoleFn   func(ctx context.Context, tx store.Execer, adminUserID, role string) error
	hasAnyAdminFn func(ctx context.Context) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s stubAdminStore) CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error {
	if s.createAdminFn == nil {
		return nil
	}
	return s.createAdminFn(ctx, tx, userID, isSuper, createdBy)
}

func (s stubAdminStore) GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, tx, adminUserID, role)
}

func (s stubAdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	if s.hasAnyAdminFn == nil {
		return false, nil
	}
	return s.hasAnyAdminFn(ctx)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubBookingService struct {
	createFn     func(ctx context.Context, req services.CreateBookingRequest, bookingID string) (models.Booking, error)
	transitionFn func(ctx context.Context, req services.TransitionRequest) (models.Booking, error)
}

func (s stubBookingService) Create(ctx context.Context, req services.CreateBookingRequest, bookingID string) (models.Booking, error) {
	if s.createFn == nil {
		return models.Booking{}, nil
	}
	return s.createFn(ctx, req, bookingID)
}

func (s stubBookingService) Transition(ctx context.Context, req services.TransitionRequest) (models.Booking, error) {
	if s.transitionFn == nil {
		return models.Booking{}, nil
	}
	return s.transitionFn(ctx, req)
}

type stubPaymentService struct {
	initiateFn func(ctx context.Context, bookingID string) (models.Payment, error)
	confirmFn  func(ctx context.Context, paymentID string, rate *decimal.Decimal) (models.Payment, error)
	releaseFn  func(ctx context.Context, bookingID string) (models.Payment, error)
	settleFn   func(ctx context.Context, bookingID string) (models.Payment, error)
	refundFn   func(ctx context.Context, paymentID, actorID string) (models.Payment, error)
}

func (s stubPaymentService) Initiate(ctx context.Context, bookingID string) (models.Payment, error) {
	if s.initiateFn == nil {
		return models.Payment{}, nil
	}
	return s.initiateFn(ctx, bookingID)
}

func (s stubPaymentService) ConfirmEscrow(ctx context.Context, paymentID string, rate *decimal.Decimal) (models.Payment, error) {
	if s.confirmFn == nil {
		return models.Payment{}, nil
	}
	return s.confirmFn(ctx, paymentID, rate)
}

func (s stubPaymentService) ReleaseCheckIn(ctx context.Context, bookingID string) (models.Payment, error) {
	if s.releaseFn == nil {
		return models.Payment{}, nil
	}
	return s.releaseFn(ctx, bookingID)
}

func (s stubPaymentService) Settle(ctx context.Context, bookingID string) (models.Payment, error) {
	if s.settleFn == nil {
		return models.Payment{}, nil
	}
	return s.settleFn(ctx, bookingID)
}

func (s stubPaymentService) Refund(ctx context.Context, paymentID, actorID string) (models.Payment, error) {
	if s.refundFn == nil {
		return models.Payment{}, nil
	}
	return s.refundFn(ctx, paymentID, actorID)
}

type stubWithdrawalService struct {
	requestFn func(ctx context.Context, realtorID string, grossAmount int64) (models.WithdrawalRequest, error)
	processFn func(ctx context.Context, withdrawalID string, isManualRetry bool) services.ProcessResult
}

func (s stubWithdrawalService) Request(ctx context.Context, realtorID string, grossAmount int64) (models.WithdrawalRequest, error) {
	if s.requestFn == nil {
		return models.WithdrawalRequest{}, nil
	}
	return s.requestFn(ctx, realtorID, grossAmount)
}

func (s stubWithdrawalService) Process(ctx context.Context, withdrawalID string, isManualRetry bool) services.ProcessResult {
	if s.processFn == nil {
		return services.ProcessResult{Success: true, Message: "withdrawal completed"}
	}
	return s.processFn(ctx, withdrawalID, isManualRetry)
}

type stubRetryCoordinator struct {
	retryFn func(ctx context.Context) (services.RetryStats, error)
}

func (s stubRetryCoordinator) RetryFailedWithdrawals(ctx context.Context) (services.RetryStats, error) {
	if s.retryFn == nil {
		return services.RetryStats{}, nil
	}
	return s.retryFn(ctx)
}

type handlerDeps struct {
	txRunner    fakeTxRunner
	users       UserStore
	bookings    BookingStore
	wallets     WalletStore
	entries     WalletTransactionStore
	withdrawals WithdrawalStore
	payouts     PayoutAccountStore
	admin       AdminStore
	audit       AuditStore
	bookingSvc  BookingService
	paymentSvc  PaymentService
	withdrawSvc WithdrawalService
	retries     RetryCoordinator
}

func newTestHandler(deps handlerDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		Currency:       "NGN",
	}
	if deps.users == nil {
		deps.users = stubUserStore{}
	}
	if deps.bookings == nil {
		deps.bookings = stubBookingStore{}
	}
	if deps.wallets == nil {
		deps.wallets = stubWalletStore{}
	}
	if deps.entries == nil {
		deps.entries = stubEntryStore{}
	}
	if deps.withdrawals == nil {
		deps.withdrawals = stubWithdrawalStore{}
	}
	if deps.payouts == nil {
		deps.payouts = stubPayoutStore{}
	}
	if deps.admin == nil {
		deps.admin = stubAdminStore{}
	}
	if deps.audit == nil {
		deps.audit = stubAuditStore{}
	}
	if deps.bookingSvc == nil {
		deps.bookingSvc = stubBookingService{}
	}
	if deps.paymentSvc == nil {
		deps.paymentSvc = stubPaymentService{}
	}
	if deps.withdrawSvc == nil {
		deps.withdrawSvc = stubWithdrawalService{}
	}
	if deps.retries == nil {
		deps.retries = stubRetryCoordinator{}
	}
	return New(deps.txRunner, cfg, deps.users, deps.bookings, deps.wallets, deps.entries,
		deps.withdrawals, deps.payouts, deps.admin, deps.audit,
		deps.bookingSvc, deps.paymentSvc, deps.withdrawSvc, deps.retries, notify.NewHub())
}

func serveWithAuth(t *testing.T, handler http.HandlerFunc, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return serveAuthedRequest(t, handler, userID, req)
}

func serveWithAuthJSON(t *testing.T, handler http.HandlerFunc, userID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	return serveAuthedRequest(t, handler, userID, req)
}

func serveWithAuthParam(t *testing.T, handler http.HandlerFunc, userID, resourceID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	} else {
		req = httptest.NewRequest(http.MethodPost, "/", nil)
	}
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", resourceID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	return serveAuthedRequest(t, handler, userID, req)
}

func serveAuthedRequest(t *testing.T, handler http.HandlerFunc, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.GenerateToken("secret", userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	middleware.Auth("secret")(handler).ServeHTTP(rr, req)
	return rr
}
