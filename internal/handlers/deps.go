package handlers

import (
	"context"

	"staypay/internal/models"
	"staypay/internal/services"
	"staypay/internal/store"

	"github.com/shopspring/decimal"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash, role string) error
	GetByEmail(ctx context.Context, email string) (map[string]any, error)
	GetByID(ctx context.Context, userID string) (map[string]any, error)
}

type BookingStore interface {
	GetByID(ctx context.Context, bookingID string) (models.Booking, error)
	ListByGuest(ctx context.Context, guestID string, limit, offset int) ([]models.Booking, error)
	ListByRealtor(ctx context.Context, realtorID string, limit, offset int) ([]models.Booking, error)
}

type WalletStore interface {
	Ensure(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error
	GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) (models.Wallet, error)
	ListBalanceSummaries(ctx context.Context) ([]store.WalletBalanceSummary, error)
}

type WalletTransactionStore interface {
	ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, error)
	SumCompletedByWallet(ctx context.Context, walletID string) (int64, error)
}

type WithdrawalStore interface {
	GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error)
	ListByRealtor(ctx context.Context, realtorID string, limit, offset int) ([]models.WithdrawalRequest, error)
}

type PayoutAccountStore interface {
	Upsert(ctx context.Context, tx store.Execer, realtorID, payeeReference, bankName, accountLast4 string) error
	GetReference(ctx context.Context, realtorID string) (string, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]map[string]any, error)
}

type BookingService interface {
	Create(ctx context.Context, req services.CreateBookingRequest, bookingID string) (models.Booking, error)
	Transition(ctx context.Context, req services.TransitionRequest) (models.Booking, error)
}

type PaymentService interface {
	Initiate(ctx context.Context, bookingID string) (models.Payment, error)
	ConfirmEscrow(ctx context.Context, paymentID string, rate *decimal.Decimal) (models.Payment, error)
	ReleaseCheckIn(ctx context.Context, bookingID string) (models.Payment, error)
	Settle(ctx context.Context, bookingID string) (models.Payment, error)
	Refund(ctx context.Context, paymentID, actorID string) (models.Payment, error)
}

type WithdrawalService interface {
	Request(ctx context.Context, realtorID string, grossAmount int64) (models.WithdrawalRequest, error)
	Process(ctx context.Context, withdrawalID string, isManualRetry bool) services.ProcessResult
}

type RetryCoordinator interface {
	RetryFailedWithdrawals(ctx context.Context) (services.RetryStats, error)
}
