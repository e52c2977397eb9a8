package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"staypay/internal/commission"
	"staypay/internal/db"
	"staypay/internal/models"
	"staypay/internal/notify"
	"staypay/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentConflict   = errors.New("payment status changed concurrently")
	ErrEscrowNotHeld     = errors.New("escrow not confirmed")
	ErrNotRefundEligible = errors.New("payment is not refund eligible")
)

type PaymentStore interface {
	Create(ctx context.Context, tx store.Execer, input store.PaymentInput) error
	GetByID(ctx context.Context, paymentID string) (models.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (models.Payment, error)
	UpdateStatus(ctx context.Context, tx store.Execer, paymentID string, from, to models.PaymentStatus) (int64, error)
	SetCommission(ctx context.Context, tx store.Execer, paymentID string, commission, fee, earnings int64, rate string) error
	MarkPaidOut(ctx context.Context, tx store.Execer, paymentID, payoutReference string, payoutDate time.Time) (int64, error)
	MarkRefunded(ctx context.Context, tx store.Execer, paymentID string, amount int64, refundedAt time.Time) error
}

// PaymentService tracks a payment from initiation through escrow, release
// and settlement, and drives the wallet credits each stage implies.
type PaymentService struct {
	txRunner db.TxRunner
	payments PaymentStore
	bookings BookingStore
	wallet   *WalletService
	audit    AuditStore
	hub      NotificationHub
	currency string
}

func NewPaymentService(txRunner db.TxRunner, payments PaymentStore, bookings BookingStore, wallet *WalletService, audit AuditStore, hub NotificationHub, currency string) *PaymentService {
	return &PaymentService{
		txRunner: txRunner,
		payments: payments,
		bookings: bookings,
		wallet:   wallet,
		audit:    audit,
		hub:      hub,
		currency: currency,
	}
}

// Initiate creates the payment record for a pending booking.
func (s *PaymentService) Initiate(ctx context.Context, bookingID string) (models.Payment, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return models.Payment{}, ErrBookingNotFound
	}
	if booking.Status != models.BookingPending {
		return models.Payment{}, ErrInvalidTransition
	}
	paymentID := uuid.NewString()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.payments.Create(ctx, tx, store.PaymentInput{
			ID:        paymentID,
			BookingID: bookingID,
			Amount:    booking.TotalPrice,
			Currency:  s.currency,
			Status:    models.PaymentInitiated,
		}); err != nil {
			return err
		}
		return s.bookings.SetPaymentID(ctx, tx, bookingID, paymentID)
	})
	if err != nil {
		return models.Payment{}, err
	}
	return s.payments.GetByID(ctx, paymentID)
}

// ConfirmEscrow records that guest funds are secured. The commission split is
// computed here, once, with a single rounding per component.
func (s *PaymentService) ConfirmEscrow(ctx context.Context, paymentID string, rate *decimal.Decimal) (models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return models.Payment{}, ErrPaymentNotFound
	}
	from := payment.Status
	if !from.CanTransitionTo(models.PaymentEscrowHeld) {
		return models.Payment{}, ErrPaymentConflict
	}
	breakdown, err := commission.Calculate(payment.Amount, rate)
	if err != nil {
		return models.Payment{}, err
	}
	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return models.Payment{}, ErrBookingNotFound
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.UpdateStatus(ctx, tx, paymentID, from, models.PaymentEscrowHeld)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentConflict
		}
		if err := s.payments.SetCommission(ctx, tx, paymentID,
			breakdown.PlatformCommission, breakdown.ProcessingFee, breakdown.RealtorEarnings,
			breakdown.CommissionRate.String()); err != nil {
			return err
		}
		if booking.Status == models.BookingPending {
			if _, err := s.bookings.UpdateStatus(ctx, tx, booking.ID, models.BookingPending, models.BookingPaid); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{
			"amount":              payment.Amount,
			"platform_commission": breakdown.PlatformCommission,
			"processing_fee":      breakdown.ProcessingFee,
			"realtor_earnings":    breakdown.RealtorEarnings,
		})
		return s.audit.Log(ctx, tx, booking.GuestID, "escrow_confirmed", "payment", paymentID, string(data))
	})
	if err != nil {
		return models.Payment{}, err
	}
	return s.payments.GetByID(ctx, paymentID)
}

// ReleaseCheckIn moves the payment to PARTIALLY_RELEASED and credits the
// realtor's pending balance with their earnings. Funds stay pending until
// checkout settles them.
func (s *PaymentService) ReleaseCheckIn(ctx context.Context, bookingID string) (models.Payment, error) {
	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return models.Payment{}, ErrPaymentNotFound
	}
	if !payment.Status.CanTransitionTo(models.PaymentPartiallyReleased) {
		if !payment.Status.EscrowConfirmed() {
			return models.Payment{}, ErrEscrowNotHeld
		}
		return models.Payment{}, ErrPaymentConflict
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return models.Payment{}, ErrBookingNotFound
	}
	var wallet models.Wallet
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.UpdateStatus(ctx, tx, payment.ID, models.PaymentEscrowHeld, models.PaymentPartiallyReleased)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentConflict
		}
		wallet, err = s.wallet.EnsureRealtorWallet(ctx, tx, booking.RealtorID)
		if err != nil {
			return err
		}
		if err := s.wallet.Credit(ctx, tx, wallet.ID, payment.RealtorEarnings, BucketPending,
			models.SourceEscrowRelease, payment.ID, "{}"); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"realtor_earnings": payment.RealtorEarnings})
		return s.audit.Log(ctx, tx, booking.GuestID, "escrow_partial_release", "payment", payment.ID, string(data))
	})
	if err != nil {
		return models.Payment{}, err
	}
	s.notifyBalance(ctx, booking.RealtorID, wallet.ID)
	return s.payments.GetByID(ctx, payment.ID)
}

// Settle finalizes the payment after checkout: realtor earnings move from
// pending to available, and commission plus processing fee are booked as
// platform revenue. commission_paid_out flips true exactly once.
func (s *PaymentService) Settle(ctx context.Context, bookingID string) (models.Payment, error) {
	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return models.Payment{}, ErrPaymentNotFound
	}
	if !payment.Status.CanTransitionTo(models.PaymentSettled) {
		return models.Payment{}, ErrPaymentConflict
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return models.Payment{}, ErrBookingNotFound
	}
	payoutReference := uuid.NewString()
	var wallet models.Wallet
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.UpdateStatus(ctx, tx, payment.ID, models.PaymentPartiallyReleased, models.PaymentSettled)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentConflict
		}
		wallet, err = s.wallet.EnsureRealtorWallet(ctx, tx, booking.RealtorID)
		if err != nil {
			return err
		}
		if err := s.wallet.MovePendingToAvailable(ctx, tx, wallet.ID, payment.RealtorEarnings,
			models.SourceSettlement, payment.ID); err != nil {
			return err
		}
		if payment.PlatformCommission > 0 {
			if err := s.wallet.CreditPlatformFee(ctx, tx, payment.PlatformCommission, models.SourceCommission, payment.ID); err != nil {
				return err
			}
		}
		if payment.ProcessingFee > 0 {
			if err := s.wallet.CreditPlatformFee(ctx, tx, payment.ProcessingFee, models.SourceProcessingFee, payment.ID); err != nil {
				return err
			}
		}
		rows, err = s.payments.MarkPaidOut(ctx, tx, payment.ID, payoutReference, time.Now().UTC())
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentConflict
		}
		data, _ := json.Marshal(map[string]any{
			"payout_reference": payoutReference,
			"realtor_earnings": payment.RealtorEarnings,
		})
		return s.audit.Log(ctx, tx, booking.RealtorID, "payment_settled", "payment", payment.ID, string(data))
	})
	if err != nil {
		return models.Payment{}, err
	}
	s.notifyBalance(ctx, booking.RealtorID, wallet.ID)
	return s.payments.GetByID(ctx, payment.ID)
}

// Refund reverses an escrowed payment back to the guest. Once a payment has
// settled there is no refund path here; disputes go elsewhere.
func (s *PaymentService) Refund(ctx context.Context, paymentID, actorID string) (models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return models.Payment{}, ErrPaymentNotFound
	}
	if !payment.Status.RefundEligible() {
		return models.Payment{}, ErrNotRefundEligible
	}
	booking, err := s.bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return models.Payment{}, ErrBookingNotFound
	}
	from := payment.Status
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.payments.UpdateStatus(ctx, tx, paymentID, from, models.PaymentRefunded)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrPaymentConflict
		}
		if from == models.PaymentPartiallyReleased {
			wallet, err := s.wallet.EnsureRealtorWallet(ctx, tx, booking.RealtorID)
			if err != nil {
				return err
			}
			if err := s.wallet.Debit(ctx, tx, wallet.ID, payment.RealtorEarnings, BucketPending,
				models.SourceRefund, paymentID, "{}"); err != nil {
				return err
			}
		}
		if err := s.payments.MarkRefunded(ctx, tx, paymentID, payment.Amount, time.Now().UTC()); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"refund_amount": payment.Amount, "from_status": from})
		return s.audit.Log(ctx, tx, actorID, "payment_refunded", "payment", paymentID, string(data))
	})
	if err != nil {
		return models.Payment{}, err
	}
	return s.payments.GetByID(ctx, paymentID)
}

func (s *PaymentService) notifyBalance(ctx context.Context, ownerID, walletID string) {
	wallet, err := s.wallet.wallets.GetByID(ctx, walletID)
	if err != nil {
		return
	}
	s.hub.Notify(ownerID, notify.Event{
		Type: notify.EventBalanceChanged,
		Payload: notify.BalancePayload{
			WalletID:  wallet.ID,
			Available: formatMinor(wallet.BalanceAvailable),
			Pending:   formatMinor(wallet.BalancePending),
		},
	})
}
