package store

import (
	"context"
	"time"

	"staypay/internal/models"
)

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

type PaymentInput struct {
	ID        string
	BookingID string
	Amount    int64
	Currency  string
	Status    models.PaymentStatus
}

func (s *PaymentStore) Create(ctx context.Context, tx Execer, input PaymentInput) error {
	query := `
		INSERT INTO payments (id, booking_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.BookingID, input.Amount, input.Currency, input.Status)
	return err
}

func (s *PaymentStore) GetByID(ctx context.Context, paymentID string) (models.Payment, error) {
	var row models.Payment
	err := s.db.GetContext(ctx, &row, paymentSelect+` WHERE id = $1`, paymentID)
	if err != nil {
		return models.Payment{}, err
	}
	return row, nil
}

func (s *PaymentStore) GetByBookingID(ctx context.Context, bookingID string) (models.Payment, error) {
	var row models.Payment
	err := s.db.GetContext(ctx, &row, paymentSelect+` WHERE booking_id = $1`, bookingID)
	if err != nil {
		return models.Payment{}, err
	}
	return row, nil
}

const paymentSelect = `
	SELECT id, booking_id, amount, currency, status, platform_commission, processing_fee,
	       commission_rate, realtor_earnings, commission_paid_out, payout_date,
	       payout_reference, refund_amount, refunded_at, created_at
	FROM payments`

// UpdateStatus is a compare-and-swap on the stored status.
func (s *PaymentStore) UpdateStatus(ctx context.Context, tx Execer, paymentID string, from, to models.PaymentStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, paymentID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) SetCommission(ctx context.Context, tx Execer, paymentID string, commission, fee, earnings int64, rate string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET platform_commission = $1, processing_fee = $2, realtor_earnings = $3,
		    commission_rate = $4, updated_at = NOW()
		WHERE id = $5
	`, commission, fee, earnings, rate, paymentID)
	return err
}

// MarkPaidOut flips commission_paid_out false->true; the guard keeps the flag
// from ever reversing and makes the payout stamp idempotent.
func (s *PaymentStore) MarkPaidOut(ctx context.Context, tx Execer, paymentID, payoutReference string, payoutDate time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET commission_paid_out = TRUE, payout_reference = $1, payout_date = $2, updated_at = NOW()
		WHERE id = $3 AND commission_paid_out = FALSE
	`, payoutReference, payoutDate, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PaymentStore) MarkRefunded(ctx context.Context, tx Execer, paymentID string, amount int64, refundedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET refund_amount = $1, refunded_at = $2, updated_at = NOW()
		WHERE id = $3
	`, amount, refundedAt, paymentID)
	return err
}
