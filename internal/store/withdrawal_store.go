package store

import (
	"context"
	"time"

	"staypay/internal/models"
)

type WithdrawalStore struct {
	db DB
}

func NewWithdrawalStore(db DB) *WithdrawalStore {
	return &WithdrawalStore{db: db}
}

type WithdrawalInput struct {
	ID        string
	RealtorID string
	WalletID  string
	Amount    int64
	FeeAmount int64
	NetAmount int64
	Status    models.WithdrawalStatus
	Metadata  string
}

const withdrawalSelect = `
	SELECT id, realtor_id, wallet_id, amount, fee_amount, net_amount, status,
	       retry_count, failure_reason, metadata, requested_at, processed_at, failed_at
	FROM withdrawal_requests`

func (s *WithdrawalStore) Create(ctx context.Context, tx Execer, input WithdrawalInput) error {
	query := `
		INSERT INTO withdrawal_requests (id, realtor_id, wallet_id, amount, fee_amount, net_amount, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.RealtorID, input.WalletID, input.Amount,
		input.FeeAmount, input.NetAmount, input.Status, input.Metadata,
	)
	return err
}

func (s *WithdrawalStore) GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	var row models.WithdrawalRequest
	err := s.db.GetContext(ctx, &row, withdrawalSelect+` WHERE id = $1`, withdrawalID)
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return row, nil
}

// ClaimForProcessing moves a withdrawal into PROCESSING only from a state a
// new attempt may start from. Zero rows affected means another attempt holds
// it or the withdrawal is terminal.
func (s *WithdrawalStore) ClaimForProcessing(ctx context.Context, tx Execer, withdrawalID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
	`, models.WithdrawalProcessing, withdrawalID, models.WithdrawalPending, models.WithdrawalFailed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WithdrawalStore) MarkCompleted(ctx context.Context, tx Execer, withdrawalID string, processedAt time.Time, metadata string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, processed_at = $2, metadata = $3, failure_reason = NULL, updated_at = NOW()
		WHERE id = $4
	`, models.WithdrawalCompleted, processedAt, metadata, withdrawalID)
	return err
}

func (s *WithdrawalStore) MarkFailed(ctx context.Context, tx Execer, withdrawalID, failureReason string, failedAt time.Time, metadata string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, retry_count = retry_count + 1, failure_reason = $2,
		    failed_at = $3, metadata = $4, updated_at = NOW()
		WHERE id = $5
	`, models.WithdrawalFailed, failureReason, failedAt, metadata, withdrawalID)
	return err
}

// MarkFailedFinal records a non-retryable failure by jumping retry_count to
// the ceiling so the retry coordinator never picks the row up.
func (s *WithdrawalStore) MarkFailedFinal(ctx context.Context, tx Execer, withdrawalID, failureReason string, failedAt time.Time, retryCeiling int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status = $1, retry_count = GREATEST(retry_count, $2), failure_reason = $3,
		    failed_at = $4, updated_at = NOW()
		WHERE id = $5
	`, models.WithdrawalFailed, retryCeiling, failureReason, failedAt, withdrawalID)
	return err
}

func (s *WithdrawalStore) UpdateMetadata(ctx context.Context, tx Execer, withdrawalID, metadata string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET metadata = $1, updated_at = NOW()
		WHERE id = $2
	`, metadata, withdrawalID)
	return err
}

// ListRetryable selects failed withdrawals still holding their funds lock.
// Rows whose funds were restored to the available balance need a fresh
// request, not a retry.
func (s *WithdrawalStore) ListRetryable(ctx context.Context, retryCeiling, limit int) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	err := s.db.SelectContext(ctx, &rows, withdrawalSelect+`
		WHERE status = $1
		  AND retry_count < $2
		  AND COALESCE((metadata::jsonb ->> 'funds_restored')::boolean, FALSE) = FALSE
		ORDER BY failed_at ASC NULLS FIRST
		LIMIT $3
	`, models.WithdrawalFailed, retryCeiling, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WithdrawalStore) ListByRealtor(ctx context.Context, realtorID string, limit, offset int) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	err := s.db.SelectContext(ctx, &rows, withdrawalSelect+`
		WHERE realtor_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`, realtorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
