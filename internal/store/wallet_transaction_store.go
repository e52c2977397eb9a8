package store

import (
	"context"

	"staypay/internal/models"
)

type WalletTransactionStore struct {
	db DB
}

func NewWalletTransactionStore(db DB) *WalletTransactionStore {
	return &WalletTransactionStore{db: db}
}

type WalletTransactionInput struct {
	ID          string
	WalletID    string
	Type        models.EntryType
	Source      models.EntrySource
	Amount      int64
	ReferenceID string
	Status      models.EntryStatus
	Metadata    string
}

func (s *WalletTransactionStore) Insert(ctx context.Context, tx Execer, input WalletTransactionInput) error {
	query := `
		INSERT INTO wallet_transactions (id, wallet_id, type, source, amount, reference_id, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.WalletID, input.Type, input.Source, input.Amount,
		input.ReferenceID, input.Status, input.Metadata,
	)
	return err
}

// GetPendingLock locks and returns the PENDING withdrawal reservation entry
// for a wallet/reference pair. sql.ErrNoRows means funds were never reserved.
func (s *WalletTransactionStore) GetPendingLock(ctx context.Context, tx Getter, walletID, referenceID string) (models.WalletTransaction, error) {
	var row models.WalletTransaction
	err := tx.GetContext(ctx, &row, `
		SELECT id, wallet_id, type, source, amount, reference_id, status, metadata, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1 AND reference_id = $2 AND source = $3 AND status = $4
		FOR UPDATE
	`, walletID, referenceID, models.SourceWithdrawal, models.EntryPending)
	if err != nil {
		return models.WalletTransaction{}, err
	}
	return row, nil
}

// FindPendingLock is the non-locking lookup used before an attempt starts;
// the settlement transaction re-reads the entry under FOR UPDATE.
func (s *WalletTransactionStore) FindPendingLock(ctx context.Context, walletID, referenceID string) (models.WalletTransaction, error) {
	var row models.WalletTransaction
	err := s.db.GetContext(ctx, &row, `
		SELECT id, wallet_id, type, source, amount, reference_id, status, metadata, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1 AND reference_id = $2 AND source = $3 AND status = $4
	`, walletID, referenceID, models.SourceWithdrawal, models.EntryPending)
	if err != nil {
		return models.WalletTransaction{}, err
	}
	return row, nil
}

// Resolve moves an entry out of PENDING. The status guard in the WHERE clause
// makes resolution a compare-and-swap: a second resolution attempt affects
// zero rows instead of rewriting a settled entry.
func (s *WalletTransactionStore) Resolve(ctx context.Context, tx Execer, entryID string, status models.EntryStatus, metadata string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status = $1, metadata = $2
		WHERE id = $3 AND status = $4
	`, status, metadata, entryID, models.EntryPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *WalletTransactionStore) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, wallet_id, type, source, amount, reference_id, status, metadata, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *WalletTransactionStore) SumCompletedByWallet(ctx context.Context, walletID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions
		WHERE wallet_id = $1 AND status = $2
	`, walletID, models.EntryCompleted)
	return sum, err
}
