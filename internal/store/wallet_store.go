package store

import (
	"context"

	"staypay/internal/models"
)

type WalletStore struct {
	db DB
}

func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

type WalletBalanceSummary struct {
	ID               string `db:"id"`
	OwnerType        string `db:"owner_type"`
	OwnerID          string `db:"owner_id"`
	BalanceAvailable int64  `db:"balance_available"`
	BalancePending   int64  `db:"balance_pending"`
	LedgerNet        int64  `db:"ledger_net"`
	Difference       int64  `db:"difference"`
}

func (s *WalletStore) Create(ctx context.Context, tx Execer, id string, ownerType models.OwnerType, ownerID string) error {
	query := `
		INSERT INTO wallets (id, owner_type, owner_id, balance_available, balance_pending)
		VALUES ($1, $2, $3, 0, 0)
	`
	_, err := tx.ExecContext(ctx, query, id, ownerType, ownerID)
	return err
}

// Ensure creates the wallet on first use and is a no-op when it already
// exists. Safe to call from any credit path.
func (s *WalletStore) Ensure(ctx context.Context, tx Execer, id string, ownerType models.OwnerType, ownerID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_type, owner_id, balance_available, balance_pending)
		VALUES ($1, $2, $3, 0, 0)
		ON CONFLICT (owner_type, owner_id) DO NOTHING
	`, id, ownerType, ownerID)
	return err
}

func (s *WalletStore) GetByID(ctx context.Context, walletID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner_type, owner_id, balance_available, balance_pending, created_at
		FROM wallets
		WHERE id = $1
	`, walletID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) (models.Wallet, error) {
	var row models.Wallet
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner_type, owner_id, balance_available, balance_pending, created_at
		FROM wallets
		WHERE owner_type = $1 AND owner_id = $2
	`, ownerType, ownerID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdate(ctx context.Context, tx Getter, walletID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT id, owner_type, owner_id, balance_available, balance_pending, created_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`, walletID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

func (s *WalletStore) GetForUpdateByOwner(ctx context.Context, tx Getter, ownerType models.OwnerType, ownerID string) (models.Wallet, error) {
	var row models.Wallet
	err := tx.GetContext(ctx, &row, `
		SELECT id, owner_type, owner_id, balance_available, balance_pending, created_at
		FROM wallets
		WHERE owner_type = $1 AND owner_id = $2
		FOR UPDATE
	`, ownerType, ownerID)
	if err != nil {
		return models.Wallet{}, err
	}
	return row, nil
}

// AdjustBalances applies both balance deltas in one statement. The WHERE
// clause refuses any update that would drive either balance negative; a zero
// row count means insufficient funds, not a missing wallet.
func (s *WalletStore) AdjustBalances(ctx context.Context, tx Execer, walletID string, availableDelta, pendingDelta int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance_available = balance_available + $1,
		    balance_pending = balance_pending + $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND balance_available + $1 >= 0
		  AND balance_pending + $2 >= 0
	`, availableDelta, pendingDelta, walletID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreditPlatform upserts and increments the platform wallet in a single
// statement. The platform wallet is the contention hotspot (every fee lands
// here), so read-modify-write from application code is not allowed.
func (s *WalletStore) CreditPlatform(ctx context.Context, tx Tx, id string, amount int64) (string, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_type, owner_id, balance_available, balance_pending)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (owner_type, owner_id)
		DO UPDATE SET balance_available = wallets.balance_available + EXCLUDED.balance_available,
		              updated_at = NOW()
	`, id, models.OwnerPlatform, models.PlatformOwnerID, amount)
	if err != nil {
		return "", err
	}
	var walletID string
	err = tx.GetContext(ctx, &walletID, `
		SELECT id FROM wallets WHERE owner_type = $1 AND owner_id = $2
	`, models.OwnerPlatform, models.PlatformOwnerID)
	return walletID, err
}

func (s *WalletStore) ListBalanceSummaries(ctx context.Context) ([]WalletBalanceSummary, error) {
	var rows []WalletBalanceSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT w.id,
		       w.owner_type,
		       w.owner_id,
		       w.balance_available,
		       w.balance_pending,
		       COALESCE(SUM(CASE WHEN t.type = 'CREDIT' THEN t.amount ELSE -t.amount END)
		                FILTER (WHERE t.status = 'COMPLETED'), 0) AS ledger_net,
		       (w.balance_available + w.balance_pending
		        - COALESCE(SUM(CASE WHEN t.type = 'CREDIT' THEN t.amount ELSE -t.amount END)
		                   FILTER (WHERE t.status = 'COMPLETED'), 0)) AS difference
		FROM wallets w
		LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
		GROUP BY w.id, w.owner_type, w.owner_id, w.balance_available, w.balance_pending
		ORDER BY w.owner_type, w.owner_id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
