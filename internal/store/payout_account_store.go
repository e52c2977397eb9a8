package store

import "context"

// PayoutAccountStore is the payee resolver backing table: it maps a realtor
// id to the transfer provider's payout-account reference.
type PayoutAccountStore struct {
	db DB
}

func NewPayoutAccountStore(db DB) *PayoutAccountStore {
	return &PayoutAccountStore{db: db}
}

func (s *PayoutAccountStore) Upsert(ctx context.Context, tx Execer, realtorID, payeeReference, bankName, accountLast4 string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO realtor_payout_accounts (realtor_id, payee_reference, bank_name, account_last4)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (realtor_id)
		DO UPDATE SET payee_reference = EXCLUDED.payee_reference,
		              bank_name = EXCLUDED.bank_name,
		              account_last4 = EXCLUDED.account_last4,
		              updated_at = NOW()
	`, realtorID, payeeReference, bankName, accountLast4)
	return err
}

// GetReference returns sql.ErrNoRows when the realtor has not configured a
// payout account; callers treat that as a first-class failure, not a retry.
func (s *PayoutAccountStore) GetReference(ctx context.Context, realtorID string) (string, error) {
	var reference string
	err := s.db.GetContext(ctx, &reference, `
		SELECT payee_reference
		FROM realtor_payout_accounts
		WHERE realtor_id = $1
	`, realtorID)
	return reference, err
}
