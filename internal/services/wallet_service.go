package services

import (
	"context"
	"encoding/json"
	"errors"

	"staypay/internal/models"
	"staypay/internal/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
)

type Bucket string

const (
	BucketAvailable Bucket = "available"
	BucketPending   Bucket = "pending"
)

type WalletStore interface {
	Ensure(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error
	GetByID(ctx context.Context, walletID string) (models.Wallet, error)
	GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) (models.Wallet, error)
	GetForUpdate(ctx context.Context, tx store.Getter, walletID string) (models.Wallet, error)
	GetForUpdateByOwner(ctx context.Context, tx store.Getter, ownerType models.OwnerType, ownerID string) (models.Wallet, error)
	AdjustBalances(ctx context.Context, tx store.Execer, walletID string, availableDelta, pendingDelta int64) (int64, error)
	CreditPlatform(ctx context.Context, tx store.Tx, id string, amount int64) (string, error)
}

type WalletTransactionStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.WalletTransactionInput) error
	FindPendingLock(ctx context.Context, walletID, referenceID string) (models.WalletTransaction, error)
	GetPendingLock(ctx context.Context, tx store.Getter, walletID, referenceID string) (models.WalletTransaction, error)
	Resolve(ctx context.Context, tx store.Execer, entryID string, status models.EntryStatus, metadata string) (int64, error)
	SumCompletedByWallet(ctx context.Context, walletID string) (int64, error)
}

// WalletService is the only component allowed to mutate wallet balances.
// Every balance change it makes is paired with exactly one ledger entry in
// the caller's transaction.
type WalletService struct {
	wallets WalletStore
	entries WalletTransactionStore
}

func NewWalletService(wallets WalletStore, entries WalletTransactionStore) *WalletService {
	return &WalletService{wallets: wallets, entries: entries}
}

// EnsureRealtorWallet lazily creates a realtor wallet on first credit and
// returns it locked for the rest of the transaction.
func (s *WalletService) EnsureRealtorWallet(ctx context.Context, tx store.Tx, realtorID string) (models.Wallet, error) {
	if err := s.wallets.Ensure(ctx, tx, uuid.NewString(), models.OwnerRealtor, realtorID); err != nil {
		return models.Wallet{}, err
	}
	return s.wallets.GetForUpdateByOwner(ctx, tx, models.OwnerRealtor, realtorID)
}

func (s *WalletService) Credit(ctx context.Context, tx store.Execer, walletID string, amount int64, bucket Bucket, source models.EntrySource, referenceID, metadata string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	availableDelta, pendingDelta := int64(0), amount
	if bucket == BucketAvailable {
		availableDelta, pendingDelta = amount, 0
	}
	rows, err := s.wallets.AdjustBalances(ctx, tx, walletID, availableDelta, pendingDelta)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrWalletNotFound
	}
	return s.entries.Insert(ctx, tx, store.WalletTransactionInput{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Type:        models.EntryCredit,
		Source:      source,
		Amount:      amount,
		ReferenceID: referenceID,
		Status:      models.EntryCompleted,
		Metadata:    metadata,
	})
}

func (s *WalletService) Debit(ctx context.Context, tx store.Execer, walletID string, amount int64, bucket Bucket, source models.EntrySource, referenceID, metadata string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	availableDelta, pendingDelta := int64(0), -amount
	if bucket == BucketAvailable {
		availableDelta, pendingDelta = -amount, 0
	}
	rows, err := s.wallets.AdjustBalances(ctx, tx, walletID, availableDelta, pendingDelta)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientFunds
	}
	return s.entries.Insert(ctx, tx, store.WalletTransactionInput{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Type:        models.EntryDebit,
		Source:      source,
		Amount:      amount,
		ReferenceID: referenceID,
		Status:      models.EntryCompleted,
		Metadata:    metadata,
	})
}

// MovePendingToAvailable settles escrowed earnings into the withdrawable
// balance. Both sides are recorded so the wallet's ledger stays balanced: a
// move changes where funds sit, not how much the wallet holds.
func (s *WalletService) MovePendingToAvailable(ctx context.Context, tx store.Execer, walletID string, amount int64, source models.EntrySource, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	rows, err := s.wallets.AdjustBalances(ctx, tx, walletID, amount, -amount)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientFunds
	}
	debitID, creditID := uuid.NewString(), uuid.NewString()
	if err := s.entries.Insert(ctx, tx, store.WalletTransactionInput{
		ID: debitID, WalletID: walletID, Type: models.EntryDebit, Source: source,
		Amount: amount, ReferenceID: referenceID, Status: models.EntryCompleted, Metadata: "{}",
	}); err != nil {
		return err
	}
	return s.entries.Insert(ctx, tx, store.WalletTransactionInput{
		ID: creditID, WalletID: walletID, Type: models.EntryCredit, Source: source,
		Amount: amount, ReferenceID: referenceID, Status: models.EntryCompleted, Metadata: "{}",
	})
}

// LockPending reserves a withdrawal's gross amount by moving it from the
// available to the pending balance and recording the PENDING lock entry the
// settlement engine later resolves. The entry carries the net amount (the
// sum the provider is asked to pay out); the fee is ledgered separately
// on success.
func (s *WalletService) LockPending(ctx context.Context, tx store.Execer, walletID string, grossAmount, netAmount int64, referenceID string) (string, error) {
	if grossAmount <= 0 || netAmount <= 0 || netAmount > grossAmount {
		return "", ErrInvalidAmount
	}
	rows, err := s.wallets.AdjustBalances(ctx, tx, walletID, -grossAmount, grossAmount)
	if err != nil {
		return "", err
	}
	if rows == 0 {
		return "", ErrInsufficientFunds
	}
	metadata, _ := json.Marshal(models.LockMetadata{Reference: referenceID})
	entryID := uuid.NewString()
	err = s.entries.Insert(ctx, tx, store.WalletTransactionInput{
		ID:          entryID,
		WalletID:    walletID,
		Type:        models.EntryDebit,
		Source:      models.SourceWithdrawal,
		Amount:      netAmount,
		ReferenceID: referenceID,
		Status:      models.EntryPending,
		Metadata:    string(metadata),
	})
	if err != nil {
		return "", err
	}
	return entryID, nil
}

// CreditPlatformFee books fee or commission revenue onto the singleton
// platform wallet with a single atomic upsert-and-increment.
func (s *WalletService) CreditPlatformFee(ctx context.Context, tx store.Tx, amount int64, source models.EntrySource, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	walletID, err := s.wallets.CreditPlatform(ctx, tx, uuid.NewString(), amount)
	if err != nil {
		return err
	}
	return s.entries.Insert(ctx, tx, store.WalletTransactionInput{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Type:        models.EntryCredit,
		Source:      source,
		Amount:      amount,
		ReferenceID: referenceID,
		Status:      models.EntryCompleted,
		Metadata:    "{}",
	})
}
