package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"staypay/internal/db"
	"staypay/internal/models"
	"staypay/internal/notify"
	"staypay/internal/store"
	"staypay/internal/transfer"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrWithdrawalResolved = errors.New("withdrawal already resolved")
)

type WithdrawalStore interface {
	Create(ctx context.Context, tx store.Execer, input store.WithdrawalInput) error
	GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error)
	ClaimForProcessing(ctx context.Context, tx store.Execer, withdrawalID string) (int64, error)
	MarkCompleted(ctx context.Context, tx store.Execer, withdrawalID string, processedAt time.Time, metadata string) error
	MarkFailed(ctx context.Context, tx store.Execer, withdrawalID, failureReason string, failedAt time.Time, metadata string) error
	MarkFailedFinal(ctx context.Context, tx store.Execer, withdrawalID, failureReason string, failedAt time.Time, retryCeiling int) error
	UpdateMetadata(ctx context.Context, tx store.Execer, withdrawalID, metadata string) error
	ListRetryable(ctx context.Context, retryCeiling, limit int) ([]models.WithdrawalRequest, error)
}

// PayeeResolver translates a realtor id into the transfer provider's
// payout-account reference. sql.ErrNoRows means the account was never
// configured.
type PayeeResolver interface {
	GetReference(ctx context.Context, realtorID string) (string, error)
}

type ProcessResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TransferReference string `json:"transfer_reference,omitempty"`
}

// WithdrawalService settles realtor cash-outs against the external transfer
// provider. Its two guarantees: at most one external transfer per
// withdrawal, and a failed attempt restores locked funds exactly once.
type WithdrawalService struct {
	txRunner     db.TxRunner
	withdrawals  WithdrawalStore
	wallets      WalletStore
	entries      WalletTransactionStore
	wallet       *WalletService
	payees       PayeeResolver
	provider     transfer.Provider
	audit        AuditStore
	hub          NotificationHub
	feeRate      decimal.Decimal
	currency     string
	retryCeiling int
}

const RetryCeiling = 3

func NewWithdrawalService(txRunner db.TxRunner, withdrawals WithdrawalStore, wallets WalletStore, entries WalletTransactionStore, wallet *WalletService, payees PayeeResolver, provider transfer.Provider, audit AuditStore, hub NotificationHub, feeRate decimal.Decimal, currency string) *WithdrawalService {
	return &WithdrawalService{
		txRunner:     txRunner,
		withdrawals:  withdrawals,
		wallets:      wallets,
		entries:      entries,
		wallet:       wallet,
		payees:       payees,
		provider:     provider,
		audit:        audit,
		hub:          hub,
		feeRate:      feeRate,
		currency:     currency,
		retryCeiling: RetryCeiling,
	}
}

// Request reserves a realtor's funds for payout: the gross amount moves from
// available to pending, and the PENDING lock entry that Process depends on
// is written in the same transaction.
func (s *WithdrawalService) Request(ctx context.Context, realtorID string, grossAmount int64) (models.WithdrawalRequest, error) {
	if grossAmount <= 0 {
		return models.WithdrawalRequest{}, ErrInvalidAmount
	}
	feeAmount := decimal.NewFromInt(grossAmount).Mul(s.feeRate).RoundBank(0).IntPart()
	netAmount := grossAmount - feeAmount
	if netAmount <= 0 {
		return models.WithdrawalRequest{}, ErrInvalidAmount
	}
	withdrawalID := uuid.NewString()
	reference := uuid.NewString()
	metadata, _ := json.Marshal(models.WithdrawalMetadata{Reference: reference})
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdateByOwner(ctx, tx, models.OwnerRealtor, realtorID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrInsufficientFunds
			}
			return err
		}
		if wallet.BalanceAvailable < grossAmount {
			return ErrInsufficientFunds
		}
		if err := s.withdrawals.Create(ctx, tx, store.WithdrawalInput{
			ID:        withdrawalID,
			RealtorID: realtorID,
			WalletID:  wallet.ID,
			Amount:    grossAmount,
			FeeAmount: feeAmount,
			NetAmount: netAmount,
			Status:    models.WithdrawalPending,
			Metadata:  string(metadata),
		}); err != nil {
			return err
		}
		if _, err := s.wallet.LockPending(ctx, tx, wallet.ID, grossAmount, netAmount, reference); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"amount": grossAmount, "fee": feeAmount, "net": netAmount})
		return s.audit.Log(ctx, tx, realtorID, "withdrawal_requested", "withdrawal", withdrawalID, string(data))
	})
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	return s.withdrawals.GetByID(ctx, withdrawalID)
}

// Process runs one settlement attempt end to end. It never panics or
// propagates provider failures past this boundary: every terminal condition
// resolves into the withdrawal's persisted state, which is what a later
// retry reads.
func (s *WithdrawalService) Process(ctx context.Context, withdrawalID string, isManualRetry bool) ProcessResult {
	withdrawal, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return ProcessResult{Success: false, Message: "withdrawal not found"}
	}
	if withdrawal.Status == models.WithdrawalCompleted || withdrawal.Status == models.WithdrawalCancelled {
		return ProcessResult{Success: false, Message: "withdrawal already resolved"}
	}
	var meta models.WithdrawalMetadata
	if err := json.Unmarshal([]byte(withdrawal.Metadata), &meta); err != nil || meta.Reference == "" {
		log.Printf("withdrawal %s has malformed metadata: %v", withdrawalID, err)
		return ProcessResult{Success: false, Message: "withdrawal metadata unreadable"}
	}
	if withdrawal.NetAmount <= 0 {
		// Invariant violation: net amounts are validated at request time.
		log.Printf("FATAL: withdrawal %s has non-positive net amount %d", withdrawalID, withdrawal.NetAmount)
		_ = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.withdrawals.MarkFailedFinal(ctx, tx, withdrawalID, "invalid withdrawal amount", time.Now().UTC(), s.retryCeiling)
		})
		return ProcessResult{Success: false, Message: "invalid withdrawal amount"}
	}

	claimed, err := s.claim(ctx, withdrawalID)
	if err != nil {
		return ProcessResult{Success: false, Message: "unable to start withdrawal attempt"}
	}
	if !claimed {
		return ProcessResult{Success: false, Message: "withdrawal attempt already in progress"}
	}

	if meta.FundsRestored {
		if !isManualRetry {
			return s.fail(ctx, withdrawal, meta, nil, "funds were restored, submit a new withdrawal request")
		}
		relocked, err := s.relock(ctx, withdrawal, &meta)
		if err != nil || !relocked {
			return s.fail(ctx, withdrawal, meta, nil, "insufficient funds to retry withdrawal")
		}
	}

	if _, err := s.entries.FindPendingLock(ctx, withdrawal.WalletID, meta.Reference); err != nil {
		// No reservation exists: a caller error, never retried.
		log.Printf("withdrawal %s has no pending funds lock", withdrawalID)
		_ = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.withdrawals.MarkFailedFinal(ctx, tx, withdrawalID, "funds were never reserved", time.Now().UTC(), s.retryCeiling)
		})
		return ProcessResult{Success: false, Message: "funds were never reserved"}
	}

	payeeReference, err := s.payees.GetReference(ctx, withdrawal.RealtorID)
	if err != nil {
		return s.fail(ctx, withdrawal, meta, &transfer.Error{Kind: transfer.KindPayeeNotFound, Detail: "no payout account on file"}, "")
	}

	attemptReference := uuid.NewString()
	result, err := s.provider.Transfer(ctx, transfer.Request{
		Amount:         withdrawal.NetAmount,
		Currency:       s.currency,
		PayeeReference: payeeReference,
		Memo:           "staypay payout " + withdrawal.ID,
		Reference:      attemptReference,
		IdempotencyKey: withdrawal.ID,
	})
	if err != nil {
		return s.fail(ctx, withdrawal, meta, err, "")
	}
	return s.complete(ctx, withdrawal, meta, attemptReference, result)
}

func (s *WithdrawalService) claim(ctx context.Context, withdrawalID string) (bool, error) {
	var claimed bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.withdrawals.ClaimForProcessing(ctx, tx, withdrawalID)
		if err != nil {
			return err
		}
		claimed = rows > 0
		return nil
	})
	return claimed, err
}

// relock re-reserves funds for a manual retry after an earlier failure
// already restored them to the available balance.
func (s *WithdrawalService) relock(ctx context.Context, withdrawal models.WithdrawalRequest, meta *models.WithdrawalMetadata) (bool, error) {
	relocked := false
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		wallet, err := s.wallets.GetForUpdate(ctx, tx, withdrawal.WalletID)
		if err != nil {
			return err
		}
		if wallet.BalanceAvailable < withdrawal.Amount {
			return nil
		}
		if _, err := s.wallet.LockPending(ctx, tx, wallet.ID, withdrawal.Amount, withdrawal.NetAmount, meta.Reference); err != nil {
			return err
		}
		meta.FundsRestored = false
		metadata, _ := json.Marshal(meta)
		if err := s.withdrawals.UpdateMetadata(ctx, tx, withdrawal.ID, string(metadata)); err != nil {
			return err
		}
		relocked = true
		return nil
	})
	return relocked, err
}

func (s *WithdrawalService) complete(ctx context.Context, withdrawal models.WithdrawalRequest, meta models.WithdrawalMetadata, attemptReference string, result transfer.Result) ProcessResult {
	now := time.Now().UTC()
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		lock, err := s.entries.GetPendingLock(ctx, tx, withdrawal.WalletID, meta.Reference)
		if err != nil {
			return err
		}
		lockMeta, _ := json.Marshal(models.LockMetadata{Reference: meta.Reference})
		rows, err := s.entries.Resolve(ctx, tx, lock.ID, models.EntryCompleted, string(lockMeta))
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrWithdrawalResolved
		}
		if _, err := s.wallets.AdjustBalances(ctx, tx, withdrawal.WalletID, 0, -withdrawal.NetAmount); err != nil {
			return err
		}
		if withdrawal.FeeAmount > 0 {
			if err := s.wallet.Debit(ctx, tx, withdrawal.WalletID, withdrawal.FeeAmount, BucketPending,
				models.SourceWithdrawalFee, withdrawal.ID, "{}"); err != nil {
				return err
			}
			if err := s.wallet.CreditPlatformFee(ctx, tx, withdrawal.FeeAmount, models.SourceWithdrawalFee, withdrawal.ID); err != nil {
				return err
			}
		}
		metadata, _ := json.Marshal(models.WithdrawalMetadata{
			Reference:            meta.Reference,
			ProviderTransferCode: result.TransferCode,
			ProviderStatus:       result.Status,
			FundsRestored:        false,
		})
		if err := s.withdrawals.MarkCompleted(ctx, tx, withdrawal.ID, now, string(metadata)); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"transfer_code":      result.TransferCode,
			"transfer_reference": attemptReference,
			"net_amount":         withdrawal.NetAmount,
		})
		return s.audit.Log(ctx, tx, withdrawal.RealtorID, "withdrawal_completed", "withdrawal", withdrawal.ID, string(data))
	})
	if err != nil {
		// Provider transfer went through but local settlement did not.
		// The withdrawal stays PROCESSING; restart reconciliation inspects
		// the lock entry and the provider transfer status before re-running
		// either path.
		log.Printf("FATAL: withdrawal %s transferred at provider but settlement failed: %v", withdrawal.ID, err)
		return ProcessResult{Success: false, Message: "withdrawal settlement incomplete, reconciliation required"}
	}

	s.hub.Notify(withdrawal.RealtorID, notify.Event{
		Type: notify.EventWithdrawalCompleted,
		Payload: notify.WithdrawalPayload{
			WithdrawalID: withdrawal.ID,
			NetAmount:    formatMinor(withdrawal.NetAmount),
		},
	})
	return ProcessResult{Success: true, Message: "withdrawal completed", TransferReference: attemptReference}
}

// fail resolves a failed attempt: funds are restored to the available
// balance at most once, guarded by the lock entry's PENDING status.
func (s *WithdrawalService) fail(ctx context.Context, withdrawal models.WithdrawalRequest, meta models.WithdrawalMetadata, providerErr error, message string) ProcessResult {
	if message == "" {
		message = transfer.UserMessage(providerErr)
	}
	now := time.Now().UTC()
	restored := meta.FundsRestored
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		lock, err := s.entries.GetPendingLock(ctx, tx, withdrawal.WalletID, meta.Reference)
		if err == nil {
			lockMeta, _ := json.Marshal(models.LockMetadata{
				Reference:     meta.Reference,
				FundsRestored: true,
				FailureReason: message,
			})
			rows, err := s.entries.Resolve(ctx, tx, lock.ID, models.EntryFailed, string(lockMeta))
			if err != nil {
				return err
			}
			if rows > 0 {
				if _, err := s.wallets.AdjustBalances(ctx, tx, withdrawal.WalletID, withdrawal.Amount, -withdrawal.Amount); err != nil {
					return err
				}
				restored = true
			}
		} else if err != sql.ErrNoRows {
			return err
		}
		metadata, _ := json.Marshal(models.WithdrawalMetadata{
			Reference:     meta.Reference,
			FundsRestored: restored,
		})
		if err := s.withdrawals.MarkFailed(ctx, tx, withdrawal.ID, message, now, string(metadata)); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{"reason": message, "funds_restored": restored})
		return s.audit.Log(ctx, tx, withdrawal.RealtorID, "withdrawal_failed", "withdrawal", withdrawal.ID, string(data))
	})
	if err != nil {
		log.Printf("FATAL: withdrawal %s failure could not be recorded: %v", withdrawal.ID, err)
		return ProcessResult{Success: false, Message: "withdrawal failed, state unresolved"}
	}

	s.hub.Notify(withdrawal.RealtorID, notify.Event{
		Type: notify.EventWithdrawalFailed,
		Payload: notify.WithdrawalPayload{
			WithdrawalID: withdrawal.ID,
			NetAmount:    formatMinor(withdrawal.NetAmount),
			Message:      message,
			RetryCount:   withdrawal.RetryCount + 1,
		},
	})
	return ProcessResult{Success: false, Message: message}
}
