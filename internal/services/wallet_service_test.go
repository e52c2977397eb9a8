package services

import (
	"context"
	"testing"

	"staypay/internal/models"
)

func newWalletFixture() (*WalletService, *memWalletStore, *memEntryStore) {
	wallets := newMemWalletStore()
	entries := newMemEntryStore()
	return NewWalletService(wallets, entries), wallets, entries
}

func TestCreditAndDebit(t *testing.T) {
	svc, wallets, entries := newWalletFixture()
	wallets.add(models.Wallet{ID: "wal-1", OwnerType: models.OwnerRealtor, OwnerID: "realtor-1"})
	ctx := context.Background()

	if err := svc.Credit(ctx, nil, "wal-1", 10000, BucketPending, models.SourceEscrowRelease, "pay-1", "{}"); err != nil {
		t.Fatal(err)
	}
	wallet, _ := wallets.GetByID(ctx, "wal-1")
	if wallet.BalancePending != 10000 {
		t.Errorf("pending = %d, want 10000", wallet.BalancePending)
	}

	if err := svc.Debit(ctx, nil, "wal-1", 4000, BucketPending, models.SourceRefund, "pay-1", "{}"); err != nil {
		t.Fatal(err)
	}
	wallet, _ = wallets.GetByID(ctx, "wal-1")
	if wallet.BalancePending != 6000 {
		t.Errorf("pending = %d, want 6000", wallet.BalancePending)
	}

	if err := svc.Debit(ctx, nil, "wal-1", 99999, BucketPending, models.SourceRefund, "pay-1", "{}"); err != ErrInsufficientFunds {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
	if err := svc.Credit(ctx, nil, "wal-1", 0, BucketPending, models.SourceEscrowRelease, "pay-1", "{}"); err != ErrInvalidAmount {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
	if got := len(entries.entries); got != 2 {
		t.Errorf("ledger entries = %d, want 2 (failed operations leave no trace)", got)
	}
}

func TestMovePendingToAvailableIsBalanced(t *testing.T) {
	svc, wallets, entries := newWalletFixture()
	wallets.add(models.Wallet{ID: "wal-1", OwnerType: models.OwnerRealtor, OwnerID: "realtor-1", BalancePending: 93500})
	ctx := context.Background()

	if err := svc.MovePendingToAvailable(ctx, nil, "wal-1", 93500, models.SourceSettlement, "pay-1"); err != nil {
		t.Fatal(err)
	}
	wallet, _ := wallets.GetByID(ctx, "wal-1")
	if wallet.BalanceAvailable != 93500 || wallet.BalancePending != 0 {
		t.Errorf("balances = %d/%d, want 93500/0", wallet.BalanceAvailable, wallet.BalancePending)
	}
	// The move is recorded as a debit and a matching credit, so the ledger
	// shows no net movement of funds.
	sum, _ := entries.SumCompletedByWallet(ctx, "wal-1")
	if sum != 0 {
		t.Errorf("ledger sum = %d, want 0", sum)
	}
	if len(entries.entries) != 2 {
		t.Errorf("entries = %d, want a debit/credit pair", len(entries.entries))
	}
}

func TestLockPending(t *testing.T) {
	svc, wallets, entries := newWalletFixture()
	wallets.add(models.Wallet{ID: "wal-1", OwnerType: models.OwnerRealtor, OwnerID: "realtor-1", BalanceAvailable: 60000})
	ctx := context.Background()

	entryID, err := svc.LockPending(ctx, nil, "wal-1", 50500, 50000, "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	wallet, _ := wallets.GetByID(ctx, "wal-1")
	if wallet.BalanceAvailable != 9500 || wallet.BalancePending != 50500 {
		t.Errorf("balances = %d/%d, want 9500/50500", wallet.BalanceAvailable, wallet.BalancePending)
	}
	lock, err := entries.FindPendingLock(ctx, "wal-1", "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if lock.ID != entryID || lock.Amount != 50000 || lock.Type != models.EntryDebit {
		t.Errorf("lock = %+v", lock)
	}

	if _, err := svc.LockPending(ctx, nil, "wal-1", 50500, 50000, "ref-2"); err != ErrInsufficientFunds {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
	if _, err := svc.LockPending(ctx, nil, "wal-1", 1000, 2000, "ref-3"); err != ErrInvalidAmount {
		t.Errorf("net above gross: err = %v, want ErrInvalidAmount", err)
	}
}

func TestCreditPlatformFee(t *testing.T) {
	svc, wallets, entries := newWalletFixture()
	ctx := context.Background()

	if err := svc.CreditPlatformFee(ctx, nil, 5000, models.SourceCommission, "pay-1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.CreditPlatformFee(ctx, nil, 1500, models.SourceProcessingFee, "pay-1"); err != nil {
		t.Fatal(err)
	}
	platform, err := wallets.GetByOwner(ctx, models.OwnerPlatform, models.PlatformOwnerID)
	if err != nil {
		t.Fatal("platform wallet missing")
	}
	if platform.BalanceAvailable != 6500 {
		t.Errorf("platform balance = %d, want 6500", platform.BalanceAvailable)
	}
	sum, _ := entries.SumCompletedByWallet(ctx, platform.ID)
	if sum != 6500 {
		t.Errorf("platform ledger sum = %d, want 6500", sum)
	}
}
