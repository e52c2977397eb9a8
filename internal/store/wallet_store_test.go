package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"staypay/internal/models"
)

func TestWalletStoreAdjustBalancesGuardsNegative(t *testing.T) {
	ctx := context.Background()
	var gotQuery string
	var gotArgs []any
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			gotQuery = query
			gotArgs = args
			return stubResult{rows: 0}, nil
		},
	}
	store := NewWalletStore(stubDB{})
	rows, err := store.AdjustBalances(ctx, execer, "w1", -500, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected 0 rows, got %d", rows)
	}
	if !strings.Contains(gotQuery, "balance_available + $1 >= 0") {
		t.Fatalf("missing non-negative guard on available: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "balance_pending + $2 >= 0") {
		t.Fatalf("missing non-negative guard on pending: %s", gotQuery)
	}
	if len(gotArgs) != 3 || gotArgs[0] != int64(-500) || gotArgs[1] != int64(500) || gotArgs[2] != "w1" {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}

func TestWalletStoreCreditPlatformUpsertsAtomically(t *testing.T) {
	ctx := context.Background()
	var gotQuery string
	tx := stubTx{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			gotQuery = query
			return stubResult{rows: 1}, nil
		},
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			*dest.(*string) = "platform-wallet"
			return nil
		},
	}
	store := NewWalletStore(stubDB{})
	walletID, err := store.CreditPlatform(ctx, tx, "new-id", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if walletID != "platform-wallet" {
		t.Fatalf("unexpected wallet id: %s", walletID)
	}
	if !strings.Contains(gotQuery, "ON CONFLICT (owner_type, owner_id)") {
		t.Fatalf("expected upsert, got: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "wallets.balance_available + EXCLUDED.balance_available") {
		t.Fatalf("increment must happen inside the upsert: %s", gotQuery)
	}
}

func TestWalletStoreGetForUpdateLocksRow(t *testing.T) {
	ctx := context.Background()
	getter := stubGetter{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") {
				t.Fatalf("expected row lock, got: %s", query)
			}
			*dest.(*models.Wallet) = models.Wallet{ID: "w1", BalanceAvailable: 100}
			return nil
		},
	}
	store := NewWalletStore(stubDB{})
	wallet, err := store.GetForUpdate(ctx, getter, "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wallet.BalanceAvailable != 100 {
		t.Fatalf("unexpected wallet: %#v", wallet)
	}
}
