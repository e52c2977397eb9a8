package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"staypay/internal/models"
)

func TestWithdrawalStoreClaimForProcessing(t *testing.T) {
	ctx := context.Background()
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "status IN ($3, $4)") {
				t.Fatalf("claim must guard on claimable statuses: %s", query)
			}
			if args[0] != models.WithdrawalProcessing {
				t.Fatalf("unexpected target status: %#v", args[0])
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewWithdrawalStore(stubDB{})
	rows, err := store.ClaimForProcessing(ctx, execer, "wd-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected claim to succeed, got %d rows", rows)
	}
}

func TestWithdrawalStoreMarkFailedIncrementsRetryCount(t *testing.T) {
	ctx := context.Background()
	var gotQuery string
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			gotQuery = query
			return stubResult{rows: 1}, nil
		},
	}
	store := NewWithdrawalStore(stubDB{})
	err := store.MarkFailed(ctx, execer, "wd-1", "provider timeout", time.Now(), `{"funds_restored":true}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "retry_count = retry_count + 1") {
		t.Fatalf("retry count must be incremented in SQL: %s", gotQuery)
	}
}

func TestWithdrawalStoreListRetryableFilters(t *testing.T) {
	ctx := context.Background()
	var gotQuery string
	var gotArgs []any
	store := NewWithdrawalStore(stubDB{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			gotQuery = query
			gotArgs = args
			return nil
		},
	})
	if _, err := store.ListRetryable(ctx, 3, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotQuery, "retry_count < $2") {
		t.Fatalf("missing retry ceiling filter: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "funds_restored") {
		t.Fatalf("missing funds_restored filter: %s", gotQuery)
	}
	if gotArgs[0] != models.WithdrawalFailed || gotArgs[1] != 3 || gotArgs[2] != 10 {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}
}
