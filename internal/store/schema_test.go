package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The stores stamp updated_at on every row they mutate, so the initial
// migration must declare the column on each of those tables.
func TestMigrationDeclaresUpdatedAtColumns(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	ddl := string(raw)
	for _, table := range []string{"wallets", "payments", "bookings", "withdrawal_requests"} {
		block := tableBlock(t, ddl, table)
		if !strings.Contains(block, "updated_at") {
			t.Fatalf("table %s does not declare updated_at", table)
		}
	}
}

func TestMigrationDeclaresStoreColumns(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	ddl := string(raw)
	cases := map[string][]string{
		"wallets":             {"owner_type", "owner_id", "balance_available", "balance_pending"},
		"wallet_transactions": {"wallet_id", "type", "source", "amount", "reference_id", "status", "metadata"},
		"payments":            {"booking_id", "amount", "currency", "status", "platform_commission", "processing_fee", "commission_rate", "realtor_earnings", "commission_paid_out", "payout_date", "payout_reference", "refund_amount", "refunded_at"},
		"withdrawal_requests": {"realtor_id", "wallet_id", "amount", "fee_amount", "net_amount", "status", "retry_count", "failure_reason", "metadata", "requested_at", "processed_at", "failed_at"},
		"bookings":            {"guest_id", "property_id", "realtor_id", "check_in_date", "check_out_date", "total_price", "status", "payment_id"},
	}
	for table, columns := range cases {
		block := tableBlock(t, ddl, table)
		for _, column := range columns {
			if !strings.Contains(block, column) {
				t.Fatalf("table %s does not declare %s", table, column)
			}
		}
	}
}

func tableBlock(t *testing.T, ddl, table string) string {
	t.Helper()
	marker := "CREATE TABLE " + table + " ("
	start := strings.Index(ddl, marker)
	if start < 0 {
		t.Fatalf("migration does not create table %s", table)
	}
	rest := ddl[start:]
	end := strings.Index(rest, ");")
	if end < 0 {
		t.Fatalf("unterminated create table for %s", table)
	}
	return rest[:end]
}
