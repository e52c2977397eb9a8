package commission

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidRate    = errors.New("rate must be between 0 and 1")
)

// DefaultRate is the platform-wide commission rate applied when the caller
// does not supply one.
var DefaultRate = decimal.RequireFromString("0.05")

// ProcessingFeeRate is fixed platform-wide and is not caller-overridable.
var ProcessingFeeRate = decimal.RequireFromString("0.015")

type Breakdown struct {
	PlatformCommission int64
	ProcessingFee      int64
	RealtorEarnings    int64
	CommissionRate     decimal.Decimal
}

// Calculate splits a gross amount in minor units into platform commission,
// processing fee and realtor earnings. Each output is rounded exactly once;
// earnings are derived by subtraction so the three parts always sum back to
// the gross amount.
func Calculate(totalAmount int64, rate *decimal.Decimal) (Breakdown, error) {
	if totalAmount < 0 {
		return Breakdown{}, ErrNegativeAmount
	}
	applied := DefaultRate
	if rate != nil {
		applied = *rate
	}
	if applied.IsNegative() || applied.GreaterThan(decimal.NewFromInt(1)) {
		return Breakdown{}, ErrInvalidRate
	}
	total := decimal.NewFromInt(totalAmount)
	platformCommission := total.Mul(applied).RoundBank(0).IntPart()
	processingFee := total.Mul(ProcessingFeeRate).RoundBank(0).IntPart()
	return Breakdown{
		PlatformCommission: platformCommission,
		ProcessingFee:      processingFee,
		RealtorEarnings:    totalAmount - platformCommission - processingFee,
		CommissionRate:     applied,
	}, nil
}
