package services

import "staypay/internal/money"

func formatMinor(amount int64) string {
	return money.FormatMinor(amount)
}
