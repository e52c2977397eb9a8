package services

import (
	"context"
	"log"
	"time"
)

const retryBatchSize = 10

type RetryStats struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RetryCoordinator sweeps failed withdrawals whose funds are still locked
// and re-runs them against the transfer provider. Withdrawals whose funds
// were already restored are excluded: those need a fresh request or a
// manual retry, which re-reserves the funds first.
type RetryCoordinator struct {
	service  *WithdrawalService
	interval time.Duration
	delay    time.Duration
}

func NewRetryCoordinator(service *WithdrawalService, interval, delay time.Duration) *RetryCoordinator {
	return &RetryCoordinator{service: service, interval: interval, delay: delay}
}

// RetryFailedWithdrawals runs one sweep: sequential, bounded batch, with a
// pause between provider calls to stay under rate limits.
func (c *RetryCoordinator) RetryFailedWithdrawals(ctx context.Context) (RetryStats, error) {
	stats := RetryStats{}
	withdrawals, err := c.service.withdrawals.ListRetryable(ctx, c.service.retryCeiling, retryBatchSize)
	if err != nil {
		return stats, err
	}
	for i, withdrawal := range withdrawals {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(c.delay):
			}
		}
		result := c.service.Process(ctx, withdrawal.ID, false)
		stats.Processed++
		if result.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	return stats, nil
}

// Run loops sweeps until the context is cancelled.
func (c *RetryCoordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := c.RetryFailedWithdrawals(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("withdrawal retry sweep failed: %v", err)
				continue
			}
			if stats.Processed > 0 {
				log.Printf("withdrawal retry sweep: processed=%d successful=%d failed=%d", stats.Processed, stats.Successful, stats.Failed)
			}
		}
	}
}
