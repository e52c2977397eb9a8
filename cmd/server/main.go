package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staypay/internal/config"
	"staypay/internal/db"
	"staypay/internal/handlers"
	"staypay/internal/notify"
	"staypay/internal/services"
	"staypay/internal/store"
	"staypay/internal/transfer"

	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	feeRate, err := decimal.NewFromString(cfg.WithdrawalFeeRate)
	if err != nil {
		log.Fatalf("invalid withdrawal fee rate %q: %v", cfg.WithdrawalFeeRate, err)
	}

	users := store.NewUserStore(database)
	bookings := store.NewBookingStore(database)
	payments := store.NewPaymentStore(database)
	wallets := store.NewWalletStore(database)
	entries := store.NewWalletTransactionStore(database)
	withdrawals := store.NewWithdrawalStore(database)
	payouts := store.NewPayoutAccountStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := notify.NewHub()
	provider := transfer.NewHTTPClient(cfg.ProviderURL, cfg.ProviderAPIKey, cfg.ProviderTimeout)

	walletSvc := services.NewWalletService(wallets, entries)
	bookingSvc := services.NewBookingService(txRunner, bookings, audit, hub)
	paymentSvc := services.NewPaymentService(txRunner, payments, bookings, walletSvc, audit, hub, cfg.Currency)
	withdrawSvc := services.NewWithdrawalService(txRunner, withdrawals, wallets, entries, walletSvc, payouts, provider, audit, hub, feeRate, cfg.Currency)
	retries := services.NewRetryCoordinator(withdrawSvc, cfg.RetryInterval, cfg.RetryDelay)

	retryCtx, stopRetries := context.WithCancel(context.Background())
	go retries.Run(retryCtx)

	handler := handlers.New(txRunner, cfg, users, bookings, wallets, entries, withdrawals, payouts, admin, audit, bookingSvc, paymentSvc, withdrawSvc, retries, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("staypay API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	stopRetries()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
