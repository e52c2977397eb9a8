package handlers

import (
	"net/http"

	"staypay/internal/config"
	"staypay/internal/db"
	"staypay/internal/middleware"
	"staypay/internal/notify"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner    db.TxRunner
	cfg         config.Config
	users       UserStore
	bookings    BookingStore
	wallets     WalletStore
	entries     WalletTransactionStore
	withdrawals WithdrawalStore
	payouts     PayoutAccountStore
	admin       AdminStore
	audit       AuditStore
	bookingSvc  BookingService
	paymentSvc  PaymentService
	withdrawSvc WithdrawalService
	retries     RetryCoordinator
	hub         *notify.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, bookings BookingStore, wallets WalletStore, entries WalletTransactionStore, withdrawals WithdrawalStore, payouts PayoutAccountStore, admin AdminStore, audit AuditStore, bookingSvc BookingService, paymentSvc PaymentService, withdrawSvc WithdrawalService, retries RetryCoordinator, hub *notify.Hub) *Handler {
	return &Handler{
		txRunner:    txRunner,
		cfg:         cfg,
		users:       users,
		bookings:    bookings,
		wallets:     wallets,
		entries:     entries,
		withdrawals: withdrawals,
		payouts:     payouts,
		admin:       admin,
		audit:       audit,
		bookingSvc:  bookingSvc,
		paymentSvc:  paymentSvc,
		withdrawSvc: withdrawSvc,
		retries:     retries,
		hub:         hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.Route("/bookings", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Get("/{id}", h.GetBooking)
		r.Post("/{id}/pay", h.PayBooking)
		r.Post("/{id}/check-in", h.CheckIn)
		r.Post("/{id}/check-out", h.CheckOut)
		r.Post("/{id}/complete", h.CompleteBooking)
		r.Post("/{id}/cancel", h.CancelBooking)
		r.Post("/{id}/dispute", h.OpenDispute)
	})
	router.Route("/wallet", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Get("/", h.GetWallet)
		r.Get("/transactions", h.ListWalletTransactions)
	})
	router.Route("/withdrawals", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/", h.RequestWithdrawal)
		r.Get("/", h.ListWithdrawals)
		r.Get("/{id}", h.GetWithdrawal)
		r.Post("/{id}/retry", h.RetryWithdrawal)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Put("/payout-account", h.UpsertPayoutAccount)
	router.Get("/ws/events", h.WSEvents)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireAdmin(h.admin, "CanManageBookings")).Post("/bookings/{id}/transition", h.AdminTransitionBooking)
		r.With(middleware.RequireAdmin(h.admin, "CanManagePayments")).Post("/payments/{id}/refund", h.AdminRefundPayment)
		r.With(middleware.RequireAdmin(h.admin, "CanManagePayments")).Post("/withdrawals/retry-sweep", h.AdminRetrySweep)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/roles/grant", h.GrantRole)
		r.With(middleware.RequireAdmin(h.admin, "")).Post("/promote", h.PromoteAdmin)
		r.With(middleware.RequireAdmin(h.admin, "CanViewLedger")).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, "CanViewLedger")).Get("/reconcile", h.Reconcile)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
