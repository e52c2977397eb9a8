package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"staypay/internal/models"
	"staypay/internal/notify"
	"staypay/internal/store"
	"staypay/internal/transfer"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

type memWalletStore struct {
	wallets map[string]*models.Wallet
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{wallets: map[string]*models.Wallet{}}
}

func (m *memWalletStore) add(wallet models.Wallet) *models.Wallet {
	copied := wallet
	m.wallets[wallet.ID] = &copied
	return &copied
}

func (m *memWalletStore) byOwner(ownerType models.OwnerType, ownerID string) *models.Wallet {
	for _, wallet := range m.wallets {
		if wallet.OwnerType == ownerType && wallet.OwnerID == ownerID {
			return wallet
		}
	}
	return nil
}

func (m *memWalletStore) Ensure(ctx context.Context, tx store.Execer, id string, ownerType models.OwnerType, ownerID string) error {
	if m.byOwner(ownerType, ownerID) == nil {
		m.wallets[id] = &models.Wallet{ID: id, OwnerType: ownerType, OwnerID: ownerID}
	}
	return nil
}

func (m *memWalletStore) GetByID(ctx context.Context, walletID string) (models.Wallet, error) {
	wallet, ok := m.wallets[walletID]
	if !ok {
		return models.Wallet{}, sql.ErrNoRows
	}
	return *wallet, nil
}

func (m *memWalletStore) GetByOwner(ctx context.Context, ownerType models.OwnerType, ownerID string) (models.Wallet, error) {
	if wallet := m.byOwner(ownerType, ownerID); wallet != nil {
		return *wallet, nil
	}
	return models.Wallet{}, sql.ErrNoRows
}

func (m *memWalletStore) GetForUpdate(ctx context.Context, tx store.Getter, walletID string) (models.Wallet, error) {
	return m.GetByID(ctx, walletID)
}

func (m *memWalletStore) GetForUpdateByOwner(ctx context.Context, tx store.Getter, ownerType models.OwnerType, ownerID string) (models.Wallet, error) {
	return m.GetByOwner(ctx, ownerType, ownerID)
}

func (m *memWalletStore) AdjustBalances(ctx context.Context, tx store.Execer, walletID string, availableDelta, pendingDelta int64) (int64, error) {
	wallet, ok := m.wallets[walletID]
	if !ok {
		return 0, nil
	}
	if wallet.BalanceAvailable+availableDelta < 0 || wallet.BalancePending+pendingDelta < 0 {
		return 0, nil
	}
	wallet.BalanceAvailable += availableDelta
	wallet.BalancePending += pendingDelta
	return 1, nil
}

func (m *memWalletStore) CreditPlatform(ctx context.Context, tx store.Tx, id string, amount int64) (string, error) {
	wallet := m.byOwner(models.OwnerPlatform, models.PlatformOwnerID)
	if wallet == nil {
		wallet = &models.Wallet{ID: id, OwnerType: models.OwnerPlatform, OwnerID: models.PlatformOwnerID}
		m.wallets[id] = wallet
	}
	wallet.BalanceAvailable += amount
	return wallet.ID, nil
}

type memEntryStore struct {
	entries []*models.WalletTransaction
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{}
}

func (m *memEntryStore) Insert(ctx context.Context, tx store.Execer, input store.WalletTransactionInput) error {
	m.entries = append(m.entries, &models.WalletTransaction{
		ID:          input.ID,
		WalletID:    input.WalletID,
		Type:        input.Type,
		Source:      input.Source,
		Amount:      input.Amount,
		ReferenceID: input.ReferenceID,
		Status:      input.Status,
		Metadata:    input.Metadata,
	})
	return nil
}

func (m *memEntryStore) findLock(walletID, referenceID string) *models.WalletTransaction {
	for _, entry := range m.entries {
		if entry.WalletID == walletID && entry.ReferenceID == referenceID &&
			entry.Source == models.SourceWithdrawal && entry.Status == models.EntryPending {
			return entry
		}
	}
	return nil
}

func (m *memEntryStore) FindPendingLock(ctx context.Context, walletID, referenceID string) (models.WalletTransaction, error) {
	if entry := m.findLock(walletID, referenceID); entry != nil {
		return *entry, nil
	}
	return models.WalletTransaction{}, sql.ErrNoRows
}

func (m *memEntryStore) GetPendingLock(ctx context.Context, tx store.Getter, walletID, referenceID string) (models.WalletTransaction, error) {
	return m.FindPendingLock(ctx, walletID, referenceID)
}

func (m *memEntryStore) Resolve(ctx context.Context, tx store.Execer, entryID string, status models.EntryStatus, metadata string) (int64, error) {
	for _, entry := range m.entries {
		if entry.ID == entryID && entry.Status == models.EntryPending {
			entry.Status = status
			entry.Metadata = metadata
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memEntryStore) SumCompletedByWallet(ctx context.Context, walletID string) (int64, error) {
	var sum int64
	for _, entry := range m.entries {
		if entry.WalletID != walletID || entry.Status != models.EntryCompleted {
			continue
		}
		if entry.Type == models.EntryCredit {
			sum += entry.Amount
		} else {
			sum -= entry.Amount
		}
	}
	return sum, nil
}

func (m *memEntryStore) countByTypeSource(walletID string, entryType models.EntryType, source models.EntrySource) int {
	count := 0
	for _, entry := range m.entries {
		if entry.WalletID == walletID && entry.Type == entryType && entry.Source == source {
			count++
		}
	}
	return count
}

type memWithdrawalStore struct {
	withdrawals map[string]*models.WithdrawalRequest
}

func newMemWithdrawalStore() *memWithdrawalStore {
	return &memWithdrawalStore{withdrawals: map[string]*models.WithdrawalRequest{}}
}

func (m *memWithdrawalStore) add(withdrawal models.WithdrawalRequest) *models.WithdrawalRequest {
	copied := withdrawal
	m.withdrawals[withdrawal.ID] = &copied
	return &copied
}

func (m *memWithdrawalStore) Create(ctx context.Context, tx store.Execer, input store.WithdrawalInput) error {
	m.withdrawals[input.ID] = &models.WithdrawalRequest{
		ID:          input.ID,
		RealtorID:   input.RealtorID,
		WalletID:    input.WalletID,
		Amount:      input.Amount,
		FeeAmount:   input.FeeAmount,
		NetAmount:   input.NetAmount,
		Status:      input.Status,
		Metadata:    input.Metadata,
		RequestedAt: time.Now().UTC(),
	}
	return nil
}

func (m *memWithdrawalStore) GetByID(ctx context.Context, withdrawalID string) (models.WithdrawalRequest, error) {
	withdrawal, ok := m.withdrawals[withdrawalID]
	if !ok {
		return models.WithdrawalRequest{}, sql.ErrNoRows
	}
	return *withdrawal, nil
}

func (m *memWithdrawalStore) ClaimForProcessing(ctx context.Context, tx store.Execer, withdrawalID string) (int64, error) {
	withdrawal, ok := m.withdrawals[withdrawalID]
	if !ok {
		return 0, nil
	}
	if withdrawal.Status != models.WithdrawalPending && withdrawal.Status != models.WithdrawalFailed {
		return 0, nil
	}
	withdrawal.Status = models.WithdrawalProcessing
	return 1, nil
}

func (m *memWithdrawalStore) MarkCompleted(ctx context.Context, tx store.Execer, withdrawalID string, processedAt time.Time, metadata string) error {
	withdrawal := m.withdrawals[withdrawalID]
	withdrawal.Status = models.WithdrawalCompleted
	withdrawal.ProcessedAt = &processedAt
	withdrawal.Metadata = metadata
	withdrawal.FailureReason = nil
	return nil
}

func (m *memWithdrawalStore) MarkFailed(ctx context.Context, tx store.Execer, withdrawalID, failureReason string, failedAt time.Time, metadata string) error {
	withdrawal := m.withdrawals[withdrawalID]
	withdrawal.Status = models.WithdrawalFailed
	withdrawal.RetryCount++
	withdrawal.FailureReason = &failureReason
	withdrawal.FailedAt = &failedAt
	withdrawal.Metadata = metadata
	return nil
}

func (m *memWithdrawalStore) MarkFailedFinal(ctx context.Context, tx store.Execer, withdrawalID, failureReason string, failedAt time.Time, retryCeiling int) error {
	withdrawal := m.withdrawals[withdrawalID]
	withdrawal.Status = models.WithdrawalFailed
	if withdrawal.RetryCount < retryCeiling {
		withdrawal.RetryCount = retryCeiling
	}
	withdrawal.FailureReason = &failureReason
	withdrawal.FailedAt = &failedAt
	return nil
}

func (m *memWithdrawalStore) UpdateMetadata(ctx context.Context, tx store.Execer, withdrawalID, metadata string) error {
	m.withdrawals[withdrawalID].Metadata = metadata
	return nil
}

func (m *memWithdrawalStore) ListRetryable(ctx context.Context, retryCeiling, limit int) ([]models.WithdrawalRequest, error) {
	var rows []models.WithdrawalRequest
	for _, withdrawal := range m.withdrawals {
		if len(rows) == limit {
			break
		}
		if withdrawal.Status != models.WithdrawalFailed || withdrawal.RetryCount >= retryCeiling {
			continue
		}
		var meta models.WithdrawalMetadata
		if err := json.Unmarshal([]byte(withdrawal.Metadata), &meta); err == nil && meta.FundsRestored {
			continue
		}
		rows = append(rows, *withdrawal)
	}
	return rows, nil
}

type memBookingStore struct {
	bookings map[string]*models.Booking
}

func newMemBookingStore() *memBookingStore {
	return &memBookingStore{bookings: map[string]*models.Booking{}}
}

func (m *memBookingStore) add(booking models.Booking) *models.Booking {
	copied := booking
	m.bookings[booking.ID] = &copied
	return &copied
}

func (m *memBookingStore) Create(ctx context.Context, tx store.Execer, input store.BookingInput) error {
	m.bookings[input.ID] = &models.Booking{
		ID:         input.ID,
		GuestID:    input.GuestID,
		PropertyID: input.PropertyID,
		RealtorID:  input.RealtorID,
		TotalPrice: input.TotalPrice,
		Status:     input.Status,
	}
	return nil
}

func (m *memBookingStore) GetByID(ctx context.Context, bookingID string) (models.Booking, error) {
	booking, ok := m.bookings[bookingID]
	if !ok {
		return models.Booking{}, sql.ErrNoRows
	}
	return *booking, nil
}

func (m *memBookingStore) UpdateStatus(ctx context.Context, tx store.Execer, bookingID string, from, to models.BookingStatus) (int64, error) {
	booking, ok := m.bookings[bookingID]
	if !ok || booking.Status != from {
		return 0, nil
	}
	booking.Status = to
	return 1, nil
}

func (m *memBookingStore) SetPaymentID(ctx context.Context, tx store.Execer, bookingID, paymentID string) error {
	m.bookings[bookingID].PaymentID = &paymentID
	return nil
}

type memPaymentStore struct {
	payments map[string]*models.Payment
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{payments: map[string]*models.Payment{}}
}

func (m *memPaymentStore) add(payment models.Payment) *models.Payment {
	copied := payment
	m.payments[payment.ID] = &copied
	return &copied
}

func (m *memPaymentStore) Create(ctx context.Context, tx store.Execer, input store.PaymentInput) error {
	m.payments[input.ID] = &models.Payment{
		ID:        input.ID,
		BookingID: input.BookingID,
		Amount:    input.Amount,
		Currency:  input.Currency,
		Status:    input.Status,
	}
	return nil
}

func (m *memPaymentStore) GetByID(ctx context.Context, paymentID string) (models.Payment, error) {
	payment, ok := m.payments[paymentID]
	if !ok {
		return models.Payment{}, sql.ErrNoRows
	}
	return *payment, nil
}

func (m *memPaymentStore) GetByBookingID(ctx context.Context, bookingID string) (models.Payment, error) {
	for _, payment := range m.payments {
		if payment.BookingID == bookingID {
			return *payment, nil
		}
	}
	return models.Payment{}, sql.ErrNoRows
}

func (m *memPaymentStore) UpdateStatus(ctx context.Context, tx store.Execer, paymentID string, from, to models.PaymentStatus) (int64, error) {
	payment, ok := m.payments[paymentID]
	if !ok || payment.Status != from {
		return 0, nil
	}
	payment.Status = to
	return 1, nil
}

func (m *memPaymentStore) SetCommission(ctx context.Context, tx store.Execer, paymentID string, commission, fee, earnings int64, rate string) error {
	payment := m.payments[paymentID]
	payment.PlatformCommission = commission
	payment.ProcessingFee = fee
	payment.RealtorEarnings = earnings
	payment.CommissionRate = rate
	return nil
}

func (m *memPaymentStore) MarkPaidOut(ctx context.Context, tx store.Execer, paymentID, payoutReference string, payoutDate time.Time) (int64, error) {
	payment, ok := m.payments[paymentID]
	if !ok || payment.CommissionPaidOut {
		return 0, nil
	}
	payment.CommissionPaidOut = true
	payment.PayoutReference = &payoutReference
	payment.PayoutDate = &payoutDate
	return 1, nil
}

func (m *memPaymentStore) MarkRefunded(ctx context.Context, tx store.Execer, paymentID string, amount int64, refundedAt time.Time) error {
	payment := m.payments[paymentID]
	payment.RefundAmount = amount
	payment.RefundedAt = &refundedAt
	return nil
}

type memPayees struct {
	references map[string]string
}

func (m memPayees) GetReference(ctx context.Context, realtorID string) (string, error) {
	reference, ok := m.references[realtorID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return reference, nil
}

type fakeProvider struct {
	requests   []transfer.Request
	transferFn func(ctx context.Context, req transfer.Request) (transfer.Result, error)
}

func (p *fakeProvider) Transfer(ctx context.Context, req transfer.Request) (transfer.Result, error) {
	p.requests = append(p.requests, req)
	if p.transferFn == nil {
		return transfer.Result{Status: "success", TransferCode: "TRF_ok"}, nil
	}
	return p.transferFn(ctx, req)
}

type auditRecord struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Data       string
}

type memAudit struct {
	records []auditRecord
}

func (m *memAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	m.records = append(m.records, auditRecord{actorID, action, entityType, entityID, data})
	return nil
}

func (m *memAudit) lastAction() string {
	if len(m.records) == 0 {
		return ""
	}
	return m.records[len(m.records)-1].Action
}

type memHub struct {
	events map[string][]notify.Event
}

func newMemHub() *memHub {
	return &memHub{events: map[string][]notify.Event{}}
}

func (m *memHub) Notify(userID string, event notify.Event) {
	m.events[userID] = append(m.events[userID], event)
}

func newID() string {
	return uuid.NewString()
}
