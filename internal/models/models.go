package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	RoleGuest   = "guest"
	RoleRealtor = "realtor"
)

type Booking struct {
	ID           string        `db:"id" json:"id"`
	GuestID      string        `db:"guest_id" json:"guest_id"`
	PropertyID   string        `db:"property_id" json:"property_id"`
	RealtorID    string        `db:"realtor_id" json:"realtor_id"`
	CheckInDate  time.Time     `db:"check_in_date" json:"check_in_date"`
	CheckOutDate time.Time     `db:"check_out_date" json:"check_out_date"`
	TotalPrice   int64         `db:"total_price" json:"total_price"`
	Status       BookingStatus `db:"status" json:"status"`
	PaymentID    *string       `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

type Payment struct {
	ID                 string        `db:"id" json:"id"`
	BookingID          string        `db:"booking_id" json:"booking_id"`
	Amount             int64         `db:"amount" json:"amount"`
	Currency           string        `db:"currency" json:"currency"`
	Status             PaymentStatus `db:"status" json:"status"`
	PlatformCommission int64         `db:"platform_commission" json:"platform_commission"`
	ProcessingFee      int64         `db:"processing_fee" json:"processing_fee"`
	CommissionRate     string        `db:"commission_rate" json:"commission_rate"`
	RealtorEarnings    int64         `db:"realtor_earnings" json:"realtor_earnings"`
	CommissionPaidOut  bool          `db:"commission_paid_out" json:"commission_paid_out"`
	PayoutDate         *time.Time    `db:"payout_date" json:"payout_date,omitempty"`
	PayoutReference    *string       `db:"payout_reference" json:"payout_reference,omitempty"`
	RefundAmount       int64         `db:"refund_amount" json:"refund_amount"`
	RefundedAt         *time.Time    `db:"refunded_at" json:"refunded_at,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
}

type OwnerType string

const (
	OwnerRealtor  OwnerType = "REALTOR"
	OwnerPlatform OwnerType = "PLATFORM"
)

// PlatformOwnerID is the well-known owner id of the singleton platform wallet.
const PlatformOwnerID = "platform"

type Wallet struct {
	ID               string    `db:"id" json:"id"`
	OwnerType        OwnerType `db:"owner_type" json:"owner_type"`
	OwnerID          string    `db:"owner_id" json:"owner_id"`
	BalanceAvailable int64     `db:"balance_available" json:"balance_available"`
	BalancePending   int64     `db:"balance_pending" json:"balance_pending"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "PENDING"
	EntryCompleted EntryStatus = "COMPLETED"
	EntryFailed    EntryStatus = "FAILED"
)

type EntrySource string

const (
	SourceEscrowRelease EntrySource = "BOOKING_ESCROW_RELEASE"
	SourceSettlement    EntrySource = "BOOKING_SETTLEMENT"
	SourceCommission    EntrySource = "COMMISSION"
	SourceProcessingFee EntrySource = "PROCESSING_FEE"
	SourceRefund        EntrySource = "REFUND_REVERSAL"
	SourceWithdrawal    EntrySource = "WITHDRAWAL"
	SourceWithdrawalFee EntrySource = "WITHDRAWAL_FEE"
)

type WalletTransaction struct {
	ID          string      `db:"id" json:"id"`
	WalletID    string      `db:"wallet_id" json:"wallet_id"`
	Type        EntryType   `db:"type" json:"type"`
	Source      EntrySource `db:"source" json:"source"`
	Amount      int64       `db:"amount" json:"amount"`
	ReferenceID string      `db:"reference_id" json:"reference_id"`
	Status      EntryStatus `db:"status" json:"status"`
	Metadata    string      `db:"metadata" json:"metadata"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// LockMetadata is the metadata shape carried by a withdrawal lock entry.
// FundsRestored may flip false->true exactly once, when the failure path
// has re-credited the wallet's available balance.
type LockMetadata struct {
	Reference     string `json:"reference"`
	FundsRestored bool   `json:"funds_restored"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "PENDING"
	WithdrawalProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalFailed     WithdrawalStatus = "FAILED"
	WithdrawalCancelled  WithdrawalStatus = "CANCELLED"
)

// WithdrawalMetadata is the metadata shape carried by a withdrawal request.
type WithdrawalMetadata struct {
	Reference            string `json:"reference"`
	ProviderTransferCode string `json:"provider_transfer_code,omitempty"`
	ProviderStatus       string `json:"provider_status,omitempty"`
	FundsRestored        bool   `json:"funds_restored"`
}

type WithdrawalRequest struct {
	ID            string           `db:"id" json:"id"`
	RealtorID     string           `db:"realtor_id" json:"realtor_id"`
	WalletID      string           `db:"wallet_id" json:"wallet_id"`
	Amount        int64            `db:"amount" json:"amount"`
	FeeAmount     int64            `db:"fee_amount" json:"fee_amount"`
	NetAmount     int64            `db:"net_amount" json:"net_amount"`
	Status        WithdrawalStatus `db:"status" json:"status"`
	RetryCount    int              `db:"retry_count" json:"retry_count"`
	FailureReason *string          `db:"failure_reason" json:"failure_reason,omitempty"`
	Metadata      string           `db:"metadata" json:"metadata"`
	RequestedAt   time.Time        `db:"requested_at" json:"requested_at"`
	ProcessedAt   *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	FailedAt      *time.Time       `db:"failed_at" json:"failed_at,omitempty"`
}
