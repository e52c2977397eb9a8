package transfer

import "context"

type Request struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PayeeReference string `json:"payee_reference"`
	Memo           string `json:"memo"`
	Reference      string `json:"reference"`
	// IdempotencyKey stays stable across retries of the same withdrawal so
	// an ambiguous timeout cannot turn into a double payment.
	IdempotencyKey string `json:"-"`
}

type Result struct {
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code"`
}

type Provider interface {
	Transfer(ctx context.Context, req Request) (Result, error)
}

type ErrorKind string

const (
	KindPayeeNotFound       ErrorKind = "payee_not_found"
	KindVerificationPending ErrorKind = "verification_pending"
	KindRateLimited         ErrorKind = "rate_limited"
	KindTimeout             ErrorKind = "timeout"
	KindRejected            ErrorKind = "rejected"
	KindUnavailable         ErrorKind = "unavailable"
)

// Error carries the provider's raw detail for logs while Kind drives the
// user-facing message. Raw detail never reaches an end user.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Detail
}

var userMessages = map[ErrorKind]string{
	KindPayeeNotFound:       "payee account not configured, update your payout details",
	KindVerificationPending: "provider verification pending, try again later",
	KindRateLimited:         "transfer provider rate limited, will retry shortly",
	KindTimeout:             "transfer timed out, outcome ambiguous pending reconciliation",
	KindRejected:            "transfer rejected by provider",
	KindUnavailable:         "transfer provider unavailable",
}

// UserMessage maps any provider failure to a stable, actionable message.
func UserMessage(err error) string {
	if providerErr, ok := err.(*Error); ok {
		if msg, ok := userMessages[providerErr.Kind]; ok {
			return msg
		}
	}
	return userMessages[KindUnavailable]
}

// IsTimeout reports whether the attempt ended without a known provider-side
// outcome.
func IsTimeout(err error) bool {
	providerErr, ok := err.(*Error)
	return ok && providerErr.Kind == KindTimeout
}
