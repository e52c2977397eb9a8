package models

type BookingStatus string

const (
	BookingPending       BookingStatus = "PENDING"
	BookingPaid          BookingStatus = "PAID"
	BookingConfirmed     BookingStatus = "CONFIRMED"
	BookingCheckedIn     BookingStatus = "CHECKED_IN"
	BookingCheckedOut    BookingStatus = "CHECKED_OUT"
	BookingDisputeOpened BookingStatus = "DISPUTE_OPENED"
	BookingCompleted     BookingStatus = "COMPLETED"
	BookingCancelled     BookingStatus = "CANCELLED"
)

// bookingTransitions is the full lifecycle graph. Terminal states have no
// outgoing edges and never re-enter the map as sources.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:       {BookingPaid, BookingCancelled},
	BookingPaid:          {BookingConfirmed, BookingCheckedIn, BookingCancelled},
	BookingConfirmed:     {BookingCheckedIn, BookingCancelled},
	BookingCheckedIn:     {BookingCheckedOut, BookingDisputeOpened},
	BookingDisputeOpened: {BookingCompleted, BookingCancelled},
	BookingCheckedOut:    {BookingCompleted},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingPaid, BookingConfirmed, BookingCheckedIn,
		BookingCheckedOut, BookingDisputeOpened, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentInitiated         PaymentStatus = "INITIATED"
	PaymentPending           PaymentStatus = "PENDING"
	PaymentEscrowHeld        PaymentStatus = "ESCROW_HELD"
	PaymentPartiallyReleased PaymentStatus = "PARTIALLY_RELEASED"
	PaymentSettled           PaymentStatus = "SETTLED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentFailed            PaymentStatus = "FAILED"
)

// PENDING is the optional async-capture stage; a capture confirmed in the
// same request goes INITIATED -> ESCROW_HELD directly.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentInitiated:         {PaymentPending, PaymentEscrowHeld, PaymentFailed},
	PaymentPending:           {PaymentEscrowHeld, PaymentFailed},
	PaymentEscrowHeld:        {PaymentPartiallyReleased, PaymentRefunded},
	PaymentPartiallyReleased: {PaymentSettled, PaymentRefunded},
}

func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// EscrowConfirmed reports whether guest funds are secured with the platform.
// Gates access to sensitive property details and triggers commission math.
func (s PaymentStatus) EscrowConfirmed() bool {
	return s == PaymentEscrowHeld || s == PaymentPartiallyReleased || s == PaymentSettled
}

// RefundEligible is false once a payment settles; post-settlement disputes go
// through a separate flow.
func (s PaymentStatus) RefundEligible() bool {
	return s.CanTransitionTo(PaymentRefunded)
}
