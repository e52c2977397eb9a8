package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"staypay/internal/models"
	"staypay/internal/services"

	"github.com/shopspring/decimal"
)

func partyBookingStore(booking models.Booking) stubBookingStore {
	return stubBookingStore{
		getByIDFn: func(ctx context.Context, bookingID string) (models.Booking, error) {
			if bookingID != booking.ID {
				return models.Booking{}, sql.ErrNoRows
			}
			return booking, nil
		},
	}
}

func TestCreateBooking(t *testing.T) {
	var got services.CreateBookingRequest
	h := newTestHandler(handlerDeps{
		bookingSvc: stubBookingService{
			createFn: func(ctx context.Context, req services.CreateBookingRequest, bookingID string) (models.Booking, error) {
				got = req
				return models.Booking{ID: bookingID, GuestID: req.GuestID, Status: models.BookingPending, TotalPrice: req.TotalPrice}, nil
			},
		},
	})
	rr := serveWithAuthJSON(t, h.CreateBooking, "guest-1", map[string]string{
		"property_id":    "prop-9",
		"realtor_id":     "realtor-1",
		"check_in_date":  "2026-09-10",
		"check_out_date": "2026-09-14",
		"total_price":    "1000.00",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.GuestID != "guest-1" {
		t.Fatalf("expected the guest from the token, got %s", got.GuestID)
	}
	if got.TotalPrice != 100000 {
		t.Fatalf("expected 100000 minor units, got %d", got.TotalPrice)
	}
	body := decodeBody(t, rr)
	if body["status"] != "PENDING" {
		t.Fatalf("expected PENDING booking, got %v", body["status"])
	}
}

func TestCreateBookingRejectsBadPrice(t *testing.T) {
	h := newTestHandler(handlerDeps{})
	rr := serveWithAuthJSON(t, h.CreateBooking, "guest-1", map[string]string{
		"property_id":    "prop-9",
		"realtor_id":     "realtor-1",
		"check_in_date":  "2026-09-10",
		"check_out_date": "2026-09-14",
		"total_price":    "-50",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetBookingPartyGuard(t *testing.T) {
	booking := models.Booking{ID: "book-1", GuestID: "guest-1", RealtorID: "realtor-1", Status: models.BookingPaid}
	h := newTestHandler(handlerDeps{bookings: partyBookingStore(booking)})

	rr := serveWithAuthParam(t, h.GetBooking, "guest-1", "book-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for the guest, got %d", rr.Code)
	}
	rr = serveWithAuthParam(t, h.GetBooking, "realtor-1", "book-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for the realtor, got %d", rr.Code)
	}
	rr = serveWithAuthParam(t, h.GetBooking, "stranger-1", "book-1", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a stranger, got %d", rr.Code)
	}
	rr = serveWithAuthParam(t, h.GetBooking, "guest-1", "missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown booking, got %d", rr.Code)
	}
}

func TestPayBooking(t *testing.T) {
	booking := models.Booking{ID: "book-1", GuestID: "guest-1", RealtorID: "realtor-1", Status: models.BookingPending}
	var confirmedID string
	var confirmedRate *decimal.Decimal
	h := newTestHandler(handlerDeps{
		bookings: partyBookingStore(booking),
		paymentSvc: stubPaymentService{
			initiateFn: func(ctx context.Context, bookingID string) (models.Payment, error) {
				return models.Payment{ID: "pay-1", BookingID: bookingID, Status: models.PaymentInitiated}, nil
			},
			confirmFn: func(ctx context.Context, paymentID string, rate *decimal.Decimal) (models.Payment, error) {
				confirmedID = paymentID
				confirmedRate = rate
				return models.Payment{ID: paymentID, BookingID: "book-1", Status: models.PaymentEscrowHeld}, nil
			},
		},
	})

	rr := serveWithAuthParam(t, h.PayBooking, "guest-1", "book-1", map[string]string{})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if confirmedID != "pay-1" {
		t.Fatalf("expected escrow confirmation for pay-1, got %s", confirmedID)
	}
	if confirmedRate != nil {
		t.Fatal("expected default commission rate when none supplied")
	}

	rr = serveWithAuthParam(t, h.PayBooking, "guest-1", "book-1", map[string]string{"commission_rate": "0.08"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if confirmedRate == nil || !confirmedRate.Equal(decimal.RequireFromString("0.08")) {
		t.Fatalf("expected commission rate 0.08, got %v", confirmedRate)
	}

	rr = serveWithAuthParam(t, h.PayBooking, "guest-1", "book-1", map[string]string{"commission_rate": "1.5"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range rate, got %d", rr.Code)
	}
}

func TestPayBookingAlreadyPaid(t *testing.T) {
	paymentID := "pay-1"
	booking := models.Booking{ID: "book-1", GuestID: "guest-1", RealtorID: "realtor-1", Status: models.BookingPaid, PaymentID: &paymentID}
	h := newTestHandler(handlerDeps{
		bookings: partyBookingStore(booking),
		paymentSvc: stubPaymentService{
			initiateFn: func(ctx context.Context, bookingID string) (models.Payment, error) {
				return models.Payment{}, services.ErrInvalidTransition
			},
			confirmFn: func(ctx context.Context, paymentID string, rate *decimal.Decimal) (models.Payment, error) {
				return models.Payment{}, services.ErrPaymentConflict
			},
		},
	})
	rr := serveWithAuthParam(t, h.PayBooking, "guest-1", "book-1", map[string]string{})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an already processed payment, got %d", rr.Code)
	}
}

func TestCheckInReleasesFunds(t *testing.T) {
	booking := models.Booking{ID: "book-1", GuestID: "guest-1", RealtorID: "realtor-1", Status: models.BookingPaid}
	var transitionedTo models.BookingStatus
	var released bool
	h := newTestHandler(handlerDeps{
		bookings: partyBookingStore(booking),
		bookingSvc: stubBookingService{
			transitionFn: func(ctx context.Context, req services.TransitionRequest) (models.Booking, error) {
				transitionedTo = req.Target
				return models.Booking{ID: req.BookingID, Status: req.Target}, nil
			},
		},
		paymentSvc: stubPaymentService{
			releaseFn: func(ctx context.Context, bookingID string) (models.Payment, error) {
				released = true
				return models.Payment{ID: "pay-1", BookingID: bookingID, Status: models.PaymentPartiallyReleased}, nil
			},
		},
	})
	rr := serveWithAuthParam(t, h.CheckIn, "guest-1", "book-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if transitionedTo != models.BookingCheckedIn {
		t.Fatalf("expected CHECKED_IN transition, got %s", transitionedTo)
	}
	if !released {
		t.Fatal("expected escrow release on check-in")
	}
}

func TestTransitionErrorMapping(t *testing.T) {
	booking := models.Booking{ID: "book-1", GuestID: "guest-1", RealtorID: "realtor-1", Status: models.BookingPending}
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid edge", services.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"stale status", services.ErrStatusConflict, http.StatusConflict},
		{"missing booking", services.ErrBookingNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(handlerDeps{
				bookings: partyBookingStore(booking),
				bookingSvc: stubBookingService{
					transitionFn: func(ctx context.Context, req services.TransitionRequest) (models.Booking, error) {
						return models.Booking{}, tc.err
					},
				},
			})
			rr := serveWithAuthParam(t, h.CancelBooking, "guest-1", "book-1", nil)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestListBookingsAsRealtor(t *testing.T) {
	var guestCalled, realtorCalled bool
	h := newTestHandler(handlerDeps{
		bookings: stubBookingStore{
			listByGuestFn: func(ctx context.Context, guestID string, limit, offset int) ([]models.Booking, error) {
				guestCalled = true
				return nil, nil
			},
			listByRealtorFn: func(ctx context.Context, realtorID string, limit, offset int) ([]models.Booking, error) {
				realtorCalled = true
				if limit != 20 || offset != 0 {
					t.Fatalf("expected default paging, got limit=%d offset=%d", limit, offset)
				}
				return []models.Booking{{ID: "book-1", RealtorID: realtorID, Status: models.BookingPaid}}, nil
			},
		},
	})
	req := httptest.NewRequest(http.MethodGet, "/?as=realtor", nil)
	rr := serveAuthedRequest(t, h.ListBookings, "realtor-1", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if guestCalled || !realtorCalled {
		t.Fatalf("expected the realtor listing path, got guest=%v realtor=%v", guestCalled, realtorCalled)
	}
}
