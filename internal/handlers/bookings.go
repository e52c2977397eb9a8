package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"staypay/internal/middleware"
	"staypay/internal/models"
	"staypay/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createBookingRequest struct {
	PropertyID   string `json:"property_id"`
	RealtorID    string `json:"realtor_id"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
	TotalPrice   string `json:"total_price"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.PropertyID == "" || req.RealtorID == "" || req.CheckInDate == "" || req.CheckOutDate == "" {
		respondError(w, http.StatusBadRequest, "missing booking details")
		return
	}
	totalPrice, err := parseAmountMinor(req.TotalPrice)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid total price")
		return
	}
	booking, err := h.bookingSvc.Create(r.Context(), services.CreateBookingRequest{
		GuestID:      userID,
		PropertyID:   req.PropertyID,
		RealtorID:    req.RealtorID,
		CheckInDate:  req.CheckInDate,
		CheckOutDate: req.CheckOutDate,
		TotalPrice:   totalPrice,
	}, uuid.NewString())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create booking")
		return
	}
	respondJSON(w, http.StatusCreated, bookingPayload(booking))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 20)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit

	var bookings []models.Booking
	var err error
	if query.Get("as") == "realtor" {
		bookings, err = h.bookings.ListByRealtor(r.Context(), userID, limit, offset)
	} else {
		bookings, err = h.bookings.ListByGuest(r.Context(), userID, limit, offset)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load bookings")
		return
	}
	normalized := make([]map[string]any, 0, len(bookings))
	for _, booking := range bookings {
		normalized = append(normalized, bookingPayload(booking))
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadBookingForParty(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, bookingPayload(booking))
}

type payBookingRequest struct {
	CommissionRate string `json:"commission_rate"`
}

// PayBooking secures the guest's funds in escrow. The payment record is
// created if this is the first attempt, and the booking moves to PAID.
func (h *Handler) PayBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadBookingForParty(w, r)
	if !ok {
		return
	}
	var req payBookingRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	var rate *decimal.Decimal
	if req.CommissionRate != "" {
		parsed, err := parseRate(req.CommissionRate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid commission rate")
			return
		}
		rate = &parsed
	}

	payment, err := h.paymentSvc.Initiate(r.Context(), booking.ID)
	if err != nil && !errors.Is(err, services.ErrInvalidTransition) {
		respondError(w, http.StatusInternalServerError, "unable to initiate payment")
		return
	}
	paymentID := payment.ID
	if paymentID == "" && booking.PaymentID != nil {
		paymentID = *booking.PaymentID
	}
	if paymentID == "" {
		respondError(w, http.StatusConflict, "booking is not payable")
		return
	}
	payment, err = h.paymentSvc.ConfirmEscrow(r.Context(), paymentID, rate)
	if err != nil {
		if errors.Is(err, services.ErrPaymentConflict) {
			respondError(w, http.StatusConflict, "payment already processed")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to confirm escrow")
		return
	}
	respondJSON(w, http.StatusOK, paymentPayload(payment))
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadBookingForParty(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	if _, err := h.bookingSvc.Transition(r.Context(), services.TransitionRequest{
		BookingID: booking.ID, Target: models.BookingCheckedIn, ActorID: userID,
	}); err != nil {
		respondTransitionError(w, err)
		return
	}
	payment, err := h.paymentSvc.ReleaseCheckIn(r.Context(), booking.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "check-in recorded but funds release failed")
		return
	}
	respondJSON(w, http.StatusOK, paymentPayload(payment))
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	booking, ok := h.loadBookingForParty(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	if _, err := h.bookingSvc.Transition(r.Context(), services.TransitionRequest{
		BookingID: booking.ID, Target: models.BookingCheckedOut, ActorID: userID,
	}); err != nil {
		respondTransitionError(w, err)
		return
	}
	payment, err := h.paymentSvc.Settle(r.Context(), booking.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "check-out recorded but settlement failed")
		return
	}
	respondJSON(w, http.StatusOK, paymentPayload(payment))
}

func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, models.BookingCompleted)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, models.BookingCancelled)
}

func (h *Handler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	h.transitionBooking(w, r, models.BookingDisputeOpened)
}

func (h *Handler) transitionBooking(w http.ResponseWriter, r *http.Request, target models.BookingStatus) {
	booking, ok := h.loadBookingForParty(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.UserIDFromContext(r.Context())
	updated, err := h.bookingSvc.Transition(r.Context(), services.TransitionRequest{
		BookingID: booking.ID, Target: target, ActorID: userID,
	})
	if err != nil {
		respondTransitionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookingPayload(updated))
}

// loadBookingForParty resolves the booking in the URL and rejects callers
// who are neither its guest nor its realtor.
func (h *Handler) loadBookingForParty(w http.ResponseWriter, r *http.Request) (models.Booking, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return models.Booking{}, false
	}
	bookingID := chi.URLParam(r, "id")
	booking, err := h.bookings.GetByID(r.Context(), bookingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "booking not found")
		return models.Booking{}, false
	}
	if booking.GuestID != userID && booking.RealtorID != userID {
		respondError(w, http.StatusForbidden, "not a party to this booking")
		return models.Booking{}, false
	}
	return booking, true
}

func respondTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrInvalidStatus):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrStatusConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrBookingNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "unable to update booking")
	}
}

func bookingPayload(booking models.Booking) map[string]any {
	payload := map[string]any{
		"id":             booking.ID,
		"guest_id":       booking.GuestID,
		"property_id":    booking.PropertyID,
		"realtor_id":     booking.RealtorID,
		"check_in_date":  booking.CheckInDate,
		"check_out_date": booking.CheckOutDate,
		"total_price":    valueToMoney(booking.TotalPrice),
		"status":         booking.Status,
		"created_at":     booking.CreatedAt,
	}
	if booking.PaymentID != nil {
		payload["payment_id"] = *booking.PaymentID
	}
	return payload
}

func paymentPayload(payment models.Payment) map[string]any {
	return map[string]any{
		"id":                  payment.ID,
		"booking_id":          payment.BookingID,
		"amount":              valueToMoney(payment.Amount),
		"currency":            payment.Currency,
		"status":              payment.Status,
		"platform_commission": valueToMoney(payment.PlatformCommission),
		"processing_fee":      valueToMoney(payment.ProcessingFee),
		"realtor_earnings":    valueToMoney(payment.RealtorEarnings),
		"commission_paid_out": payment.CommissionPaidOut,
	}
}
