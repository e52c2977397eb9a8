package services

import (
	"context"
	"encoding/json"
	"errors"

	"staypay/internal/db"
	"staypay/internal/models"
	"staypay/internal/notify"
	"staypay/internal/store"
	"staypay/internal/validator"

	"github.com/jmoiron/sqlx"
)

var (
	ErrBookingNotFound     = errors.New("booking not found")
	ErrInvalidStatus       = errors.New("unknown booking status")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStatusConflict      = errors.New("status changed concurrently")
	ErrOverrideNeedsReason = errors.New("admin override requires a reason")
)

type BookingStore interface {
	Create(ctx context.Context, tx store.Execer, input store.BookingInput) error
	GetByID(ctx context.Context, bookingID string) (models.Booking, error)
	UpdateStatus(ctx context.Context, tx store.Execer, bookingID string, from, to models.BookingStatus) (int64, error)
	SetPaymentID(ctx context.Context, tx store.Execer, bookingID, paymentID string) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type NotificationHub interface {
	Notify(userID string, event notify.Event)
}

// BookingService owns the booking lifecycle state machine.
type BookingService struct {
	txRunner db.TxRunner
	bookings BookingStore
	audit    AuditStore
	hub      NotificationHub
}

func NewBookingService(txRunner db.TxRunner, bookings BookingStore, audit AuditStore, hub NotificationHub) *BookingService {
	return &BookingService{txRunner: txRunner, bookings: bookings, audit: audit, hub: hub}
}

type TransitionRequest struct {
	BookingID     string
	Target        models.BookingStatus
	ActorID       string
	Reason        string
	AdminOverride bool
}

// Transition applies one edge of the booking lifecycle graph. The stored
// status is compare-and-swapped, so of two racing writers exactly one wins
// and the other gets ErrStatusConflict. An admin override skips graph
// validation but must carry a reason, which lands in the audit trail.
func (s *BookingService) Transition(ctx context.Context, req TransitionRequest) (models.Booking, error) {
	if !req.Target.Valid() {
		return models.Booking{}, ErrInvalidStatus
	}
	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return models.Booking{}, ErrBookingNotFound
	}
	if req.AdminOverride {
		if err := validator.ValidateReason(req.Reason); err != nil {
			return models.Booking{}, ErrOverrideNeedsReason
		}
	} else if !booking.Status.CanTransitionTo(req.Target) {
		return models.Booking{}, ErrInvalidTransition
	}

	from := booking.Status
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.bookings.UpdateStatus(ctx, tx, req.BookingID, from, req.Target)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrStatusConflict
		}
		action := "booking_transition"
		if req.AdminOverride {
			action = "booking_admin_override"
		}
		data, _ := json.Marshal(map[string]any{
			"from":           from,
			"to":             req.Target,
			"reason":         req.Reason,
			"admin_override": req.AdminOverride,
		})
		return s.audit.Log(ctx, tx, req.ActorID, action, "booking", req.BookingID, string(data))
	})
	if err != nil {
		return models.Booking{}, err
	}

	booking.Status = req.Target
	event := notify.Event{
		Type: notify.EventBookingStatusChanged,
		Payload: notify.BookingStatusPayload{
			BookingID: booking.ID,
			From:      string(from),
			To:        string(req.Target),
			Reason:    req.Reason,
		},
	}
	s.hub.Notify(booking.GuestID, event)
	s.hub.Notify(booking.RealtorID, event)
	return booking, nil
}

type CreateBookingRequest struct {
	GuestID      string
	PropertyID   string
	RealtorID    string
	CheckInDate  string
	CheckOutDate string
	TotalPrice   int64
}

func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest, bookingID string) (models.Booking, error) {
	if req.TotalPrice <= 0 {
		return models.Booking{}, ErrInvalidAmount
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.bookings.Create(ctx, tx, store.BookingInput{
			ID:           bookingID,
			GuestID:      req.GuestID,
			PropertyID:   req.PropertyID,
			RealtorID:    req.RealtorID,
			CheckInDate:  req.CheckInDate,
			CheckOutDate: req.CheckOutDate,
			TotalPrice:   req.TotalPrice,
			Status:       models.BookingPending,
		})
	})
	if err != nil {
		return models.Booking{}, err
	}
	return s.bookings.GetByID(ctx, bookingID)
}
