package store

import (
	"context"

	"staypay/internal/models"
)

type BookingStore struct {
	db DB
}

func NewBookingStore(db DB) *BookingStore {
	return &BookingStore{db: db}
}

type BookingInput struct {
	ID           string
	GuestID      string
	PropertyID   string
	RealtorID    string
	CheckInDate  string
	CheckOutDate string
	TotalPrice   int64
	Status       models.BookingStatus
}

func (s *BookingStore) Create(ctx context.Context, tx Execer, input BookingInput) error {
	query := `
		INSERT INTO bookings (id, guest_id, property_id, realtor_id, check_in_date, check_out_date, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.GuestID, input.PropertyID, input.RealtorID,
		input.CheckInDate, input.CheckOutDate, input.TotalPrice, input.Status,
	)
	return err
}

func (s *BookingStore) GetByID(ctx context.Context, bookingID string) (models.Booking, error) {
	var row models.Booking
	err := s.db.GetContext(ctx, &row, `
		SELECT id, guest_id, property_id, realtor_id, check_in_date, check_out_date,
		       total_price, status, payment_id, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	return row, nil
}

// UpdateStatus is a compare-and-swap on the stored status: zero rows affected
// means another writer moved the booking first.
func (s *BookingStore) UpdateStatus(ctx context.Context, tx Execer, bookingID string, from, to models.BookingStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, bookingID, from)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *BookingStore) SetPaymentID(ctx context.Context, tx Execer, bookingID, paymentID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET payment_id = $1, updated_at = NOW()
		WHERE id = $2
	`, paymentID, bookingID)
	return err
}

func (s *BookingStore) ListByGuest(ctx context.Context, guestID string, limit, offset int) ([]models.Booking, error) {
	var rows []models.Booking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, guest_id, property_id, realtor_id, check_in_date, check_out_date,
		       total_price, status, payment_id, created_at, updated_at
		FROM bookings
		WHERE guest_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, guestID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BookingStore) ListByRealtor(ctx context.Context, realtorID string, limit, offset int) ([]models.Booking, error) {
	var rows []models.Booking
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, guest_id, property_id, realtor_id, check_in_date, check_out_date,
		       total_price, status, payment_id, created_at, updated_at
		FROM bookings
		WHERE realtor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, realtorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
