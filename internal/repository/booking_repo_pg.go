package repository

import (
	"context"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `b.id, b.pnr, b.user_id, coalesce(b.flight_id, 0), b.flight_code, b.passenger_name, b.seat_number, b.status, b.payment_status, b.booked_at, b.created_at, b.updated_at`

// bookingViewQuery joins the flight summary and seat class; both are empty for
// bookings whose flight has since been deleted.
const bookingViewQuery = `SELECT ` + bookingColumns + `,
		coalesce(f.airline, ''), coalesce(f.source, ''), coalesce(f.destination, ''),
		coalesce(f.departure_time, 'epoch'::timestamptz), coalesce(f.arrival_time, 'epoch'::timestamptz),
		coalesce(s.class, '')
	FROM bookings b
	LEFT JOIN flights f ON f.id = b.flight_id
	LEFT JOIN seats s ON s.flight_id = b.flight_id AND s.seat_number = b.seat_number`

type PGBookingRepository struct {
	db querier
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.PNR, &b.UserID, &b.FlightID, &b.FlightCode, &b.PassengerName, &b.SeatNumber, &b.Status, &b.PaymentStatus, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookingView(row pgx.Row) (*domain.BookingView, error) {
	var v domain.BookingView
	b := &v.Booking
	if err := row.Scan(&b.ID, &b.PNR, &b.UserID, &b.FlightID, &b.FlightCode, &b.PassengerName, &b.SeatNumber, &b.Status, &b.PaymentStatus, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt,
		&v.Flight.Airline, &v.Flight.Source, &v.Flight.Destination, &v.Flight.DepartureTime, &v.Flight.ArrivalTime, &v.SeatClass); err != nil {
		return nil, err
	}
	v.Flight.Code = b.FlightCode
	return &v, nil
}

func (r *PGBookingRepository) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr=$1)`, pnr).Scan(&exists)
	return exists, err
}

func (r *PGBookingRepository) InsertBooking(ctx context.Context, booking *domain.Booking) error {
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (pnr, user_id, flight_id, flight_code, passenger_name, seat_number, status, payment_status, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		booking.PNR, booking.UserID, booking.FlightID, booking.FlightCode, booking.PassengerName, booking.SeatNumber, booking.Status, booking.PaymentStatus, booking.BookedAt).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	return classify(err)
}

func (r *PGBookingRepository) BookingByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.pnr=$1`, pnr))
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (r *PGBookingRepository) LockBooking(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.pnr=$1 FOR UPDATE`, pnr))
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (r *PGBookingRepository) UpdateBooking(ctx context.Context, booking *domain.Booking) error {
	err := r.db.QueryRow(ctx, `UPDATE bookings
		SET passenger_name=$2, seat_number=$3, status=$4, payment_status=$5, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		booking.ID, booking.PassengerName, booking.SeatNumber, booking.Status, booking.PaymentStatus).
		Scan(&booking.UpdatedAt)
	return classify(err)
}

func (r *PGBookingRepository) CountConfirmedBookings(ctx context.Context, flightID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE flight_id=$1 AND status=$2`, flightID, domain.BookingStatusConfirmed).Scan(&n)
	return n, err
}

func (r *PGBookingRepository) BookingView(ctx context.Context, pnr string) (*domain.BookingView, error) {
	v, err := scanBookingView(r.db.QueryRow(ctx, bookingViewQuery+` WHERE b.pnr=$1`, pnr))
	if err != nil {
		return nil, classify(err)
	}
	return v, nil
}

func (r *PGBookingRepository) UserBookings(ctx context.Context, userID int64) ([]domain.BookingView, error) {
	return r.queryViews(ctx, bookingViewQuery+` WHERE b.user_id=$1 ORDER BY b.booked_at DESC, b.id DESC`, userID)
}

func (r *PGBookingRepository) ListBookings(ctx context.Context, page domain.Page) ([]domain.BookingView, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings`).Scan(&total); err != nil {
		return nil, 0, err
	}
	views, err := r.queryViews(ctx, bookingViewQuery+` ORDER BY b.booked_at DESC, b.id DESC LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (r *PGBookingRepository) queryViews(ctx context.Context, query string, args ...any) ([]domain.BookingView, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]domain.BookingView, 0)
	for rows.Next() {
		v, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
