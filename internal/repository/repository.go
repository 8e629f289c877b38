package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateFlight = errors.New("duplicate flight code")
	ErrDuplicatePNR    = errors.New("duplicate pnr")
	// ErrSeatConflict means a seat was not in the expected state when written.
	ErrSeatConflict = errors.New("seat state changed concurrently")
	// ErrTxConflict means the transaction lost a serialization or deadlock race
	// and may succeed if retried.
	ErrTxConflict = errors.New("transaction conflict")
)

// FlightRepository covers flights and their seats. Returned flights carry
// their full seat map.
type FlightRepository interface {
	FlightByCode(ctx context.Context, code string) (*domain.Flight, error)
	// LockFlight loads the flight and holds a row lock until the transaction ends.
	LockFlight(ctx context.Context, code string) (*domain.Flight, error)
	ListFlights(ctx context.Context, page domain.Page) ([]domain.Flight, int, error)
	SearchFlights(ctx context.Context, source, destination string, from, to time.Time) ([]domain.Flight, error)
	InsertFlight(ctx context.Context, flight *domain.Flight) error
	UpdateFlight(ctx context.Context, flight *domain.Flight) error
	DeleteFlight(ctx context.Context, flightID int64) error
	// SetSeatStatus moves a seat from one status to another and fails with
	// ErrSeatConflict if the seat is not currently in status from.
	SetSeatStatus(ctx context.Context, flightID int64, seat string, from, to domain.SeatStatus) error
	SeatDrift(ctx context.Context) ([]domain.SeatDrift, error)
}

type BookingRepository interface {
	PNRExists(ctx context.Context, pnr string) (bool, error)
	InsertBooking(ctx context.Context, booking *domain.Booking) error
	BookingByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	// LockBooking loads the booking and holds a row lock until the transaction ends.
	LockBooking(ctx context.Context, pnr string) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, booking *domain.Booking) error
	CountConfirmedBookings(ctx context.Context, flightID int64) (int, error)
	BookingView(ctx context.Context, pnr string) (*domain.BookingView, error)
	UserBookings(ctx context.Context, userID int64) ([]domain.BookingView, error)
	ListBookings(ctx context.Context, page domain.Page) ([]domain.BookingView, int, error)
}

type Queries interface {
	FlightRepository
	BookingRepository
}

// Store is the single source of truth for flights, seats and bookings.
// Queries called on the Store directly run outside any transaction.
type Store interface {
	Queries
	// WithinTx runs fn in one transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}
