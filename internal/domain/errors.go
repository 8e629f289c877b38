package domain

import "errors"

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
	KindInvalidInput
	KindTransientConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindTransientConflict:
		return "transient_conflict"
	default:
		return "internal"
	}
}

// Error is a structured domain error. Sentinels below are compared with errors.Is,
// callers add detail by wrapping them with fmt.Errorf("...: %w", ...).
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrFlightNotFound  = newError(KindNotFound, "flight_not_found", "flight not found")
	ErrBookingNotFound = newError(KindNotFound, "booking_not_found", "booking not found")

	ErrInvalidSeat       = newError(KindInvalidInput, "invalid_seat", "invalid seat number")
	ErrInvalidSchedule   = newError(KindInvalidInput, "invalid_schedule", "arrival time must be after departure time")
	ErrInvalidInput      = newError(KindInvalidInput, "invalid_input", "invalid input")
	ErrSeatUnavailable   = newError(KindConflict, "seat_unavailable", "seat is already booked")
	ErrFlightDeparted    = newError(KindConflict, "flight_departed", "flight has already departed")
	ErrAlreadyCancelled  = newError(KindConflict, "already_cancelled", "booking is already cancelled")
	ErrDuplicateFlight   = newError(KindConflict, "duplicate_flight_id", "flight id already exists")
	ErrHasActiveBookings = newError(KindConflict, "has_active_bookings", "flight has active bookings")
	ErrPNRExhausted      = newError(KindConflict, "pnr_exhausted", "could not allocate a unique PNR")

	ErrForbidden    = newError(KindForbidden, "forbidden", "not allowed to access this resource")
	ErrUnauthorized = newError(KindUnauthorized, "unauthorized", "authentication required")

	ErrTransientConflict = newError(KindTransientConflict, "transient_conflict", "concurrent update, please retry")
	ErrInternal          = newError(KindInternal, "internal", "internal error")
)

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
