package domain

import (
	"fmt"
	"strings"
	"time"
)

type Flight struct {
	ID            int64     `json:"-"`
	Code          string    `json:"flight_id"`
	Airline       string    `json:"airline"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	PriceCents    int64     `json:"base_price_cents"`
	Seats         SeatMap   `json:"seats,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the fields every persisted flight must satisfy.
func (f *Flight) Validate() error {
	switch {
	case strings.TrimSpace(f.Code) == "":
		return fmt.Errorf("flight id is required: %w", ErrInvalidInput)
	case len(strings.TrimSpace(f.Airline)) < 2:
		return fmt.Errorf("airline is required: %w", ErrInvalidInput)
	case len(strings.TrimSpace(f.Source)) < 2:
		return fmt.Errorf("source is required: %w", ErrInvalidInput)
	case len(strings.TrimSpace(f.Destination)) < 2:
		return fmt.Errorf("destination is required: %w", ErrInvalidInput)
	case strings.EqualFold(strings.TrimSpace(f.Source), strings.TrimSpace(f.Destination)):
		return fmt.Errorf("destination cannot be same as source: %w", ErrInvalidInput)
	case f.PriceCents < 0:
		return fmt.Errorf("price must not be negative: %w", ErrInvalidInput)
	}
	if !f.DepartureTime.Before(f.ArrivalTime) {
		return ErrInvalidSchedule
	}
	return nil
}

func (f *Flight) Departed(now time.Time) bool {
	return !f.DepartureTime.After(now)
}

// FlightPatch lists the fields an administrator may overwrite. Nil means unchanged.
type FlightPatch struct {
	Airline       *string    `json:"airline,omitempty"`
	Source        *string    `json:"source,omitempty"`
	Destination   *string    `json:"destination,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	PriceCents    *int64     `json:"base_price_cents,omitempty"`
}

func (p FlightPatch) Empty() bool {
	return p.Airline == nil && p.Source == nil && p.Destination == nil &&
		p.DepartureTime == nil && p.ArrivalTime == nil && p.PriceCents == nil
}

// Apply overwrites f field by field and re-validates the merged flight.
func (p FlightPatch) Apply(f *Flight) error {
	if p.Airline != nil {
		f.Airline = *p.Airline
	}
	if p.Source != nil {
		f.Source = *p.Source
	}
	if p.Destination != nil {
		f.Destination = *p.Destination
	}
	if p.DepartureTime != nil {
		f.DepartureTime = p.DepartureTime.UTC()
	}
	if p.ArrivalTime != nil {
		f.ArrivalTime = p.ArrivalTime.UTC()
	}
	if p.PriceCents != nil {
		f.PriceCents = *p.PriceCents
	}
	return f.Validate()
}

// FlightView is a flight as presented to callers: live availability and price,
// seat map omitted.
type FlightView struct {
	Code           string    `json:"flight_id"`
	Airline        string    `json:"airline"`
	Source         string    `json:"source"`
	Destination    string    `json:"destination"`
	DepartureTime  time.Time `json:"departure_time"`
	ArrivalTime    time.Time `json:"arrival_time"`
	BasePriceCents int64     `json:"base_price_cents"`
	PriceCents     int64     `json:"price_cents"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
}

type SearchCriteria struct {
	Source      string
	Destination string
	Date        time.Time
	Passengers  int
}

type Page struct {
	Number  int
	PerPage int
}

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// Pages returns the page count for total items.
func (p Page) Pages(total int) int {
	if total == 0 {
		return 0
	}
	return (total + p.PerPage - 1) / p.PerPage
}

// SeatDrift is a seat whose status disagrees with the confirmed bookings that
// reference it.
type SeatDrift struct {
	FlightCode        string     `json:"flight_id"`
	SeatNumber        string     `json:"seat_number"`
	Status            SeatStatus `json:"status"`
	ConfirmedBookings int        `json:"confirmed_bookings"`
}
