package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

type Booking struct {
	ID            int64         `json:"-"`
	PNR           string        `json:"pnr"`
	UserID        int64         `json:"user_id"`
	FlightID      int64         `json:"-"`
	FlightCode    string        `json:"flight_id"`
	PassengerName string        `json:"passenger_name"`
	SeatNumber    string        `json:"seat_number"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	BookedAt      time.Time     `json:"booking_date"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (b *Booking) Confirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// BookingPatch lists the fields a booking owner may change. Nil means unchanged.
type BookingPatch struct {
	PassengerName *string        `json:"passenger_name,omitempty"`
	SeatNumber    *string        `json:"seat_number,omitempty"`
	Status        *BookingStatus `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
}

func (p BookingPatch) Empty() bool {
	return p.PassengerName == nil && p.SeatNumber == nil && p.Status == nil && p.PaymentStatus == nil
}

type FlightSummary struct {
	Code          string    `json:"flight_id"`
	Airline       string    `json:"airline"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
}

func SummaryOf(f *Flight) FlightSummary {
	return FlightSummary{
		Code:          f.Code,
		Airline:       f.Airline,
		Source:        f.Source,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime,
		ArrivalTime:   f.ArrivalTime,
	}
}

// BookingView is a booking enriched with its flight and seat class.
type BookingView struct {
	Booking
	SeatClass SeatClass     `json:"seat_class"`
	Flight    FlightSummary `json:"flight"`
	// PriceCents is the quoted price at booking time; only set on create.
	PriceCents int64 `json:"price_cents,omitempty"`
}

type BookingList struct {
	Bookings    []BookingView `json:"bookings"`
	Total       int           `json:"total"`
	Pages       int           `json:"pages"`
	CurrentPage int           `json:"current_page"`
}

type FlightList struct {
	Flights     []FlightView `json:"flights"`
	Total       int          `json:"total"`
	Pages       int          `json:"pages"`
	CurrentPage int          `json:"current_page"`
}
