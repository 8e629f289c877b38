package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingUpdated   = "booking_updated"
)

type BookingEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	PNR           string    `json:"pnr"`
	UserID        int64     `json:"user_id"`
	FlightCode    string    `json:"flight_id"`
	SeatNumber    string    `json:"seat_number"`
	PreviousSeat  string    `json:"previous_seat,omitempty"`
	PassengerName string    `json:"passenger_name"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewBookingEvent stamps a fresh event id.
func NewBookingEvent(eventType string, occurredAt time.Time) BookingEvent {
	return BookingEvent{ID: uuid.NewString(), Type: eventType, OccurredAt: occurredAt}
}

func DecodeBookingEvent(data []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	if event.Type == "" || event.PNR == "" {
		return BookingEvent{}, fmt.Errorf("decode booking event: missing type or pnr")
	}
	return event, nil
}
