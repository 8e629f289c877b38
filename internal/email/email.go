package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"go.uber.org/zap"
)

type Message struct {
	Subject string
	Body    string
}

// Sender delivers booking notifications. Delivery is a structured log line;
// the mail transport is outside this service.
type Sender struct {
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	msg, ok := Compose(event)
	if !ok {
		s.logger.Debug("no notification for event", zap.String("type", event.Type), zap.String("pnr", event.PNR))
		return nil
	}
	s.logger.Info("send email",
		zap.Int64("user_id", event.UserID),
		zap.String("pnr", event.PNR),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return ctx.Err()
}

// Handler returns a consumer callback that notifies and counts each event.
// Delivery failures are logged and the event is skipped; consumption goes on.
func (s *Sender) Handler(reg *metrics.Registry) func(context.Context, kafka.BookingEvent) error {
	return func(ctx context.Context, event kafka.BookingEvent) error {
		outcome := "sent"
		if _, ok := Compose(event); !ok {
			outcome = "skipped"
		}
		if err := s.Send(ctx, event); err != nil {
			outcome = "failed"
			s.logger.Warn("notification not delivered", zap.String("pnr", event.PNR), zap.Error(err))
		}
		reg.EventsConsumed.WithLabelValues(event.Type, outcome).Inc()
		return nil
	}
}

// Compose renders the notification for event; ok is false for event types
// that do not notify the passenger.
func Compose(event kafka.BookingEvent) (Message, bool) {
	switch event.Type {
	case kafka.EventBookingCreated:
		return Message{
			Subject: fmt.Sprintf("Booking %s confirmed", event.PNR),
			Body:    fmt.Sprintf("%s, your seat %s on flight %s is confirmed. PNR: %s.", event.PassengerName, event.SeatNumber, event.FlightCode, event.PNR),
		}, true
	case kafka.EventBookingCancelled:
		return Message{
			Subject: fmt.Sprintf("Booking %s cancelled", event.PNR),
			Body:    fmt.Sprintf("%s, your booking %s on flight %s has been cancelled.", event.PassengerName, event.PNR, event.FlightCode),
		}, true
	case kafka.EventBookingUpdated:
		if event.PreviousSeat != "" && event.PreviousSeat != event.SeatNumber {
			return Message{
				Subject: fmt.Sprintf("Booking %s: seat changed", event.PNR),
				Body:    fmt.Sprintf("%s, your seat on flight %s moved from %s to %s.", event.PassengerName, event.FlightCode, event.PreviousSeat, event.SeatNumber),
			}, true
		}
		return Message{
			Subject: fmt.Sprintf("Booking %s updated", event.PNR),
			Body:    fmt.Sprintf("%s, your booking %s on flight %s was updated.", event.PassengerName, event.PNR, event.FlightCode),
		}, true
	}
	return Message{}, false
}
