package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"go.uber.org/zap"
)

// AuditInventory reports seats whose status disagrees with the confirmed
// bookings that reference them. It only reads; repairs are left to an operator.
func (s *BookingService) AuditInventory(ctx context.Context) ([]domain.SeatDrift, error) {
	drift, err := s.store.SeatDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit inventory: %w", err)
	}
	s.metrics.SeatDrift.Set(float64(len(drift)))
	for _, d := range drift {
		s.logger.Warn("seat inventory drift",
			zap.String("flight_id", d.FlightCode),
			zap.String("seat", d.SeatNumber),
			zap.String("status", string(d.Status)),
			zap.Int("confirmed_bookings", d.ConfirmedBookings),
		)
	}
	return drift, nil
}

// RunAudits audits every interval until ctx is done.
func (s *BookingService) RunAudits(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			drift, err := s.AuditInventory(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("inventory audit failed", zap.Error(err))
				continue
			}
			s.logger.Info("inventory audit finished", zap.Int("drift", len(drift)))
		}
	}
}
