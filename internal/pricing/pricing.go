// Package pricing computes the displayed fare of a seat from the flight's
// base fare, its current occupancy and the seat class.
package pricing

import (
	"math"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

const (
	highOccupancy   = 0.8
	mediumOccupancy = 0.5
)

// OccupancyMultiplier returns the demand surcharge for a load factor.
func OccupancyMultiplier(occupancy float64) float64 {
	switch {
	case occupancy > highOccupancy:
		return 1.5
	case occupancy > mediumOccupancy:
		return 1.2
	default:
		return 1.0
	}
}

// ClassMultiplier returns the cabin multiplier. Classes without a defined
// multiplier are priced as economy.
func ClassMultiplier(class domain.SeatClass) float64 {
	switch class {
	case domain.SeatClassBusiness:
		return 2.0
	case domain.SeatClassFirst:
		return 3.0
	default:
		return 1.0
	}
}

// Occupancy is the booked fraction of total seats.
func Occupancy(available, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(total-available) / float64(total)
}

// Price returns the fare in cents, rounded half away from zero to the cent.
func Price(baseCents int64, available, total int, class domain.SeatClass) int64 {
	amount := float64(baseCents) * OccupancyMultiplier(Occupancy(available, total)) * ClassMultiplier(class)
	return int64(math.Round(amount))
}

// ForSeats prices a seat class against a seat map's current occupancy.
func ForSeats(baseCents int64, seats domain.SeatMap, class domain.SeatClass) int64 {
	return Price(baseCents, seats.AvailableCount(), seats.Len(), class)
}
