package pricing

import (
	"testing"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestPrice(t *testing.T) {
	testCases := []struct {
		name      string
		base      int64
		available int
		total     int
		class     domain.SeatClass
		expected  int64
	}{
		{name: "empty flight economy", base: 100000, available: 100, total: 100, class: domain.SeatClassEconomy, expected: 100000},
		{name: "exactly half booked stays at base", base: 100000, available: 50, total: 100, class: domain.SeatClassEconomy, expected: 100000},
		{name: "over half booked", base: 100000, available: 49, total: 100, class: domain.SeatClassEconomy, expected: 120000},
		{name: "exactly 80 percent booked", base: 100000, available: 20, total: 100, class: domain.SeatClassEconomy, expected: 120000},
		{name: "85 percent booked business", base: 100000, available: 15, total: 100, class: domain.SeatClassBusiness, expected: 300000},
		{name: "first class empty", base: 100000, available: 10, total: 10, class: domain.SeatClassFirst, expected: 300000},
		{name: "premium economy priced as economy", base: 100000, available: 10, total: 10, class: domain.SeatClassPremiumEconomy, expected: 100000},
		{name: "rounds to the cent", base: 333, available: 4, total: 10, class: domain.SeatClassEconomy, expected: 400},
		{name: "zero total treated as empty", base: 100000, available: 0, total: 0, class: domain.SeatClassEconomy, expected: 100000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Price(tc.base, tc.available, tc.total, tc.class))
		})
	}
}

func TestForSeats(t *testing.T) {
	half := domain.SeatMap{
		"1A": {Status: domain.SeatBooked, Class: domain.SeatClassBusiness},
		"1B": {Status: domain.SeatAvailable, Class: domain.SeatClassBusiness},
	}
	assert.Equal(t, int64(10000), ForSeats(10000, half, domain.SeatClassEconomy))
	assert.Equal(t, int64(20000), ForSeats(10000, half, domain.SeatClassBusiness))

	twoThirds := half.Clone()
	twoThirds["1B"] = domain.Seat{Status: domain.SeatBooked, Class: domain.SeatClassBusiness}
	twoThirds["1C"] = domain.Seat{Status: domain.SeatAvailable, Class: domain.SeatClassBusiness}
	assert.Equal(t, int64(12000), ForSeats(10000, twoThirds, domain.SeatClassEconomy))
	assert.Equal(t, int64(24000), ForSeats(10000, twoThirds, domain.SeatClassBusiness))
}

func TestOccupancyMultiplier(t *testing.T) {
	testCases := []struct {
		occupancy float64
		expected  float64
	}{
		{0, 1.0},
		{0.5, 1.0},
		{0.51, 1.2},
		{0.8, 1.2},
		{0.81, 1.5},
		{1, 1.5},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, OccupancyMultiplier(tc.occupancy), "occupancy %v", tc.occupancy)
	}
}
