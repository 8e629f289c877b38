package domain

import (
	"fmt"
	"sort"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatBooked    SeatStatus = "booked"
)

type SeatClass string

const (
	SeatClassEconomy        SeatClass = "economy"
	SeatClassPremiumEconomy SeatClass = "premium_economy"
	SeatClassBusiness       SeatClass = "business"
	SeatClassFirst          SeatClass = "first"
)

func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassEconomy, SeatClassPremiumEconomy, SeatClassBusiness, SeatClassFirst:
		return true
	}
	return false
}

type Seat struct {
	Status SeatStatus `json:"status"`
	Class  SeatClass  `json:"class"`
}

// SeatMap is owned by a single Flight. It is not safe for concurrent use;
// concurrent access is serialized by the store transaction that loaded it.
type SeatMap map[string]Seat

func (m SeatMap) IsAvailable(seat string) bool {
	s, ok := m[seat]
	return ok && s.Status == SeatAvailable
}

func (m SeatMap) Has(seat string) bool {
	_, ok := m[seat]
	return ok
}

func (m SeatMap) Class(seat string) (SeatClass, bool) {
	s, ok := m[seat]
	return s.Class, ok
}

// Book moves seat from available to booked.
func (m SeatMap) Book(seat string) error {
	s, ok := m[seat]
	if !ok {
		return fmt.Errorf("seat %s: %w", seat, ErrInvalidSeat)
	}
	if s.Status != SeatAvailable {
		return fmt.Errorf("seat %s: %w", seat, ErrSeatUnavailable)
	}
	s.Status = SeatBooked
	m[seat] = s
	return nil
}

// Release moves seat from booked to available. Releasing a seat that is
// already available is a no-op.
func (m SeatMap) Release(seat string) error {
	s, ok := m[seat]
	if !ok {
		return fmt.Errorf("seat %s: %w", seat, ErrInvalidSeat)
	}
	if s.Status == SeatAvailable {
		return nil
	}
	s.Status = SeatAvailable
	m[seat] = s
	return nil
}

// AvailableSeats returns available seat numbers in layout order.
func (m SeatMap) AvailableSeats() []string {
	seats := make([]string, 0, len(m))
	for number, s := range m {
		if s.Status == SeatAvailable {
			seats = append(seats, number)
		}
	}
	SortSeats(seats)
	return seats
}

// BookedSeats returns booked seat numbers in layout order.
func (m SeatMap) BookedSeats() []string {
	seats := make([]string, 0)
	for number, s := range m {
		if s.Status == SeatBooked {
			seats = append(seats, number)
		}
	}
	SortSeats(seats)
	return seats
}

func (m SeatMap) AvailableCount() int {
	n := 0
	for _, s := range m {
		if s.Status == SeatAvailable {
			n++
		}
	}
	return n
}

func (m SeatMap) Len() int {
	return len(m)
}

func (m SeatMap) Clone() SeatMap {
	out := make(SeatMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SortSeats orders seat numbers by row then letter ("2A" < "10A").
func SortSeats(seats []string) {
	sort.Slice(seats, func(i, j int) bool {
		ri, li := splitSeat(seats[i])
		rj, lj := splitSeat(seats[j])
		if ri != rj {
			return ri < rj
		}
		return li < lj
	})
}

func splitSeat(seat string) (int, string) {
	row := 0
	i := 0
	for ; i < len(seat) && seat[i] >= '0' && seat[i] <= '9'; i++ {
		row = row*10 + int(seat[i]-'0')
	}
	return row, seat[i:]
}
