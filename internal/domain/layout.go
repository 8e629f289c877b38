package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultRows         = 30
	DefaultBusinessRows = 5
	defaultSeatLetters  = "ABCDEF"
)

// DefaultLayout builds the canonical 180-seat two-class cabin: rows 1-5 are
// business, the rest economy, all seats available.
func DefaultLayout() SeatMap {
	return Layout(DefaultRows, DefaultBusinessRows, defaultSeatLetters)
}

func Layout(rows, businessRows int, letters string) SeatMap {
	seats := make(SeatMap, rows*len(letters))
	for row := 1; row <= rows; row++ {
		class := SeatClassEconomy
		if row <= businessRows {
			class = SeatClassBusiness
		}
		for _, letter := range letters {
			seats[strconv.Itoa(row)+string(letter)] = Seat{Status: SeatAvailable, Class: class}
		}
	}
	return seats
}

// NormalizeSeat is the canonical form of a seat number: trimmed, upper case.
func NormalizeSeat(seat string) string {
	return strings.ToUpper(strings.TrimSpace(seat))
}

// LayoutFromClasses builds an all-available seat map from caller supplied
// classes. Seat numbers are normalized; two keys that normalize to the same
// seat are rejected.
func LayoutFromClasses(classes map[string]SeatClass) (SeatMap, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("seat map is empty: %w", ErrInvalidInput)
	}
	seats := make(SeatMap, len(classes))
	for raw, class := range classes {
		number := NormalizeSeat(raw)
		if number == "" || len(number) > 10 {
			return nil, fmt.Errorf("seat number %q: %w", raw, ErrInvalidInput)
		}
		if _, dup := seats[number]; dup {
			return nil, fmt.Errorf("seat number %s listed twice: %w", number, ErrInvalidInput)
		}
		if class == "" {
			class = SeatClassEconomy
		}
		if !class.Valid() {
			return nil, fmt.Errorf("seat %s has unknown class %q: %w", number, class, ErrInvalidInput)
		}
		seats[number] = Seat{Status: SeatAvailable, Class: class}
	}
	return seats, nil
}
