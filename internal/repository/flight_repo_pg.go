package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
)

const flightColumns = `id, code, airline, source, destination, departure_time, arrival_time, price_cents, created_at, updated_at`

type PGFlightRepository struct {
	db querier
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.Code, &f.Airline, &f.Source, &f.Destination, &f.DepartureTime, &f.ArrivalTime, &f.PriceCents, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) FlightByCode(ctx context.Context, code string) (*domain.Flight, error) {
	return r.flightByCode(ctx, code, false)
}

func (r *PGFlightRepository) LockFlight(ctx context.Context, code string) (*domain.Flight, error) {
	return r.flightByCode(ctx, code, true)
}

func (r *PGFlightRepository) flightByCode(ctx context.Context, code string, lock bool) (*domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE code=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	f, err := scanFlight(r.db.QueryRow(ctx, query, code))
	if err != nil {
		return nil, classify(err)
	}
	if err := r.loadSeats(ctx, []*domain.Flight{f}); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PGFlightRepository) ListFlights(ctx context.Context, page domain.Page) ([]domain.Flight, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM flights`).Scan(&total); err != nil {
		return nil, 0, err
	}
	flights, err := r.queryFlights(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time, id LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return flights, total, nil
}

// SearchFlights matches source and destination case-insensitively and exactly,
// with departure in [from, to).
func (r *PGFlightRepository) SearchFlights(ctx context.Context, source, destination string, from, to time.Time) ([]domain.Flight, error) {
	return r.queryFlights(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE lower(source)=lower($1) AND lower(destination)=lower($2) AND departure_time >= $3 AND departure_time < $4
		ORDER BY departure_time, id`, source, destination, from, to)
}

func (r *PGFlightRepository) queryFlights(ctx context.Context, query string, args ...any) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ptrs := make([]*domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadSeats(ctx, ptrs); err != nil {
		return nil, err
	}
	flights := make([]domain.Flight, 0, len(ptrs))
	for _, f := range ptrs {
		flights = append(flights, *f)
	}
	return flights, nil
}

func (r *PGFlightRepository) loadSeats(ctx context.Context, flights []*domain.Flight) error {
	if len(flights) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Flight, len(flights))
	ids := make([]int64, 0, len(flights))
	for _, f := range flights {
		f.Seats = make(domain.SeatMap)
		byID[f.ID] = f
		ids = append(ids, f.ID)
	}

	rows, err := r.db.Query(ctx, `SELECT flight_id, seat_number, class, status FROM seats WHERE flight_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			flightID int64
			number   string
			seat     domain.Seat
		)
		if err := rows.Scan(&flightID, &number, &seat.Class, &seat.Status); err != nil {
			return fmt.Errorf("scan seat: %w", err)
		}
		if f, ok := byID[flightID]; ok {
			f.Seats[number] = seat
		}
	}
	return rows.Err()
}

func (r *PGFlightRepository) InsertFlight(ctx context.Context, flight *domain.Flight) error {
	err := r.db.QueryRow(ctx, `INSERT INTO flights (code, airline, source, destination, departure_time, arrival_time, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		flight.Code, flight.Airline, flight.Source, flight.Destination, flight.DepartureTime, flight.ArrivalTime, flight.PriceCents).
		Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt)
	if err != nil {
		return classify(err)
	}

	numbers := make([]string, 0, len(flight.Seats))
	classes := make([]string, 0, len(flight.Seats))
	statuses := make([]string, 0, len(flight.Seats))
	for number, seat := range flight.Seats {
		numbers = append(numbers, number)
		classes = append(classes, string(seat.Class))
		statuses = append(statuses, string(seat.Status))
	}
	if _, err := r.db.Exec(ctx, `INSERT INTO seats (flight_id, seat_number, class, status)
		SELECT $1, n, c, s FROM unnest($2::text[], $3::text[], $4::text[]) AS t(n, c, s)`,
		flight.ID, numbers, classes, statuses); err != nil {
		return fmt.Errorf("insert seats: %w", classify(err))
	}
	return nil
}

func (r *PGFlightRepository) UpdateFlight(ctx context.Context, flight *domain.Flight) error {
	err := r.db.QueryRow(ctx, `UPDATE flights
		SET airline=$2, source=$3, destination=$4, departure_time=$5, arrival_time=$6, price_cents=$7, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		flight.ID, flight.Airline, flight.Source, flight.Destination, flight.DepartureTime, flight.ArrivalTime, flight.PriceCents).
		Scan(&flight.UpdatedAt)
	return classify(err)
}

func (r *PGFlightRepository) DeleteFlight(ctx context.Context, flightID int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, flightID)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGFlightRepository) SetSeatStatus(ctx context.Context, flightID int64, seat string, from, to domain.SeatStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE seats SET status=$4 WHERE flight_id=$1 AND seat_number=$2 AND status=$3`, flightID, seat, from, to)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrSeatConflict
	}
	return nil
}

func (r *PGFlightRepository) SeatDrift(ctx context.Context) ([]domain.SeatDrift, error) {
	rows, err := r.db.Query(ctx, `SELECT f.code, s.seat_number, s.status, count(b.id)
		FROM seats s
		JOIN flights f ON f.id = s.flight_id
		LEFT JOIN bookings b ON b.flight_id = s.flight_id AND b.seat_number = s.seat_number AND b.status = 'confirmed'
		GROUP BY f.code, s.seat_number, s.status
		HAVING (s.status = 'booked' AND count(b.id) <> 1) OR (s.status = 'available' AND count(b.id) <> 0)
		ORDER BY f.code, s.seat_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drift := make([]domain.SeatDrift, 0)
	for rows.Next() {
		var d domain.SeatDrift
		if err := rows.Scan(&d.FlightCode, &d.SeatNumber, &d.Status, &d.ConfirmedBookings); err != nil {
			return nil, err
		}
		drift = append(drift, d)
	}
	return drift, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
