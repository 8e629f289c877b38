package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

// MemoryStore keeps flights and bookings in process memory. Transactions are
// serialized and run against a copy of the state that replaces the live state
// only when fn succeeds. It backs local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	nextFlightID  int64
	nextBookingID int64
	flights       map[int64]*domain.Flight
	flightCodes   map[string]int64
	bookings      map[int64]*domain.Booking
	pnrs          map[string]int64
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		state: &memState{
			flights:     make(map[int64]*domain.Flight),
			flightCodes: make(map[string]int64),
			bookings:    make(map[int64]*domain.Booking),
			pnrs:        make(map[string]int64),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (st *memState) clone() *memState {
	out := &memState{
		nextFlightID:  st.nextFlightID,
		nextBookingID: st.nextBookingID,
		flights:       make(map[int64]*domain.Flight, len(st.flights)),
		flightCodes:   make(map[string]int64, len(st.flightCodes)),
		bookings:      make(map[int64]*domain.Booking, len(st.bookings)),
		pnrs:          make(map[string]int64, len(st.pnrs)),
	}
	for id, f := range st.flights {
		out.flights[id] = copyFlight(f)
	}
	for code, id := range st.flightCodes {
		out.flightCodes[code] = id
	}
	for id, b := range st.bookings {
		cp := *b
		out.bookings[id] = &cp
	}
	for pnr, id := range st.pnrs {
		out.pnrs[pnr] = id
	}
	return out
}

func copyFlight(f *domain.Flight) *domain.Flight {
	cp := *f
	cp.Seats = f.Seats.Clone()
	return &cp
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memQueries{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) read() *memQueries {
	return &memQueries{st: s.state, now: s.now}
}

func memRead[T any](s *MemoryStore, fn func(q *memQueries) (T, error)) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.read())
}

func (s *MemoryStore) memWrite(fn func(q *memQueries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.read())
}

func (s *MemoryStore) FlightByCode(ctx context.Context, code string) (*domain.Flight, error) {
	return memRead(s, func(q *memQueries) (*domain.Flight, error) { return q.FlightByCode(ctx, code) })
}

func (s *MemoryStore) LockFlight(ctx context.Context, code string) (*domain.Flight, error) {
	return s.FlightByCode(ctx, code)
}

func (s *MemoryStore) ListFlights(ctx context.Context, page domain.Page) ([]domain.Flight, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListFlights(ctx, page)
}

func (s *MemoryStore) SearchFlights(ctx context.Context, source, destination string, from, to time.Time) ([]domain.Flight, error) {
	return memRead(s, func(q *memQueries) ([]domain.Flight, error) {
		return q.SearchFlights(ctx, source, destination, from, to)
	})
}

func (s *MemoryStore) InsertFlight(ctx context.Context, flight *domain.Flight) error {
	return s.memWrite(func(q *memQueries) error { return q.InsertFlight(ctx, flight) })
}

func (s *MemoryStore) UpdateFlight(ctx context.Context, flight *domain.Flight) error {
	return s.memWrite(func(q *memQueries) error { return q.UpdateFlight(ctx, flight) })
}

func (s *MemoryStore) DeleteFlight(ctx context.Context, flightID int64) error {
	return s.memWrite(func(q *memQueries) error { return q.DeleteFlight(ctx, flightID) })
}

func (s *MemoryStore) SetSeatStatus(ctx context.Context, flightID int64, seat string, from, to domain.SeatStatus) error {
	return s.memWrite(func(q *memQueries) error { return q.SetSeatStatus(ctx, flightID, seat, from, to) })
}

func (s *MemoryStore) SeatDrift(ctx context.Context) ([]domain.SeatDrift, error) {
	return memRead(s, func(q *memQueries) ([]domain.SeatDrift, error) { return q.SeatDrift(ctx) })
}

func (s *MemoryStore) PNRExists(ctx context.Context, pnr string) (bool, error) {
	return memRead(s, func(q *memQueries) (bool, error) { return q.PNRExists(ctx, pnr) })
}

func (s *MemoryStore) InsertBooking(ctx context.Context, booking *domain.Booking) error {
	return s.memWrite(func(q *memQueries) error { return q.InsertBooking(ctx, booking) })
}

func (s *MemoryStore) BookingByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	return memRead(s, func(q *memQueries) (*domain.Booking, error) { return q.BookingByPNR(ctx, pnr) })
}

func (s *MemoryStore) LockBooking(ctx context.Context, pnr string) (*domain.Booking, error) {
	return s.BookingByPNR(ctx, pnr)
}

func (s *MemoryStore) UpdateBooking(ctx context.Context, booking *domain.Booking) error {
	return s.memWrite(func(q *memQueries) error { return q.UpdateBooking(ctx, booking) })
}

func (s *MemoryStore) CountConfirmedBookings(ctx context.Context, flightID int64) (int, error) {
	return memRead(s, func(q *memQueries) (int, error) { return q.CountConfirmedBookings(ctx, flightID) })
}

func (s *MemoryStore) BookingView(ctx context.Context, pnr string) (*domain.BookingView, error) {
	return memRead(s, func(q *memQueries) (*domain.BookingView, error) { return q.BookingView(ctx, pnr) })
}

func (s *MemoryStore) UserBookings(ctx context.Context, userID int64) ([]domain.BookingView, error) {
	return memRead(s, func(q *memQueries) ([]domain.BookingView, error) { return q.UserBookings(ctx, userID) })
}

func (s *MemoryStore) ListBookings(ctx context.Context, page domain.Page) ([]domain.BookingView, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListBookings(ctx, page)
}

// memQueries operates on a single state snapshot without locking.
type memQueries struct {
	st  *memState
	now func() time.Time
}

func (q *memQueries) FlightByCode(_ context.Context, code string) (*domain.Flight, error) {
	id, ok := q.st.flightCodes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyFlight(q.st.flights[id]), nil
}

func (q *memQueries) LockFlight(ctx context.Context, code string) (*domain.Flight, error) {
	return q.FlightByCode(ctx, code)
}

func (q *memQueries) sortedFlights(keep func(*domain.Flight) bool) []domain.Flight {
	flights := make([]domain.Flight, 0, len(q.st.flights))
	for _, f := range q.st.flights {
		if keep == nil || keep(f) {
			flights = append(flights, *copyFlight(f))
		}
	}
	sort.Slice(flights, func(i, j int) bool {
		if !flights[i].DepartureTime.Equal(flights[j].DepartureTime) {
			return flights[i].DepartureTime.Before(flights[j].DepartureTime)
		}
		return flights[i].ID < flights[j].ID
	})
	return flights
}

func (q *memQueries) ListFlights(_ context.Context, page domain.Page) ([]domain.Flight, int, error) {
	flights := q.sortedFlights(nil)
	return paginate(flights, page), len(flights), nil
}

func (q *memQueries) SearchFlights(_ context.Context, source, destination string, from, to time.Time) ([]domain.Flight, error) {
	return q.sortedFlights(func(f *domain.Flight) bool {
		return strings.EqualFold(f.Source, source) &&
			strings.EqualFold(f.Destination, destination) &&
			!f.DepartureTime.Before(from) && f.DepartureTime.Before(to)
	}), nil
}

func (q *memQueries) InsertFlight(_ context.Context, flight *domain.Flight) error {
	if _, ok := q.st.flightCodes[flight.Code]; ok {
		return ErrDuplicateFlight
	}
	q.st.nextFlightID++
	now := q.now().UTC()
	flight.ID = q.st.nextFlightID
	flight.CreatedAt = now
	flight.UpdatedAt = now
	q.st.flights[flight.ID] = copyFlight(flight)
	q.st.flightCodes[flight.Code] = flight.ID
	return nil
}

// UpdateFlight overwrites the scalar fields. Seats change only via SetSeatStatus.
func (q *memQueries) UpdateFlight(_ context.Context, flight *domain.Flight) error {
	stored, ok := q.st.flights[flight.ID]
	if !ok {
		return ErrNotFound
	}
	flight.UpdatedAt = q.now().UTC()
	seats := stored.Seats
	*stored = *flight
	stored.Code = q.codeOf(flight.ID)
	stored.Seats = seats
	return nil
}

func (q *memQueries) codeOf(flightID int64) string {
	for code, id := range q.st.flightCodes {
		if id == flightID {
			return code
		}
	}
	return ""
}

// DeleteFlight drops the flight and its seats; bookings keep their flight code
// but lose the reference.
func (q *memQueries) DeleteFlight(_ context.Context, flightID int64) error {
	f, ok := q.st.flights[flightID]
	if !ok {
		return ErrNotFound
	}
	delete(q.st.flightCodes, f.Code)
	delete(q.st.flights, flightID)
	for _, b := range q.st.bookings {
		if b.FlightID == flightID {
			b.FlightID = 0
		}
	}
	return nil
}

func (q *memQueries) SetSeatStatus(_ context.Context, flightID int64, seat string, from, to domain.SeatStatus) error {
	f, ok := q.st.flights[flightID]
	if !ok {
		return ErrSeatConflict
	}
	s, ok := f.Seats[seat]
	if !ok || s.Status != from {
		return ErrSeatConflict
	}
	s.Status = to
	f.Seats[seat] = s
	return nil
}

func (q *memQueries) SeatDrift(_ context.Context) ([]domain.SeatDrift, error) {
	confirmed := make(map[int64]map[string]int)
	for _, b := range q.st.bookings {
		if !b.Confirmed() || b.FlightID == 0 {
			continue
		}
		if confirmed[b.FlightID] == nil {
			confirmed[b.FlightID] = make(map[string]int)
		}
		confirmed[b.FlightID][b.SeatNumber]++
	}

	drift := make([]domain.SeatDrift, 0)
	for id, f := range q.st.flights {
		for number, seat := range f.Seats {
			n := confirmed[id][number]
			if (seat.Status == domain.SeatBooked && n != 1) || (seat.Status == domain.SeatAvailable && n != 0) {
				drift = append(drift, domain.SeatDrift{FlightCode: f.Code, SeatNumber: number, Status: seat.Status, ConfirmedBookings: n})
			}
		}
	}
	sort.Slice(drift, func(i, j int) bool {
		if drift[i].FlightCode != drift[j].FlightCode {
			return drift[i].FlightCode < drift[j].FlightCode
		}
		return drift[i].SeatNumber < drift[j].SeatNumber
	})
	return drift, nil
}

func (q *memQueries) PNRExists(_ context.Context, pnr string) (bool, error) {
	_, ok := q.st.pnrs[pnr]
	return ok, nil
}

func (q *memQueries) InsertBooking(_ context.Context, booking *domain.Booking) error {
	if _, ok := q.st.pnrs[booking.PNR]; ok {
		return ErrDuplicatePNR
	}
	if _, ok := q.st.flights[booking.FlightID]; !ok {
		return ErrNotFound
	}
	if booking.Confirmed() && q.seatTaken(booking.FlightID, booking.SeatNumber, 0) {
		return ErrSeatConflict
	}
	q.st.nextBookingID++
	now := q.now().UTC()
	booking.ID = q.st.nextBookingID
	booking.CreatedAt = now
	booking.UpdatedAt = now
	cp := *booking
	q.st.bookings[booking.ID] = &cp
	q.st.pnrs[booking.PNR] = booking.ID
	return nil
}

// seatTaken reports whether a confirmed booking other than exceptID holds the seat.
func (q *memQueries) seatTaken(flightID int64, seat string, exceptID int64) bool {
	for id, b := range q.st.bookings {
		if id != exceptID && b.Confirmed() && b.FlightID == flightID && b.SeatNumber == seat {
			return true
		}
	}
	return false
}

func (q *memQueries) BookingByPNR(_ context.Context, pnr string) (*domain.Booking, error) {
	id, ok := q.st.pnrs[pnr]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *q.st.bookings[id]
	return &cp, nil
}

func (q *memQueries) LockBooking(ctx context.Context, pnr string) (*domain.Booking, error) {
	return q.BookingByPNR(ctx, pnr)
}

func (q *memQueries) UpdateBooking(_ context.Context, booking *domain.Booking) error {
	stored, ok := q.st.bookings[booking.ID]
	if !ok {
		return ErrNotFound
	}
	if booking.Confirmed() && stored.FlightID != 0 && q.seatTaken(stored.FlightID, booking.SeatNumber, booking.ID) {
		return ErrSeatConflict
	}
	booking.UpdatedAt = q.now().UTC()
	stored.PassengerName = booking.PassengerName
	stored.SeatNumber = booking.SeatNumber
	stored.Status = booking.Status
	stored.PaymentStatus = booking.PaymentStatus
	stored.UpdatedAt = booking.UpdatedAt
	return nil
}

func (q *memQueries) CountConfirmedBookings(_ context.Context, flightID int64) (int, error) {
	n := 0
	for _, b := range q.st.bookings {
		if b.FlightID == flightID && b.Confirmed() {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) view(b *domain.Booking) domain.BookingView {
	v := domain.BookingView{Booking: *b}
	v.Flight.Code = b.FlightCode
	if f, ok := q.st.flights[b.FlightID]; ok {
		v.Flight = domain.SummaryOf(f)
		v.SeatClass, _ = f.Seats.Class(b.SeatNumber)
	}
	return v
}

func (q *memQueries) BookingView(_ context.Context, pnr string) (*domain.BookingView, error) {
	id, ok := q.st.pnrs[pnr]
	if !ok {
		return nil, ErrNotFound
	}
	v := q.view(q.st.bookings[id])
	return &v, nil
}

func (q *memQueries) sortedViews(keep func(*domain.Booking) bool) []domain.BookingView {
	views := make([]domain.BookingView, 0)
	for _, b := range q.st.bookings {
		if keep == nil || keep(b) {
			views = append(views, q.view(b))
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].BookedAt.Equal(views[j].BookedAt) {
			return views[i].BookedAt.After(views[j].BookedAt)
		}
		return views[i].ID > views[j].ID
	})
	return views
}

func (q *memQueries) UserBookings(_ context.Context, userID int64) ([]domain.BookingView, error) {
	return q.sortedViews(func(b *domain.Booking) bool { return b.UserID == userID }), nil
}

func (q *memQueries) ListBookings(_ context.Context, page domain.Page) ([]domain.BookingView, int, error) {
	views := q.sortedViews(nil)
	return paginate(views, page), len(views), nil
}

func paginate[T any](items []T, page domain.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return make([]T, 0)
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

var (
	_ Store   = (*MemoryStore)(nil)
	_ Queries = (*memQueries)(nil)
)
