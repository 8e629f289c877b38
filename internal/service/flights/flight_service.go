package flights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	minPassengers = 1
	maxPassengers = 9

	cacheKeyPattern = "flight"

	sharedLoadTimeout = 5 * time.Second
)

type FlightUseCase interface {
	Create(ctx context.Context, identity domain.Identity, input CreateFlightInput) (*domain.FlightView, error)
	Update(ctx context.Context, identity domain.Identity, code string, patch domain.FlightPatch) (*domain.FlightView, error)
	Delete(ctx context.Context, identity domain.Identity, code string) error
	Get(ctx context.Context, code string) (*domain.FlightView, error)
	List(ctx context.Context, page domain.Page) (*domain.FlightList, error)
	Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.FlightView, error)
	Seats(ctx context.Context, code string) (*SeatAvailability, error)
}

type FlightCache interface {
	GetFlightView(ctx context.Context, code string) (*domain.FlightView, bool, error)
	// FlightVersion is bumped by every InvalidateFlight.
	FlightVersion(ctx context.Context, code string) (int64, error)
	// SetFlightView is a no-op when the flight was invalidated after version was read.
	SetFlightView(ctx context.Context, view *domain.FlightView, version int64) error
	InvalidateFlight(ctx context.Context, code string) error
}

type CreateFlightInput struct {
	Code          string    `json:"flight_id"`
	Airline       string    `json:"airline"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	PriceCents    int64     `json:"base_price_cents"`
	// Seats overrides the default cabin layout: seat number to class.
	Seats map[string]domain.SeatClass `json:"seat_map,omitempty"`
}

type SeatAvailability struct {
	FlightCode     string   `json:"flight_id"`
	AvailableSeats []string `json:"available_seats"`
	Count          int      `json:"count"`
}

type FlightService struct {
	store   repository.Store
	cache   FlightCache
	group   singleflight.Group
	logger  *zap.Logger
	metrics *metrics.Registry
}

type FlightServiceOption func(*FlightService)

func WithLogger(l *zap.Logger) FlightServiceOption {
	return func(s *FlightService) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Registry) FlightServiceOption {
	return func(s *FlightService) {
		s.metrics = m
	}
}

// NewFlightService wires the inventory manager. cache may be nil.
func NewFlightService(store repository.Store, cache FlightCache, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{store: store, cache: cache, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	return s
}

func (s *FlightService) Create(ctx context.Context, identity domain.Identity, input CreateFlightInput) (*domain.FlightView, error) {
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("create flight: %w", domain.ErrForbidden)
	}

	flight := &domain.Flight{
		Code:          strings.TrimSpace(input.Code),
		Airline:       strings.TrimSpace(input.Airline),
		Source:        strings.TrimSpace(input.Source),
		Destination:   strings.TrimSpace(input.Destination),
		DepartureTime: input.DepartureTime.UTC(),
		ArrivalTime:   input.ArrivalTime.UTC(),
		PriceCents:    input.PriceCents,
	}
	if err := flight.Validate(); err != nil {
		return nil, err
	}

	if len(input.Seats) > 0 {
		seats, err := domain.LayoutFromClasses(input.Seats)
		if err != nil {
			return nil, err
		}
		flight.Seats = seats
	} else {
		flight.Seats = domain.DefaultLayout()
	}

	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		return q.InsertFlight(ctx, flight)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateFlight) {
			return nil, fmt.Errorf("flight %s: %w", flight.Code, domain.ErrDuplicateFlight)
		}
		return nil, fmt.Errorf("create flight %s: %w", flight.Code, err)
	}

	s.logger.Info("flight created", zap.String("flight_id", flight.Code), zap.Int("seats", flight.Seats.Len()))
	view := viewOf(flight)
	return &view, nil
}

// Update overwrites the patched fields and re-validates the merged flight.
// The seat map cannot be patched.
func (s *FlightService) Update(ctx context.Context, identity domain.Identity, code string, patch domain.FlightPatch) (*domain.FlightView, error) {
	if !identity.IsAdmin() {
		return nil, fmt.Errorf("update flight: %w", domain.ErrForbidden)
	}
	if patch.Empty() {
		return nil, fmt.Errorf("no updatable fields: %w", domain.ErrInvalidInput)
	}

	var flight *domain.Flight
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		f, err := q.LockFlight(ctx, code)
		if err != nil {
			return flightErr(code, err)
		}
		if err := patch.Apply(f); err != nil {
			return err
		}
		if err := q.UpdateFlight(ctx, f); err != nil {
			return err
		}
		flight = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, code)
	s.logger.Info("flight updated", zap.String("flight_id", code))
	view := viewOf(flight)
	return &view, nil
}

// Delete removes a flight with no confirmed bookings. Cancelled bookings keep
// their flight code.
func (s *FlightService) Delete(ctx context.Context, identity domain.Identity, code string) error {
	if !identity.IsAdmin() {
		return fmt.Errorf("delete flight: %w", domain.ErrForbidden)
	}

	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		f, err := q.LockFlight(ctx, code)
		if err != nil {
			return flightErr(code, err)
		}
		active, err := q.CountConfirmedBookings(ctx, f.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("flight %s has %d confirmed bookings: %w", code, active, domain.ErrHasActiveBookings)
		}
		return q.DeleteFlight(ctx, f.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return flightErr(code, err)
		}
		return err
	}

	s.invalidate(ctx, code)
	s.logger.Info("flight deleted", zap.String("flight_id", code))
	return nil
}

// Get returns the flight with live availability and economy price. Concurrent
// misses for one flight share a single store read, detached from the caller
// that happened to start it.
func (s *FlightService) Get(ctx context.Context, code string) (*domain.FlightView, error) {
	if s.cache != nil {
		view, ok, err := s.cache.GetFlightView(ctx, code)
		switch {
		case err != nil:
			s.logger.Warn("flight cache read failed", zap.String("flight_id", code), zap.Error(err))
		case ok:
			s.metrics.CacheHitsTotal.WithLabelValues(cacheKeyPattern).Inc()
			return view, nil
		default:
			s.metrics.CacheMissesTotal.WithLabelValues(cacheKeyPattern).Inc()
		}
	}

	v, err, _ := s.group.Do(code, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		cacheable := s.cache != nil
		var version int64
		if cacheable {
			var err error
			if version, err = s.cache.FlightVersion(loadCtx, code); err != nil {
				s.logger.Warn("flight cache version read failed", zap.String("flight_id", code), zap.Error(err))
				cacheable = false
			}
		}

		flight, err := s.store.FlightByCode(loadCtx, code)
		if err != nil {
			return nil, flightErr(code, err)
		}
		view := viewOf(flight)
		if cacheable {
			if err := s.cache.SetFlightView(loadCtx, &view, version); err != nil {
				s.logger.Warn("flight cache write failed", zap.String("flight_id", code), zap.Error(err))
			}
		}
		return &view, nil
	})
	if err != nil {
		return nil, err
	}
	view := *v.(*domain.FlightView)
	return &view, nil
}

func (s *FlightService) List(ctx context.Context, page domain.Page) (*domain.FlightList, error) {
	page = page.Normalize()
	flights, total, err := s.store.ListFlights(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	return &domain.FlightList{
		Flights:     viewsOf(flights),
		Total:       total,
		Pages:       page.Pages(total),
		CurrentPage: page.Number,
	}, nil
}

// Search matches source and destination case-insensitively and exactly on the
// UTC calendar date of departure, keeping flights with enough free seats.
func (s *FlightService) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.FlightView, error) {
	criteria.Source = strings.TrimSpace(criteria.Source)
	criteria.Destination = strings.TrimSpace(criteria.Destination)
	if criteria.Source == "" || criteria.Destination == "" {
		return nil, fmt.Errorf("source and destination are required: %w", domain.ErrInvalidInput)
	}
	if criteria.Date.IsZero() {
		return nil, fmt.Errorf("date is required: %w", domain.ErrInvalidInput)
	}
	if criteria.Passengers == 0 {
		criteria.Passengers = minPassengers
	}
	if criteria.Passengers < minPassengers || criteria.Passengers > maxPassengers {
		return nil, fmt.Errorf("passengers must be between %d and %d: %w", minPassengers, maxPassengers, domain.ErrInvalidInput)
	}

	d := criteria.Date.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	flights, err := s.store.SearchFlights(ctx, criteria.Source, criteria.Destination, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("search flights: %w", err)
	}

	views := make([]domain.FlightView, 0, len(flights))
	for i := range flights {
		if flights[i].Seats.AvailableCount() >= criteria.Passengers {
			views = append(views, viewOf(&flights[i]))
		}
	}
	return views, nil
}

func (s *FlightService) Seats(ctx context.Context, code string) (*SeatAvailability, error) {
	flight, err := s.store.FlightByCode(ctx, code)
	if err != nil {
		return nil, flightErr(code, err)
	}
	available := flight.Seats.AvailableSeats()
	return &SeatAvailability{
		FlightCode:     flight.Code,
		AvailableSeats: available,
		Count:          len(available),
	}, nil
}

func (s *FlightService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlight(ctx, code); err != nil {
		s.logger.Warn("failed to invalidate flight cache", zap.String("flight_id", code), zap.Error(err))
	}
}

func viewOf(f *domain.Flight) domain.FlightView {
	return domain.FlightView{
		Code:           f.Code,
		Airline:        f.Airline,
		Source:         f.Source,
		Destination:    f.Destination,
		DepartureTime:  f.DepartureTime,
		ArrivalTime:    f.ArrivalTime,
		BasePriceCents: f.PriceCents,
		PriceCents:     pricing.ForSeats(f.PriceCents, f.Seats, domain.SeatClassEconomy),
		TotalSeats:     f.Seats.Len(),
		AvailableSeats: f.Seats.AvailableCount(),
	}
}

func viewsOf(flights []domain.Flight) []domain.FlightView {
	views := make([]domain.FlightView, 0, len(flights))
	for i := range flights {
		views = append(views, viewOf(&flights[i]))
	}
	return views
}

func flightErr(code string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("flight %s: %w", code, domain.ErrFlightNotFound)
	}
	return fmt.Errorf("load flight %s: %w", code, err)
}

var _ FlightUseCase = (*FlightService)(nil)
