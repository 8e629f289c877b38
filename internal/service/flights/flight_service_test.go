package flights

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFlightView(ctx context.Context, code string) (*domain.FlightView, bool, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.FlightView), args.Bool(1), args.Error(2)
}

func (m *MockCache) FlightVersion(ctx context.Context, code string) (int64, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SetFlightView(ctx context.Context, view *domain.FlightView, version int64) error {
	args := m.Called(ctx, view, version)
	return args.Error(0)
}

func (m *MockCache) InvalidateFlight(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

// countingStore counts direct flight reads.
type countingStore struct {
	repository.Store
	reads  atomic.Int32
	delay  time.Duration
	onRead func()
}

func (s *countingStore) FlightByCode(ctx context.Context, code string) (*domain.Flight, error) {
	s.reads.Add(1)
	time.Sleep(s.delay)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flight, err := s.Store.FlightByCode(ctx, code)
	if s.onRead != nil {
		s.onRead()
	}
	return flight, err
}

var (
	admin    = domain.Identity{UserID: 1, Role: domain.RoleAdmin}
	customer = domain.Identity{UserID: 2, Role: domain.RoleUser}
	day      = time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
)

func flightInput(code string, departure time.Time) CreateFlightInput {
	return CreateFlightInput{
		Code:          code,
		Airline:       "Air India",
		Source:        "Delhi",
		Destination:   "Mumbai",
		DepartureTime: departure,
		ArrivalTime:   departure.Add(2 * time.Hour),
		PriceCents:    500000,
	}
}

func newService(t *testing.T, cache FlightCache, opts ...FlightServiceOption) (*FlightService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewFlightService(store, cache, opts...), store
}

func TestFlightService_Create(t *testing.T) {
	service, store := newService(t, nil)

	view, err := service.Create(context.Background(), admin, flightInput("AI101", day.Add(10*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "AI101", view.Code)
	assert.Equal(t, 180, view.TotalSeats)
	assert.Equal(t, 180, view.AvailableSeats)
	assert.Equal(t, int64(500000), view.BasePriceCents)
	assert.Equal(t, int64(500000), view.PriceCents)

	flight, err := store.FlightByCode(context.Background(), "AI101")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatClassBusiness, flight.Seats["5F"].Class)
	assert.Equal(t, domain.SeatClassEconomy, flight.Seats["30A"].Class)
}

func TestFlightService_Create_CustomSeats(t *testing.T) {
	service, store := newService(t, nil)
	input := flightInput("AI102", day)
	input.Seats = map[string]domain.SeatClass{"1A": domain.SeatClassFirst, "1B": domain.SeatClassPremiumEconomy, "2A": ""}

	view, err := service.Create(context.Background(), admin, input)
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalSeats)

	flight, err := store.FlightByCode(context.Background(), "AI102")
	require.NoError(t, err)
	assert.Equal(t, domain.SeatClassEconomy, flight.Seats["2A"].Class)

	input.Code = "AI104"
	input.Seats = map[string]domain.SeatClass{"1a": domain.SeatClassBusiness, " 2B ": ""}
	_, err = service.Create(context.Background(), admin, input)
	require.NoError(t, err)
	seats, err := service.Seats(context.Background(), "AI104")
	require.NoError(t, err)
	assert.Equal(t, []string{"1A", "2B"}, seats.AvailableSeats)

	input.Code = "AI103"
	input.Seats = map[string]domain.SeatClass{"1A": "galley"}
	_, err = service.Create(context.Background(), admin, input)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFlightService_Create_Errors(t *testing.T) {
	service, _ := newService(t, nil)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	backwards := flightInput("AI200", day)
	backwards.ArrivalTime = day.Add(-time.Hour)
	sameCity := flightInput("AI201", day)
	sameCity.Destination = "delhi"
	negative := flightInput("AI202", day)
	negative.PriceCents = -1
	noAirline := flightInput("AI203", day)
	noAirline.Airline = " "

	testCases := []struct {
		name     string
		identity domain.Identity
		input    CreateFlightInput
		wantErr  error
	}{
		{"not admin", customer, flightInput("AI300", day), domain.ErrForbidden},
		{"duplicate", admin, flightInput("AI101", day), domain.ErrDuplicateFlight},
		{"arrival before departure", admin, backwards, domain.ErrInvalidSchedule},
		{"same source and destination", admin, sameCity, domain.ErrInvalidInput},
		{"negative price", admin, negative, domain.ErrInvalidInput},
		{"missing airline", admin, noAirline, domain.ErrInvalidInput},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Create(context.Background(), tc.identity, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	_, err = service.Create(context.Background(), admin, flightInput("AI101", day))
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestFlightService_Update(t *testing.T) {
	mockCache := &MockCache{}
	service, _ := newService(t, mockCache)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day.Add(8*time.Hour)))
	require.NoError(t, err)

	mockCache.On("InvalidateFlight", mock.Anything, "AI101").Return(nil).Once()

	price := int64(750000)
	airline := "Vistara"
	view, err := service.Update(context.Background(), admin, "AI101", domain.FlightPatch{PriceCents: &price, Airline: &airline})
	require.NoError(t, err)
	assert.Equal(t, int64(750000), view.BasePriceCents)
	assert.Equal(t, "Vistara", view.Airline)
	assert.Equal(t, "Delhi", view.Source)
	assert.Equal(t, 180, view.AvailableSeats)

	mockCache.AssertExpectations(t)
}

func TestFlightService_Update_Errors(t *testing.T) {
	service, store := newService(t, nil)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day.Add(8*time.Hour)))
	require.NoError(t, err)

	// arrival moved before the unchanged departure
	arrival := day.Add(7 * time.Hour)
	_, err = service.Update(context.Background(), admin, "AI101", domain.FlightPatch{ArrivalTime: &arrival})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	flight, err := store.FlightByCode(context.Background(), "AI101")
	require.NoError(t, err)
	assert.Equal(t, day.Add(10*time.Hour), flight.ArrivalTime)

	_, err = service.Update(context.Background(), admin, "AI101", domain.FlightPatch{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.Update(context.Background(), customer, "AI101", domain.FlightPatch{ArrivalTime: &arrival})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = service.Update(context.Background(), admin, "NOPE", domain.FlightPatch{ArrivalTime: &arrival})
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}

func TestFlightService_Delete(t *testing.T) {
	service, store := newService(t, nil)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)
	flight, err := store.FlightByCode(context.Background(), "AI101")
	require.NoError(t, err)

	booking := &domain.Booking{
		PNR: "AI1234XY", UserID: 2, FlightID: flight.ID, FlightCode: "AI101", PassengerName: "John Doe",
		SeatNumber: "1A", Status: domain.BookingStatusConfirmed, PaymentStatus: domain.PaymentCompleted, BookedAt: day,
	}
	require.NoError(t, store.InsertBooking(context.Background(), booking))
	require.NoError(t, store.SetSeatStatus(context.Background(), flight.ID, "1A", domain.SeatAvailable, domain.SeatBooked))

	err = service.Delete(context.Background(), admin, "AI101")
	assert.ErrorIs(t, err, domain.ErrHasActiveBookings)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	_, err = store.FlightByCode(context.Background(), "AI101")
	require.NoError(t, err, "flight must remain")

	assert.ErrorIs(t, service.Delete(context.Background(), customer, "AI101"), domain.ErrForbidden)

	booking.Status = domain.BookingStatusCancelled
	require.NoError(t, store.UpdateBooking(context.Background(), booking))
	require.NoError(t, service.Delete(context.Background(), admin, "AI101"))

	_, err = store.FlightByCode(context.Background(), "AI101")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, service.Delete(context.Background(), admin, "AI101"), domain.ErrFlightNotFound)

	// the cancelled booking survives with its flight code
	v, err := store.BookingView(context.Background(), "AI1234XY")
	require.NoError(t, err)
	assert.Equal(t, "AI101", v.FlightCode)
}

func TestFlightService_Get_CacheMiss(t *testing.T) {
	mockCache := &MockCache{}
	reg := metrics.New(prometheus.NewRegistry())
	service, _ := newService(t, mockCache, WithMetrics(reg))
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	ctx := context.Background()
	mockCache.On("GetFlightView", ctx, "AI101").Return(nil, false, nil).Once()
	mockCache.On("FlightVersion", mock.Anything, "AI101").Return(int64(4), nil).Once()
	mockCache.On("SetFlightView", mock.Anything, mock.MatchedBy(func(v *domain.FlightView) bool {
		return v.Code == "AI101" && v.AvailableSeats == 180
	}), int64(4)).Return(nil).Once()

	view, err := service.Get(ctx, "AI101")
	require.NoError(t, err)
	assert.Equal(t, "AI101", view.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheMissesTotal.WithLabelValues("flight")))

	mockCache.AssertExpectations(t)
}

func TestFlightService_Get_CacheHit(t *testing.T) {
	mockCache := &MockCache{}
	reg := metrics.New(prometheus.NewRegistry())
	service, _ := newService(t, mockCache, WithMetrics(reg))

	ctx := context.Background()
	cached := &domain.FlightView{Code: "AI101", AvailableSeats: 3}
	mockCache.On("GetFlightView", ctx, "AI101").Return(cached, true, nil).Once()

	view, err := service.Get(ctx, "AI101")
	require.NoError(t, err)
	assert.Equal(t, 3, view.AvailableSeats)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHitsTotal.WithLabelValues("flight")))

	mockCache.AssertExpectations(t)
	mockCache.AssertNotCalled(t, "SetFlightView", mock.Anything, mock.Anything, mock.Anything)
}

func TestFlightService_Get_CacheErrorFallsBackToStore(t *testing.T) {
	mockCache := &MockCache{}
	service, _ := newService(t, mockCache)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	ctx := context.Background()
	mockCache.On("GetFlightView", ctx, "AI101").Return(nil, false, errors.New("redis down")).Once()
	mockCache.On("FlightVersion", mock.Anything, "AI101").Return(int64(0), nil).Once()
	mockCache.On("SetFlightView", mock.Anything, mock.Anything, int64(0)).Return(errors.New("redis down")).Once()

	view, err := service.Get(ctx, "AI101")
	require.NoError(t, err)
	assert.Equal(t, 180, view.TotalSeats)
	mockCache.AssertExpectations(t)
}

func TestFlightService_Get_VersionErrorSkipsCacheWrite(t *testing.T) {
	mockCache := &MockCache{}
	service, _ := newService(t, mockCache)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	ctx := context.Background()
	mockCache.On("GetFlightView", ctx, "AI101").Return(nil, false, nil).Once()
	mockCache.On("FlightVersion", mock.Anything, "AI101").Return(int64(0), errors.New("redis down")).Once()

	view, err := service.Get(ctx, "AI101")
	require.NoError(t, err)
	assert.Equal(t, "AI101", view.Code)
	mockCache.AssertExpectations(t)
	mockCache.AssertNotCalled(t, "SetFlightView", mock.Anything, mock.Anything, mock.Anything)
}

// бронирование закоммитилось, пока Get читал рейс: старый вид не должен попасть в кэш
func TestFlightService_Get_DoesNotCacheViewInvalidatedDuringLoad(t *testing.T) {
	memory := repository.NewMemoryStore()
	store := &countingStore{Store: memory}
	viewCache := cache.NewMemoryCache(time.Minute)
	service := NewFlightService(store, viewCache)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	ctx := context.Background()
	store.onRead = func() {
		require.NoError(t, viewCache.InvalidateFlight(ctx, "AI101"))
	}
	view, err := service.Get(ctx, "AI101")
	require.NoError(t, err)
	assert.Equal(t, "AI101", view.Code)

	_, ok, err := viewCache.GetFlightView(ctx, "AI101")
	require.NoError(t, err)
	assert.False(t, ok)

	// следующий промах без гонки кэшируется как обычно
	store.onRead = nil
	_, err = service.Get(ctx, "AI101")
	require.NoError(t, err)
	_, ok, err = viewCache.GetFlightView(ctx, "AI101")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlightService_Get_SharedLoadIgnoresCallerCancellation(t *testing.T) {
	memory := repository.NewMemoryStore()
	store := &countingStore{Store: memory, delay: 20 * time.Millisecond}
	service := NewFlightService(store, nil)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	view, err := service.Get(ctx, "AI101")
	require.NoError(t, err)
	assert.Equal(t, "AI101", view.Code)
}

func TestFlightService_Get_NotFound(t *testing.T) {
	service, _ := newService(t, nil)
	_, err := service.Get(context.Background(), "NONEXISTENT")
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestFlightService_Get_CollapsesConcurrentMisses(t *testing.T) {
	memory := repository.NewMemoryStore()
	store := &countingStore{Store: memory, delay: 50 * time.Millisecond}
	service := NewFlightService(store, nil)
	_, err := service.Create(context.Background(), admin, flightInput("AI101", day))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := service.Get(context.Background(), "AI101")
			assert.NoError(t, err)
			assert.Equal(t, "AI101", view.Code)
		}()
	}
	wg.Wait()

	assert.Less(t, store.reads.Load(), int32(10))
}

func TestFlightService_List(t *testing.T) {
	service, _ := newService(t, nil)
	for i, code := range []string{"AI103", "AI101", "AI102"} {
		_, err := service.Create(context.Background(), admin, flightInput(code, day.Add(time.Duration(3-i)*time.Hour)))
		require.NoError(t, err)
	}

	list, err := service.List(context.Background(), domain.Page{Number: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.Pages)
	require.Len(t, list.Flights, 2)
	assert.Equal(t, "AI102", list.Flights[0].Code)
	assert.Equal(t, "AI101", list.Flights[1].Code)
}

func TestFlightService_Search(t *testing.T) {
	service, store := newService(t, nil)
	ctx := context.Background()

	_, err := service.Create(ctx, admin, flightInput("AI101", day.Add(6*time.Hour)))
	require.NoError(t, err)
	_, err = service.Create(ctx, admin, flightInput("AI102", day.Add(30*time.Hour)))
	require.NoError(t, err)
	small := flightInput("AI103", day.Add(9*time.Hour))
	small.Seats = map[string]domain.SeatClass{"1A": domain.SeatClassEconomy, "1B": domain.SeatClassEconomy}
	_, err = service.Create(ctx, admin, small)
	require.NoError(t, err)
	substring := flightInput("AI104", day.Add(7*time.Hour))
	substring.Source = "New Delhi"
	_, err = service.Create(ctx, admin, substring)
	require.NoError(t, err)

	views, err := service.Search(ctx, domain.SearchCriteria{Source: "DELHI", Destination: "mumbai", Date: day.Add(15 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "AI101", views[0].Code)
	assert.Equal(t, "AI103", views[1].Code)

	views, err = service.Search(ctx, domain.SearchCriteria{Source: "Delhi", Destination: "Mumbai", Date: day, Passengers: 3})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "AI101", views[0].Code)

	// half full is still below the surcharge threshold
	flight, err := store.FlightByCode(ctx, "AI103")
	require.NoError(t, err)
	require.NoError(t, store.SetSeatStatus(ctx, flight.ID, "1A", domain.SeatAvailable, domain.SeatBooked))
	views, err = service.Search(ctx, domain.SearchCriteria{Source: "Delhi", Destination: "Mumbai", Date: day})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(500000), views[1].PriceCents)
	assert.Equal(t, 1, views[1].AvailableSeats)
}

func TestFlightService_Search_InvalidCriteria(t *testing.T) {
	service, _ := newService(t, nil)
	testCases := []domain.SearchCriteria{
		{Destination: "Mumbai", Date: day},
		{Source: "Delhi", Date: day},
		{Source: "Delhi", Destination: "Mumbai"},
		{Source: "Delhi", Destination: "Mumbai", Date: day, Passengers: 10},
		{Source: "Delhi", Destination: "Mumbai", Date: day, Passengers: -1},
	}
	for _, criteria := range testCases {
		_, err := service.Search(context.Background(), criteria)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", criteria)
	}
}

func TestFlightService_Seats(t *testing.T) {
	service, store := newService(t, nil)
	input := flightInput("AI101", day)
	input.Seats = map[string]domain.SeatClass{"10A": "", "2A": "", "1B": ""}
	_, err := service.Create(context.Background(), admin, input)
	require.NoError(t, err)

	flight, err := store.FlightByCode(context.Background(), "AI101")
	require.NoError(t, err)
	require.NoError(t, store.SetSeatStatus(context.Background(), flight.ID, "2A", domain.SeatAvailable, domain.SeatBooked))

	seats, err := service.Seats(context.Background(), "AI101")
	require.NoError(t, err)
	assert.Equal(t, []string{"1B", "10A"}, seats.AvailableSeats)
	assert.Equal(t, 2, seats.Count)

	_, err = service.Seats(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}
