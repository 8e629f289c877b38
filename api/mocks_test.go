package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// Mock структуры
type MockFlightUseCase struct {
	mock.Mock
}

func (m *MockFlightUseCase) Create(ctx context.Context, identity domain.Identity, input flights.CreateFlightInput) (*domain.FlightView, error) {
	args := m.Called(ctx, identity, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightView), args.Error(1)
}

func (m *MockFlightUseCase) Update(ctx context.Context, identity domain.Identity, code string, patch domain.FlightPatch) (*domain.FlightView, error) {
	args := m.Called(ctx, identity, code, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightView), args.Error(1)
}

func (m *MockFlightUseCase) Delete(ctx context.Context, identity domain.Identity, code string) error {
	args := m.Called(ctx, identity, code)
	return args.Error(0)
}

func (m *MockFlightUseCase) Get(ctx context.Context, code string) (*domain.FlightView, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightView), args.Error(1)
}

func (m *MockFlightUseCase) List(ctx context.Context, page domain.Page) (*domain.FlightList, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlightList), args.Error(1)
}

func (m *MockFlightUseCase) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.FlightView, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FlightView), args.Error(1)
}

func (m *MockFlightUseCase) Seats(ctx context.Context, code string) (*flights.SeatAvailability, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*flights.SeatAvailability), args.Error(1)
}

type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) CreateBooking(ctx context.Context, identity domain.Identity, input booking.CreateBookingInput) (*domain.BookingView, error) {
	args := m.Called(ctx, identity, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingView), args.Error(1)
}

func (m *MockBookingUseCase) CancelBooking(ctx context.Context, identity domain.Identity, pnr string) (*domain.BookingView, error) {
	args := m.Called(ctx, identity, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingView), args.Error(1)
}

func (m *MockBookingUseCase) UpdateBooking(ctx context.Context, identity domain.Identity, pnr string, patch domain.BookingPatch) (*domain.BookingView, error) {
	args := m.Called(ctx, identity, pnr, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingView), args.Error(1)
}

func (m *MockBookingUseCase) GetBooking(ctx context.Context, identity domain.Identity, pnr string) (*domain.BookingView, error) {
	args := m.Called(ctx, identity, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingView), args.Error(1)
}

func (m *MockBookingUseCase) ListUserBookings(ctx context.Context, identity domain.Identity) ([]domain.BookingView, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BookingView), args.Error(1)
}

func (m *MockBookingUseCase) ListAllBookings(ctx context.Context, identity domain.Identity, page domain.Page) (*domain.BookingList, error) {
	args := m.Called(ctx, identity, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingList), args.Error(1)
}

var (
	adminIdentity = domain.Identity{UserID: 1, Role: domain.RoleAdmin}
	userIdentity  = domain.Identity{UserID: 42, Role: domain.RoleUser}
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext returns a gin context carrying identity, as Auth would leave it.
func testContext(method, target string, body *string, identity *domain.Identity) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body != nil {
		c.Request = httptest.NewRequest(method, target, strings.NewReader(*body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	if identity != nil {
		c.Set(identityKey, *identity)
	}
	return c, w
}

type testServer struct {
	router   *gin.Engine
	flights  *MockFlightUseCase
	bookings *MockBookingUseCase
	metrics  *metrics.Registry
}

func newTestServer(rateLimit config.RateLimitConfig) *testServer {
	s := &testServer{
		flights:  &MockFlightUseCase{},
		bookings: &MockBookingUseCase{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	s.router = NewRouter(RouterDeps{
		Flights:   s.flights,
		Bookings:  s.bookings,
		Auth:      config.AuthConfig{JWTSecret: testSecret},
		RateLimit: rateLimit,
		Metrics:   s.metrics,
	})
	return s
}

func (s *testServer) do(method, target, token string, body *string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(*body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func signToken(t *testing.T, identity domain.Identity, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.UserID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}
