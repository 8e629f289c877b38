package api

import (
	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Flights   flights.FlightUseCase
	Bookings  booking.BookingUseCase
	Auth      config.AuthConfig
	RateLimit config.RateLimitConfig
	Logger    *zap.Logger
	Metrics   *metrics.Registry
}

// NewRouter builds the gin engine with the /api/v1 routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	reg := deps.Metrics
	if reg == nil {
		reg = metrics.Nop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), Logger(logging.OrNop(deps.Logger)), Metrics(reg))
	if deps.RateLimit.Enabled {
		engine.Use(RateLimit(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst))
	}

	auth := Auth(deps.Auth.JWTSecret, deps.Auth.Issuer)
	v1 := engine.Group("/api/v1")
	NewFlightHandler(deps.Flights).Register(v1.Group("/flights"), auth)
	NewBookingHandler(deps.Bookings).Register(v1.Group("/bookings", auth))
	return engine
}
