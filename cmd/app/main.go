package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbooking/api"
	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/pnr"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type flightCache interface {
	flights.FlightCache
	bootstrap.Pinger
	Close() error
}

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)

	store, checks, closeStore, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	var flightsCache flightCache
	if cfg.Redis.Addr != "" {
		flightsCache = cache.NewRedisCache(cfg.Redis, cfg.Booking.CacheTTL())
		checks["redis"] = flightsCache
	} else {
		flightsCache = cache.NewMemoryCache(cfg.Booking.CacheTTL())
	}
	defer flightsCache.Close()

	// producer stays a nil interface when Kafka is off
	var producer booking.Producer
	if cfg.Kafka.Enabled() {
		p := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err := p.CheckConnection(ctx); err != nil {
			logger.Warn("kafka is unreachable, booking events will be dropped until it recovers", zap.Error(err))
		}
		defer p.Close()
		producer = p
	} else {
		logger.Info("kafka disabled, booking events are not published")
	}

	flightService := flights.NewFlightService(store, flightsCache,
		flights.WithLogger(logger.Named("flights")),
		flights.WithMetrics(appMetrics),
	)
	bookingService := booking.NewBookingService(
		store,
		flightsCache,
		producer,
		cfg.Kafka.BookingEventsTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithPNRGenerator(pnr.NewGenerator(cfg.Booking.PNRPrefixes...)),
		booking.WithMaxTxAttempts(cfg.Booking.MaxTxAttempts),
		booking.WithMaxPNRAttempts(cfg.Booking.MaxPNRAttempts),
		booking.WithLogger(logger.Named("booking")),
		booking.WithMetrics(appMetrics),
	)

	engine := api.NewRouter(api.RouterDeps{
		Flights:   flightService,
		Bookings:  bookingService,
		Auth:      cfg.Auth,
		RateLimit: cfg.RateLimit,
		Logger:    logger.Named("http"),
		Metrics:   appMetrics,
	})
	bootstrap.Mount(engine, reg, checks)

	if err := bootstrap.Run(ctx, cfg.HTTP, engine, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
