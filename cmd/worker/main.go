package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/email"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// The worker sends booking notifications from Kafka and periodically audits
// seat inventory against confirmed bookings.
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
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	workerMetrics := metrics.New(reg)

	store, checks, closeStore, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// audits only read, so no cache or producer
	bookingService := booking.NewBookingService(store, nil, nil, cfg.Kafka.BookingEventsTopic,
		booking.WithLogger(logger),
		booking.WithMetrics(workerMetrics),
	)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Database.Shared() {
		g.Go(func() error {
			return bookingService.RunAudits(gctx, cfg.Worker.AuditInterval())
		})
	} else {
		logger.Warn("inventory audit disabled, memory store is not shared with the app", zap.String("driver", cfg.Database.Driver))
	}

	if cfg.Kafka.Enabled() {
		topic := cfg.Kafka.NotificationsTopic
		if topic == "" {
			topic = cfg.Kafka.BookingEventsTopic
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, topic, logger)
		defer consumer.Close()

		sender := email.NewSender(logger.Named("email"))
		g.Go(func() error {
			logger.Info("consuming booking events", zap.String("topic", topic))
			return consumer.ConsumeEvents(gctx, sender.Handler(workerMetrics))
		})
	} else {
		logger.Info("kafka disabled, notifications are off")
	}

	if cfg.Worker.MetricsAddress != "" {
		if cfg.App.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		engine := gin.New()
		engine.Use(gin.Recovery())
		bootstrap.Mount(engine, reg, checks)
		httpCfg := cfg.HTTP
		httpCfg.Address = cfg.Worker.MetricsAddress
		g.Go(func() error {
			return bootstrap.Run(gctx, httpCfg, engine, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}
