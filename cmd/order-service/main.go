package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/middleware"
	productclient "github.com/vurksha/backend/internal/clients/product"
	"github.com/vurksha/backend/internal/infrastructure/config"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/idempotency"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/ratelimit"
	"github.com/vurksha/backend/internal/infrastructure/resilience"
	"github.com/vurksha/backend/internal/infrastructure/server"
	"github.com/vurksha/backend/internal/infrastructure/store"
	"github.com/vurksha/backend/internal/services/order"
)

const serviceName = "order-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.ForService(serviceName)); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	srv := server.New(serviceName, cfg, logger)

	kv, err := store.NewRedis(ctx, cfg.Store.RedisURL, cfg.Store.KeyPrefix)
	if err != nil {
		return err
	}
	defer kv.Close()

	bus, err := events.NewAMQPBus(events.AMQPConfig{
		URL:           cfg.Broker.URL,
		Exchange:      cfg.Broker.Exchange,
		DeadLetter:    cfg.Broker.DeadLetter,
		MaxDeliveries: cfg.Broker.MaxDeliveries,
	}, logger.Logger)
	if err != nil {
		return err
	}
	defer bus.Close()
	bus.Instrument(srv.Metrics)

	registry := resilience.NewRegistry(
		resilience.Settings{
			FailureThreshold: cfg.Resilience.FailureThreshold,
			ResetTimeout:     cfg.Resilience.ResetTimeout,
			OnStateChange:    srv.Metrics.BreakerObserver(),
		},
		resilience.RetryConfig{
			MaxAttempts:  cfg.Resilience.MaxAttempts,
			InitialDelay: cfg.Resilience.InitialDelay,
			MaxDelay:     cfg.Resilience.MaxDelay,
			Jitter:       true,
		},
		logger,
	)
	registry.ObserveRetries(srv.Metrics.RetryObserver())
	catalog := productclient.New(cfg.Services.ProductURL, cfg.Resilience.CallTimeout, registry)
	catalog.Instrument(srv.Metrics)

	pricing := order.Pricing{
		MinOrderAmount:        float64(cfg.Order.MinOrderAmount),
		DeliveryFee:           float64(cfg.Order.DeliveryFee),
		FreeDeliveryThreshold: float64(cfg.Order.FreeDeliveryThreshold),
	}
	svc := order.NewService(order.NewMemoryRepository(), catalog, kv, bus, pricing, logger)
	svc.Instrument(srv.Metrics)
	if err := svc.Subscribe(ctx, bus); err != nil {
		return err
	}

	auth := middleware.AuthConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	}

	var limiter ratelimit.Limiter
	limCfg := ratelimit.Config{
		Max:    int64(cfg.RateLimit.Max),
		Window: time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	}
	if cfg.RateLimit.Sliding {
		limiter = ratelimit.NewSlidingWindow(kv, limCfg, logger.Logger)
	} else {
		limiter = ratelimit.NewFixedWindow(kv, limCfg, logger.Logger)
	}

	srv.Health.Register("redis", true, kv.Ping)
	srv.Health.Register("rabbitmq", true, bus.Ping)
	srv.Health.Register("product-service", false, catalog.Ping)
	order.NewHandlers(svc).Routes(srv.Router, auth, limiter, idempotency.New(kv, logger.Logger))

	return srv.Run(ctx)
}
