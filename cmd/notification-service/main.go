package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/middleware"
	"github.com/vurksha/backend/internal/infrastructure/config"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/server"
	"github.com/vurksha/backend/internal/infrastructure/store"
	"github.com/vurksha/backend/internal/services/notification"
)

const serviceName = "notification-service"

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

	var pusher notification.Pusher
	if cfg.Push.GatewayURL != "" {
		pusher = notification.NewHTTPPusher(cfg.Push.GatewayURL, cfg.Push.Timeout, logger)
	} else {
		logger.Info("no push gateway configured, push delivery disabled")
	}

	svc := notification.NewService(notification.NewStoreRepository(kv), pusher,
		notification.NewStream(logger), logger)
	if err := svc.Subscribe(ctx, bus); err != nil {
		return err
	}

	auth := middleware.AuthConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		TokenTTL: cfg.Auth.TokenTTL,
	}

	srv.Health.Register("redis", true, kv.Ping)
	srv.Health.Register("rabbitmq", true, bus.Ping)
	notification.NewHandlers(svc).Routes(srv.Router, auth)

	return srv.Run(ctx)
}
