package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/infrastructure/cache"
	"github.com/vurksha/backend/internal/infrastructure/config"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/server"
	"github.com/vurksha/backend/internal/infrastructure/store"
	"github.com/vurksha/backend/internal/services/product"
)

const serviceName = "product-service"

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

	// The catalog has no external source of truth yet; runs start from
	// the sample catalog and are mutated through SetStock.
	repo := product.NewMemoryRepository()
	repo.Seed(product.SampleCatalog())

	catalogCache := cache.New(kv, logger.Logger)
	catalogCache.Instrument(srv.Metrics)
	svc := product.NewService(repo, catalogCache, cfg.Cache.ProductTTL)

	srv.Health.Register("redis", true, kv.Ping)
	product.NewHandlers(svc).Routes(srv.Router)

	return srv.Run(ctx)
}
