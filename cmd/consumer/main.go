package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/internal/app"
	"github.com/fastygo/catalog-sync/internal/config"
	"github.com/fastygo/catalog-sync/internal/services"
	"github.com/fastygo/catalog-sync/internal/services/lifecycle"
	"github.com/fastygo/catalog-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.ValidateConsumer(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName + "-consumer",
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.SignalContext(context.Background())
	defer cancel()

	deps, err := app.Build(appCtx, cfg, zapLogger, manager, app.Options{})
	if err != nil {
		zapLogger.Fatal("dependency setup failed", zap.Error(err))
	}

	consumer := services.NewConsumer(
		deps.Queue,
		services.NewAssembler(deps.Records),
		services.NewSnapshotWriter(deps.Snapshots, zapLogger),
		deps.DeadLetters,
		zapLogger,
		services.ConsumerConfig{
			MaxMessages:       cfg.Consumer.MaxMessages,
			WaitTime:          cfg.Consumer.WaitTime,
			VisibilityTimeout: cfg.Consumer.VisibilityTimeout,
			PollInterval:      cfg.Consumer.PollInterval,
			Concurrency:       cfg.Consumer.Concurrency,
			OwnerTimeout:      cfg.Consumer.OwnerTimeout,
		},
	)

	if err := manager.Run(appCtx, map[string]lifecycle.RunFunc{"consumer": consumer.Run}); err != nil {
		zapLogger.Error("consumer stopped with error", zap.Error(err))
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
