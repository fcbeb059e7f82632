package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/catalog-sync/api/handler"
	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/app"
	"github.com/fastygo/catalog-sync/internal/config"
	"github.com/fastygo/catalog-sync/internal/middleware"
	"github.com/fastygo/catalog-sync/internal/router"
	"github.com/fastygo/catalog-sync/internal/services"
	"github.com/fastygo/catalog-sync/internal/services/lifecycle"
	"github.com/fastygo/catalog-sync/pkg/httpcontext"
	"github.com/fastygo/catalog-sync/pkg/logger"
	"github.com/fastygo/catalog-sync/usecase/catalog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName + "-api",
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.JWT.Secret == "" {
		zapLogger.Fatal("JWT_SECRET is required")
	}

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.SignalContext(context.Background())
	defer cancel()

	deps, err := app.Build(appCtx, cfg, zapLogger, manager, app.Options{WithJournal: true})
	if err != nil {
		zapLogger.Fatal("dependency setup failed", zap.Error(err))
	}

	publisher := services.NewPublisher(deps.Queue, services.PublisherConfig{
		MaxRetries: cfg.Publisher.MaxRetries,
		BaseDelay:  cfg.Publisher.BaseDelay,
	}, zapLogger)

	var journalStore services.JournalStore
	if deps.Journal != nil {
		journalStore = deps.Journal

		replay, err := services.NewReplayProcessor(journalStore, publisher, deps.Monitor, zapLogger, services.ReplayConfig{
			Schedule:   cfg.Journal.Schedule,
			BatchSize:  cfg.Journal.BatchSize,
			MaxReplays: cfg.Journal.MaxReplays,
			Retention:  time.Duration(cfg.Journal.RetentionHours) * time.Hour,
		})
		if err != nil {
			zapLogger.Fatal("journal replay setup failed", zap.Error(err))
		}
		replay.Start()
		manager.Register("journal_replay", func(ctx context.Context) error {
			replay.Stop(ctx)
			return nil
		})
	}

	notifier := services.NewNotifier(publisher, journalStore, zapLogger)
	catalogUseCase := catalog.New(deps.Records, notifier, zapLogger)
	snapshots := services.NewSnapshotWriter(deps.Snapshots, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Products:   apiHandler.NewRecordHandler(domain.KindProduct, catalogUseCase, ctxAdapter, zapLogger),
		Categories: apiHandler.NewRecordHandler(domain.KindCategory, catalogUseCase, ctxAdapter, zapLogger),
		Snapshot:   apiHandler.NewSnapshotHandler(snapshots, ctxAdapter, zapLogger),
		Health:     apiHandler.NewHealthHandler(deps.Monitor, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Algorithm, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	runErr := manager.Run(appCtx, map[string]lifecycle.RunFunc{
		"http_server": func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() {
				zapLogger.Info("server started", zap.String("address", cfg.Address()))
				errCh <- server.ListenAndServe(cfg.Address())
			}()
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				return server.Shutdown()
			}
		},
	})
	if runErr != nil {
		zapLogger.Error("server stopped with error", zap.Error(runErr))
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
