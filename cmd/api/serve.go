package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/meeting-copilot/internal/adapter/handler"
	"github.com/johnquangdev/meeting-copilot/internal/adapter/repository"
	"github.com/johnquangdev/meeting-copilot/internal/domain/repositories"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/database"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/docstore"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/events"
	httpmw "github.com/johnquangdev/meeting-copilot/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/metrics"
	"github.com/johnquangdev/meeting-copilot/internal/infrastructure/storage"
	libraryUsecase "github.com/johnquangdev/meeting-copilot/internal/usecase/library"
	"github.com/johnquangdev/meeting-copilot/internal/usecase/live"
	"github.com/johnquangdev/meeting-copilot/pkg/ai"
	"github.com/johnquangdev/meeting-copilot/pkg/config"
	pkgvalidator "github.com/johnquangdev/meeting-copilot/pkg/validator"
)

const sinkBuffer = 1024

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.Bool("env_file", cfg.EnvFileLoaded))

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	m := metrics.New()

	// Document store
	backend, closeBackend, err := openDocuments(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeBackend)
	library := libraryUsecase.NewService(backend, logger)

	// Audio
	audio, err := openAudioStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Completion service; being offline is not fatal
	llm := ai.NewCompletionClient(cfg.LLM)
	if model, err := llm.Probe(ctx); err != nil {
		logger.Warn("completion service unreachable, questions and analysis are skipped until it is up",
			zap.String("base_url", cfg.LLM.BaseURL), zap.Error(err))
	} else {
		logger.Info("completion service reachable", zap.String("model", model))
	}

	// Events
	hub := events.NewHub(logger, m)
	publisher := events.Fanout{hub}
	var sinks []*events.Async

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		sink := events.NewAsync(events.NewRedisSink(client, cfg.Redis.ChannelPrefix), sinkBuffer, logger, m)
		sinks = append(sinks, sink)
		publisher = append(publisher, sink)
	}

	kafkaSink := events.NewAsync(events.NewKafkaSink(cfg.Kafka, logger), sinkBuffer, logger, m)
	sinks = append(sinks, kafkaSink)
	publisher = append(publisher, kafkaSink)

	manager := live.NewManager(live.SessionDeps{
		LLM:       llm,
		Store:     library,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
	}, live.WithSessionCounter(m))

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = pkgvalidator.New()

	e.Use(middleware.RequestID())
	e.Use(httpmw.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))

	libraryHandler := handler.NewLibraryHandler(library, audio, logger)
	sessionHandler := handler.NewSessionHandler(manager, hub, audio, m, cfg.LLM.Language, logger)
	handler.NewRouter(cfg, libraryHandler, sessionHandler, manager, m.Handler(), llm).Setup(e)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment),
			zap.String("documents", cfg.Documents.Backend),
			zap.String("storage", cfg.Storage.Type))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		var errs []error
		if err := e.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// running analyses finish and save before the sinks go away
		if err := manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("sessions shutdown: %w", err))
		}
		for _, sink := range sinks {
			if err := sink.Close(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("event sink shutdown: %w", err))
			}
		}
		if len(errs) == 0 {
			logger.Info("server stopped gracefully")
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// openDocuments picks the document backend. The returned func releases it.
func openDocuments(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.DocumentBackend, func(), error) {
	if cfg.Documents.Backend != "postgres" {
		logger.Info("using filesystem document store", zap.String("dir", cfg.Documents.DataDir))
		return docstore.NewFileBackend(cfg.Documents.DataDir), func() {}, nil
	}

	db, err := database.NewPostgresDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = database.CloseDB(db, logger) }

	// production deployments run `migrate up` explicitly
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			closeDB()
			return nil, nil, errors.New("DB_AUTO_MIGRATE is enabled in production; run `migrate up` instead")
		}
		n, err := database.Migrate(db, migrate.Up)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		logger.Info("applied migrations", zap.Int("count", n))
	}

	logger.Info("using postgres document store", zap.String("database", cfg.Database.Name))
	return repository.NewDocumentRepository(db), closeDB, nil
}

func openAudioStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.AudioStore, error) {
	if cfg.Storage.Type == "minio" {
		return storage.NewMinIOAudioStore(ctx, cfg, logger)
	}
	return storage.NewLocalAudioStore(cfg.Documents.DataDir, logger), nil
}
