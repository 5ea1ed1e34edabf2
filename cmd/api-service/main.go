package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/promptcraft/internal/api/handler"
	"github.com/cuongbtq/promptcraft/internal/api/router"
	"github.com/cuongbtq/promptcraft/internal/bootstrap"
	"github.com/cuongbtq/promptcraft/internal/config"
	"github.com/cuongbtq/promptcraft/internal/generation"
	"github.com/cuongbtq/promptcraft/internal/opener"
	"github.com/cuongbtq/promptcraft/internal/storage"
	"github.com/cuongbtq/promptcraft/internal/worker"
	"github.com/cuongbtq/promptcraft/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := flag.String("config", bootstrap.ConfigPath("API_SERVICE_CONFIG_PATH", "api-service"), "Path to configuration file")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "config" })

	cfg, err := bootstrap.LoadConfig(*configPath, explicit)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("database", bootstrap.Describe(cfg)),
	)

	store, dbClient, err := bootstrap.Storage(context.Background(), &cfg.Database, appLogger.Logger)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	svc := bootstrap.Providers(&cfg.Providers, appLogger.Logger)

	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = bootstrap.RabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		appLogger.Info("RabbitMQ connection established")
	}

	r := initRouter(cfg, appLogger.Logger, store, svc, rabbitClient)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server",
			slog.String("address", srv.Addr),
			slog.Duration("read_timeout", cfg.Server.ReadTimeout),
			slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if cfg.Worker.Embedded {
		w := worker.NewWorker(&worker.Config{
			Logger:       appLogger.Component("worker"),
			Storage:      store,
			Generator:    svc,
			Consumer:     consumer(rabbitClient),
			Dispatch:     cfg.Worker.Dispatch,
			WorkerID:     cfg.App.Name + "-embedded",
			Concurrency:  cfg.Worker.Concurrency,
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
			JobTimeout:   cfg.Worker.JobTimeout,
		})
		g.Go(func() error { return w.Start(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown",
				slog.Any("error", err),
			)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, store *storage.Storage, svc *generation.Service, rabbitClient *rabbitmq.Client) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:    logger,
		Storage:   store,
		Providers: svc,
		Opener:    opener.New(logger),
	}
	// a nil *rabbitmq.Client must not become a non-nil Publisher
	if rabbitClient != nil {
		deps.Publisher = rabbitClient
	}

	return router.SetupRouter(deps, cfg.Server.AllowedOrigins)
}

func consumer(rabbitClient *rabbitmq.Client) worker.Consumer {
	if rabbitClient == nil {
		return nil
	}
	return rabbitClient
}
