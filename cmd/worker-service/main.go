package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cuongbtq/promptcraft/internal/bootstrap"
	"github.com/cuongbtq/promptcraft/internal/config"
	"github.com/cuongbtq/promptcraft/internal/worker"
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

	configPath := flag.String("config", bootstrap.ConfigPath("WORKER_SERVICE_CONFIG_PATH", "worker-service"), "Path to configuration file")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "config" })

	cfg, err := bootstrap.LoadConfig(*configPath, explicit)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("dispatch", cfg.Worker.Dispatch),
		slog.String("database", bootstrap.Describe(cfg)),
	)

	store, dbClient, err := bootstrap.Storage(context.Background(), &cfg.Database, appLogger.Logger)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	workerCfg := &worker.Config{
		Logger:       appLogger.Logger,
		Storage:      store,
		Generator:    bootstrap.Providers(&cfg.Providers, appLogger.Logger),
		Dispatch:     cfg.Worker.Dispatch,
		WorkerID:     workerID(cfg),
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		JobTimeout:   cfg.Worker.JobTimeout,
	}

	if cfg.Worker.Dispatch == config.DispatchAMQP {
		rabbitClient, err := bootstrap.RabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		workerCfg.Consumer = rabbitClient
		appLogger.Info("RabbitMQ connection established")
	}

	workerInstance := worker.NewWorker(workerCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in a goroutine
	done := make(chan error, 1)
	go func() {
		done <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-done:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
		}
		return err
	}

	cancel()

	// in-flight jobs get shutdown_timeout to record their outcome
	select {
	case err := <-done:
		if err != nil {
			return err
		}
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Duration("timeout", cfg.Worker.ShutdownTimeout),
		)
	}

	return nil
}

func workerID(cfg *config.Config) string {
	host, err := os.Hostname()
	if err != nil {
		return cfg.App.Name + "-worker"
	}
	return fmt.Sprintf("%s-worker-%s-%d", cfg.App.Name, host, os.Getpid())
}
