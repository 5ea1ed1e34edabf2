// Package bootstrap builds the shared infrastructure the binaries start from.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cuongbtq/promptcraft/internal/config"
	"github.com/cuongbtq/promptcraft/internal/generation"
	"github.com/cuongbtq/promptcraft/internal/generation/providers"
	"github.com/cuongbtq/promptcraft/internal/storage"
	"github.com/cuongbtq/promptcraft/shared/database"
	"github.com/cuongbtq/promptcraft/shared/logger"
	"github.com/cuongbtq/promptcraft/shared/rabbitmq"
)

// ConfigPath resolves the config file path from env, falling back to
// configs/<service>/config.yaml
func ConfigPath(envVar, service string) string {
	if path := os.Getenv(envVar); path != "" {
		return path
	}
	return "configs/" + service + "/config.yaml"
}

// LoadConfig reads path. A missing file yields the defaults unless the path
// was given explicitly.
func LoadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

// Logger initializes and configures the application logger
func Logger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// Database opens the configured database
func Database(cfg *config.DatabaseConfig, log *slog.Logger) (*database.Client, error) {
	return database.NewClient(&database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, log)
}

// Storage opens the database and brings its schema up to date. The caller
// closes the returned client after everything using the store has stopped.
func Storage(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*storage.Storage, *database.Client, error) {
	db, err := Database(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := storage.NewStorage(db.GetDB(), log)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, db, nil
}

// RabbitMQ connects to the broker and declares the job exchange and queue
func RabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		URL:                cfg.URL(),
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, log)
}

// Providers registers every generation provider with the configured keys and URLs
func Providers(cfg *config.ProvidersConfig, log *slog.Logger) *generation.Service {
	svc := generation.NewService(log)
	providers.Register(svc, providers.Config{
		OpenAIKey:    cfg.OpenAIKey,
		GoogleKey:    cfg.GoogleKey,
		GrokKey:      cfg.GrokKey,
		AnthropicKey: cfg.AnthropicKey,
		A1111URL:     cfg.A1111URL,
		ComfyUIURL:   cfg.ComfyUIURL,
		InvokeAIURL:  cfg.InvokeAIURL,
		BaseURLs:     cfg.BaseURLs,
		HTTPClient:   &http.Client{Timeout: cfg.RequestTimeout},
		Logger:       log,
	})

	log.Info("Providers registered",
		slog.Any("providers", svc.List()),
	)
	return svc
}

// Describe is a one-line summary of where the binary stores its data
func Describe(cfg *config.Config) string {
	if cfg.Database.Driver == database.DriverPostgres {
		return fmt.Sprintf("postgres %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}
	return "sqlite " + cfg.Database.Path
}
