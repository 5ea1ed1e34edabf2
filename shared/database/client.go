package database

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite is the embedded database used by desktop installs
	DriverSQLite = "sqlite"
	// DriverPostgres is used when the bridge runs as a shared service
	DriverPostgres = "postgres"
)

func init() {
	// sqlx does not know the modernc driver name
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Config holds database connection configuration
type Config struct {
	Driver          string
	Path            string // sqlite file, ":memory:" for tests
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Client owns the sqlx pool shared by storage
type Client struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewClient opens the configured database and verifies the connection
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	driver, dsn, err := dataSource(config)
	if err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("driver", driver), slog.String("target", target(config)))

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	tunePool(db, driver, config)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("Database unreachable", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Connected to database", slog.Int("max_open_conns", db.Stats().MaxOpenConnections))
	return &Client{db: db, logger: logger}, nil
}

func tunePool(db *sqlx.DB, driver string, config *Config) {
	if driver == DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
}

func dataSource(config *Config) (string, string, error) {
	switch config.Driver {
	case DriverSQLite, "":
		path := config.Path
		if path == "" {
			return "", "", fmt.Errorf("sqlite path is required")
		}
		if path == ":memory:" {
			return DriverSQLite, "file::memory:?_pragma=foreign_keys(1)&_time_format=sqlite", nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", "", fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
		return DriverSQLite, dsn, nil
	case DriverPostgres:
		dsn := (&url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(config.User, config.Password),
			Host:     net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
			Path:     "/" + config.Database,
			RawQuery: url.Values{"sslmode": {config.SSLMode}}.Encode(),
		}).String()
		return DriverPostgres, dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
}

func target(config *Config) string {
	if config.Driver == DriverPostgres {
		return fmt.Sprintf("%s:%d/%s", config.Host, config.Port, config.Database)
	}
	return config.Path
}

// GetDB returns the pool for storage
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Ping checks that the pool can reach the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the pool; later calls are no-ops
func (c *Client) Close() error {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close database", slog.Any("error", err))
		return err
	}
	c.logger.Debug("Database closed")
	return nil
}
