package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Worker dispatch modes
const (
	DispatchPoll = "poll"
	DispatchAMQP = "amqp"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Worker    WorkerConfig    `yaml:"worker"`
	Providers ProvidersConfig `yaml:"providers"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// Addr is the listen address of the bridge server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the storage driver and its connection settings.
// Path is only read for sqlite; empty means <data dir>/promptcraft.db.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// URL builds the amqp:// connection string
func (r RabbitMQConfig) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Password),
		Host:   fmt.Sprintf("%s:%d", r.Host, r.Port),
		Path:   "/" + r.VHost,
	}
	if r.VHost == "/" {
		u.Path = "/"
	}
	return u.String()
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Durable bool   `yaml:"durable"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds job processor configuration
type WorkerConfig struct {
	// Embedded runs the processor inside the api-service process
	Embedded        bool          `yaml:"embedded"`
	Dispatch        string        `yaml:"dispatch"`
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	BatchSize       int           `yaml:"batch_size"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig holds credentials for cloud providers and base URLs for local ones.
// Keys left empty can be configured at runtime through the providers API.
type ProvidersConfig struct {
	OpenAIKey    string `yaml:"openai_api_key"`
	GoogleKey    string `yaml:"google_api_key"`
	GrokKey      string `yaml:"grok_api_key"`
	AnthropicKey string `yaml:"anthropic_api_key"`
	A1111URL     string `yaml:"a1111_url"`
	ComfyUIURL   string `yaml:"comfyui_url"`
	InvokeAIURL  string `yaml:"invokeai_url"`
	// BaseURLs overrides cloud API endpoints, keyed by provider name
	BaseURLs       map[string]string `yaml:"base_urls"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
}

// ClientConfig configures the CLI's bridge client
type ClientConfig struct {
	// APIURL empty means web mode: no bridge, local settings only
	APIURL       string        `yaml:"api_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	SettingsPath string        `yaml:"settings_path"`
	WorkflowID   string        `yaml:"workflow_id"`
}

// Load reads and parses the configuration file. ${VAR} references are
// expanded from the environment before parsing.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// Default returns a configuration with every default applied, used when no
// config file is present.
func Default() *Config {
	var config Config
	config.ApplyDefaults()
	return &config
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "promptcraft"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = filepath.Join(DataDir(), "promptcraft.db")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "direct"
	}
	if c.RabbitMQ.VHost == "" {
		c.RabbitMQ.VHost = "/"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Worker.Dispatch == "" {
		c.Worker.Dispatch = DispatchPoll
	}
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 2
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 10
	}
	if c.Worker.JobTimeout == 0 {
		c.Worker.JobTimeout = 15 * time.Minute
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}

	if c.Providers.RequestTimeout == 0 {
		c.Providers.RequestTimeout = 120 * time.Second
	}

	if c.Client.PollInterval == 0 {
		c.Client.PollInterval = 3 * time.Second
	}
	if c.Client.SettingsPath == "" {
		c.Client.SettingsPath = filepath.Join(DataDir(), "settings.yaml")
	}
}

// DataDir resolves the per-user data directory. Snap confinement paths win
// over $HOME; /tmp is the last resort.
func DataDir() string {
	for _, env := range []string{"SNAP_USER_COMMON", "SNAP_USER_DATA"} {
		if dir := os.Getenv(env); dir != "" {
			return filepath.Join(dir, "promptcraft")
		}
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".promptcraft")
	}
	return filepath.Join(os.TempDir(), ".promptcraft")
}

// ValidateAPIConfig checks the settings the bridge server needs
func (c *Config) ValidateAPIConfig() error {
	if err := checkPort("server", c.Server.Port); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if c.RabbitMQ.Enabled {
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}
	if c.Worker.Embedded {
		return c.ValidateWorkerConfig()
	}
	return nil
}

// ValidateWorkerConfig checks the settings the job processor needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	w := c.Worker
	switch w.Dispatch {
	case DispatchPoll:
		if err := firstError(
			positive("worker poll_interval", int64(w.PollInterval)),
			positive("worker batch_size", int64(w.BatchSize)),
		); err != nil {
			return err
		}
	case DispatchAMQP:
		if !c.RabbitMQ.Enabled {
			return fmt.Errorf("worker dispatch amqp requires rabbitmq.enabled")
		}
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid worker dispatch: %q (must be %q or %q)", w.Dispatch, DispatchPoll, DispatchAMQP)
	}

	return firstError(
		positive("worker concurrency", int64(w.Concurrency)),
		positive("worker job_timeout", int64(w.JobTimeout)),
		positive("worker shutdown_timeout", int64(w.ShutdownTimeout)),
	)
}

func (c *Config) validateDatabase() error {
	db := c.Database
	switch db.Driver {
	case "sqlite":
		return required("database path is required for sqlite", db.Path)
	case "postgres":
		return firstError(
			required("database host is required", db.Host),
			checkPort("database", db.Port),
			required("database name is required", db.Database),
		)
	default:
		return fmt.Errorf("unsupported database driver: %q", db.Driver)
	}
}

func (c *Config) validateRabbitMQ() error {
	mq := c.RabbitMQ
	return firstError(
		required("rabbitmq host is required", mq.Host),
		checkPort("rabbitmq", mq.Port),
		required("rabbitmq exchange name is required", mq.Exchange.Name),
		required("rabbitmq queue name is required", mq.Queue.Name),
	)
}

func checkPort(name string, port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("invalid %s port: %d (must be between %d and %d)", name, port, MinPort, MaxPort)
	}
	return nil
}

func required(msg, value string) error {
	if value == "" {
		return errors.New(msg)
	}
	return nil
}

func positive(field string, n int64) error {
	if n <= 0 {
		return fmt.Errorf("%s must be greater than 0", field)
	}
	return nil
}

// firstError reports checks in declaration order
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
