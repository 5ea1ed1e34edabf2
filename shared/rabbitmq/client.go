package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned once the broker connection is gone
var ErrNotConnected = errors.New("not connected to RabbitMQ")

// Config describes the broker and the job exchange/queue pair
type Config struct {
	URL                string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	QueueName          string
	QueueDurable       bool
	RoutingKey         string
	PrefetchCount      int
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Client publishes job announcements and hands deliveries to workers.
// It owns one connection and one channel; a closed connection is not redialed.
type Client struct {
	config  *Config
	logger  *slog.Logger
	publish backoff

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewClient dials the broker and declares the job topology
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	retries := config.PublishRetries
	if retries <= 0 {
		retries = 3
	}
	c := &Client{
		config:  config,
		logger:  logger.With(slog.String("exchange", config.ExchangeName), slog.String("queue", config.QueueName)),
		publish: newBackoff(retries+1, config.PublishRetryDelay, config.PublishBackoffMult),
	}

	conn, err := c.dial(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareJobTopology(ch, config); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	c.conn, c.channel = conn, ch
	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))

	c.logger.Info("RabbitMQ client initialized")
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*amqp.Connection, error) {
	retry := newBackoff(c.config.RetryAttempts, c.config.RetryInterval, 1)

	var conn *amqp.Connection
	err := retry.run(ctx, func(attempt int) error {
		c.logger.Info("Connecting to RabbitMQ", slog.Int("attempt", attempt))
		var err error
		conn, err = amqp.DialConfig(c.config.URL, amqp.Config{Heartbeat: c.config.Heartbeat, Locale: "en_US"})
		return err
	}, func(attempt int, wait time.Duration, err error) {
		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Duration("retry_after", wait),
			slog.Any("error", err),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retry.attempts, err)
	}
	return conn, nil
}

// declareJobTopology makes sure the exchange and queue exist and are bound
func declareJobTopology(ch *amqp.Channel, cfg *Config) error {
	if err := ch.ExchangeDeclare(cfg.ExchangeName, cfg.ExchangeType, cfg.ExchangeDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.ExchangeName, err)
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, cfg.QueueDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.QueueName, err)
	}
	if err := ch.QueueBind(cfg.QueueName, cfg.RoutingKey, cfg.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", cfg.QueueName, err)
	}
	return nil
}

// watch logs an unexpected connection loss
func (c *Client) watch(closed <-chan *amqp.Error) {
	amqpErr, ok := <-closed
	if !ok || amqpErr == nil {
		return
	}
	c.logger.Error("RabbitMQ connection lost",
		slog.Int("code", amqpErr.Code),
		slog.String("reason", amqpErr.Reason),
	)
}

func (c *Client) activeChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}
	return c.channel, nil
}

// PublishJob announces a pending job to the workers, retrying with backoff
func (c *Client) PublishJob(ctx context.Context, jobID string) error {
	ch, err := c.activeChannel()
	if err != nil {
		return err
	}
	msg, err := jobPublishing(jobID, time.Now())
	if err != nil {
		return err
	}

	err = c.publish.run(ctx, func(int) error {
		return ch.PublishWithContext(ctx, c.config.ExchangeName, c.config.RoutingKey, false, false, msg)
	}, func(attempt int, wait time.Duration, err error) {
		c.logger.Warn("Failed to publish job, retrying",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Duration("retry_after", wait),
			slog.Any("error", err),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to publish job %s: %w", jobID, err)
	}

	c.logger.Debug("Job published", slog.String("job_id", jobID))
	return nil
}

// Consume subscribes to the job queue with manual acknowledgement
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	ch, err := c.activeChannel()
	if err != nil {
		return nil, err
	}

	if c.config.PrefetchCount > 0 {
		if err := ch.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	deliveries, err := ch.Consume(c.config.QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume job queue: %w", err)
	}

	c.logger.Info("Consuming job queue",
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch_count", c.config.PrefetchCount),
	)
	return deliveries, nil
}

// Close shuts the channel and connection; it is safe to call twice
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ch, conn := c.channel, c.conn
	c.mu.Unlock()

	c.logger.Info("Closing RabbitMQ connection")

	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
