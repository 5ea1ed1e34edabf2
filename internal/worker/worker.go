// Package worker executes pending generation jobs on a goroutine pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/promptcraft/internal/config"
	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

const interruptedReason = "Job interrupted: processor restarted before completion"

// JobStore is the subset of storage the processor needs
type JobStore interface {
	ListPendingJobs(ctx context.Context, limit int) ([]domain.Job, error)
	ClaimJob(ctx context.Context, jobID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID string, result *domain.JobResult) error
	FailJob(ctx context.Context, jobID, message string) error
	RecoverInterruptedJobs(ctx context.Context, reason string) (int64, error)
	UpdateSceneThumbnail(ctx context.Context, sceneID, thumbnail string) error
}

// Generator runs a request on a named provider
type Generator interface {
	Generate(ctx context.Context, provider string, req generation.Request) (*domain.JobResult, error)
}

// Consumer delivers job ids published to the queue
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger    *slog.Logger
	Storage   JobStore
	Generator Generator
	// Consumer is required when Dispatch is amqp
	Consumer     Consumer
	Dispatch     string
	WorkerID     string
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
	JobTimeout   time.Duration
}

// Worker represents the background job processor
type Worker struct {
	logger       *slog.Logger
	storage      JobStore
	generator    Generator
	consumer     Consumer
	dispatch     string
	workerID     string
	concurrency  int
	pollInterval time.Duration
	batchSize    int
	jobTimeout   time.Duration

	jobsChan chan *domain.JobMessage

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:       cfg.Logger,
		storage:      cfg.Storage,
		generator:    cfg.Generator,
		consumer:     cfg.Consumer,
		dispatch:     cfg.Dispatch,
		workerID:     cfg.WorkerID,
		concurrency:  cfg.Concurrency,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		jobTimeout:   cfg.JobTimeout,
		inflight:     make(map[string]struct{}),
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.dispatch == "" {
		w.dispatch = config.DispatchPoll
	}
	if w.workerID == "" {
		w.workerID = "worker"
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 10
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 15 * time.Minute
	}

	return w
}

// Start recovers interrupted jobs, then dispatches and processes jobs until
// ctx is canceled. It returns once every in-flight job has been recorded.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.String("dispatch", w.dispatch),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	recovered, err := w.storage.RecoverInterruptedJobs(ctx, interruptedReason)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}
	if recovered > 0 {
		w.logger.Warn("Recovered interrupted jobs",
			slog.Int64("count", recovered),
		)
	}

	var deliveries <-chan amqp.Delivery
	if w.dispatch == config.DispatchAMQP {
		if w.consumer == nil {
			return fmt.Errorf("amqp dispatch requires a queue consumer")
		}
		deliveries, err = w.setupConsumer()
		if err != nil {
			return err
		}
	}

	w.jobsChan = make(chan *domain.JobMessage, w.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	w.spawnWorkerPool(gctx, g)

	g.Go(func() error {
		defer close(w.jobsChan)
		if deliveries != nil {
			return w.startMessageDispatcher(gctx, deliveries)
		}
		return w.startPollDispatcher(gctx)
	})

	err = g.Wait()
	w.logger.Info("Worker stopped",
		slog.String("worker_id", w.workerID),
	)
	return err
}

// markInflight records a job as dispatched; false means it already is
func (w *Worker) markInflight(jobID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inflight[jobID]; ok {
		return false
	}
	w.inflight[jobID] = struct{}{}
	return true
}

func (w *Worker) clearInflight(jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, jobID)
}
