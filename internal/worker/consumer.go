package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/shared/rabbitmq"
)

// setupConsumer subscribes to the job queue under this worker's id
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.consumer.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return deliveries, nil
}

// startMessageDispatcher feeds queue deliveries to the pool until ctx ends
// or the broker closes the delivery channel.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("Queue dispatcher started", slog.String("worker_id", w.workerID))

	for {
		var (
			delivery amqp.Delivery
			ok       bool
		)
		select {
		case <-ctx.Done():
			w.logger.Info("Queue dispatcher stopped")
			return nil
		case delivery, ok = <-deliveries:
		}
		if !ok {
			w.logger.Warn("Job queue delivery channel closed")
			return fmt.Errorf("rabbitmq delivery channel closed")
		}

		if !w.dispatchDelivery(ctx, delivery) {
			return nil
		}
	}
}

// dispatchDelivery hands one delivery to the pool; false means ctx ended first
// and the delivery went back to the queue.
func (w *Worker) dispatchDelivery(ctx context.Context, d amqp.Delivery) bool {
	log := w.logger.With(slog.Uint64("delivery_tag", d.DeliveryTag))

	msg, err := rabbitmq.DecodeJobMessage(d.Body)
	if err != nil {
		// never requeued: a malformed body cannot succeed later
		log.Error("Rejecting malformed job message",
			slog.String("body", string(d.Body)),
			slog.Any("error", err),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Failed to NACK malformed message", slog.Any("error", nackErr))
		}
		return true
	}

	job := &domain.JobMessage{
		JobID: msg.JobID,
		Ack:   func() error { return d.Ack(false) },
		Nack:  func(requeue bool) error { return d.Nack(false, requeue) },
	}

	select {
	case w.jobsChan <- job:
		log.Debug("Job dispatched to worker pool", slog.String("job_id", msg.JobID))
		return true
	case <-ctx.Done():
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("Failed to requeue job on shutdown",
				slog.String("job_id", msg.JobID),
				slog.Any("error", nackErr),
			)
		}
		return false
	}
}

// startPollDispatcher lists the oldest pending jobs every poll interval and
// hands those not already in flight to the pool.
func (w *Worker) startPollDispatcher(ctx context.Context) error {
	w.logger.Info("Poll dispatcher started",
		slog.String("worker_id", w.workerID),
		slog.Duration("interval", w.pollInterval),
		slog.Int("batch_size", w.batchSize),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if !w.dispatchPending(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Poll dispatcher stopped - context canceled")
			return nil
		case <-ticker.C:
		}
	}
}

// dispatchPending sends one batch to the pool; false means ctx ended mid-batch
func (w *Worker) dispatchPending(ctx context.Context) bool {
	jobs, err := w.storage.ListPendingJobs(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Error("Failed to list pending jobs",
			slog.String("error", err.Error()),
		)
		return true
	}

	for _, job := range jobs {
		if !w.markInflight(job.ID) {
			continue
		}

		select {
		case w.jobsChan <- &domain.JobMessage{JobID: job.ID}:
			w.logger.Debug("Job dispatched to worker pool",
				slog.String("job_id", job.ID),
			)
		case <-ctx.Done():
			w.clearInflight(job.ID)
			return false
		}
	}
	return true
}
