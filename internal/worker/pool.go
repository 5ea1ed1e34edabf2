package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

// spawnWorkerPool starts N worker goroutines in g
func (w *Worker) spawnWorkerPool(ctx context.Context, g *errgroup.Group) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		workerNum := i
		g.Go(func() error {
			w.workerLoop(ctx, workerNum)
			return nil
		})
	}
}

// workerLoop processes jobs until the dispatcher closes jobsChan. Messages
// still buffered after ctx ends are handed back rather than claimed.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for msg := range w.jobsChan {
		if ctx.Err() != nil {
			w.clearInflight(msg.JobID)
			w.release(msg, true)
			continue
		}

		w.logger.Info("Worker received job",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
		)

		err := w.processJob(ctx, msg)
		w.clearInflight(msg.JobID)

		if err != nil {
			w.logger.Error("Job processing failed",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.JobID),
				slog.String("error", err.Error()),
			)
			w.release(msg, shouldRequeueJob(err))
			continue
		}

		if msg.Ack != nil {
			if ackErr := msg.Ack(); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("job_id", msg.JobID),
					slog.String("error", ackErr.Error()),
				)
			}
		}
	}

	w.logger.Debug("Worker goroutine stopping - jobsChan closed",
		slog.String("worker_name", workerName),
	)
}

// release NACKs a queued message; polled jobs have nothing to release
func (w *Worker) release(msg *domain.JobMessage, requeue bool) {
	if msg.Nack == nil {
		return
	}
	if err := msg.Nack(requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("Message NACKed",
		slog.String("job_id", msg.JobID),
		slog.Bool("requeue", requeue),
	)
}

// shouldRequeueJob requeues only transient failures; generation failures are terminal
func shouldRequeueJob(err error) bool {
	switch {
	case errors.Is(err, domain.ErrJobAlreadyClaimed),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrInvalidPayload):
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
