package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// processJob claims a job, runs it on its provider under the job timeout and
// records the outcome. Status writes use a context that survives shutdown so a
// canceled job is still stored as failed.
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	w.logger.Info("Processing job",
		slog.String("job_id", msg.JobID),
		slog.String("worker_id", w.workerID),
	)

	// Step 1: claim the job (pending -> running)
	job, err := w.storage.ClaimJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrJobNotFound) {
			w.logger.Warn("Job not claimable, skipping",
				slog.String("job_id", msg.JobID),
				slog.String("reason", err.Error()),
			)
			return fmt.Errorf("failed to claim job: %w", err)
		}
		// database errors could be transient
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	recordCtx := context.WithoutCancel(ctx)

	// Step 2: validate the request
	req, err := buildRequest(job)
	if err != nil {
		w.logger.Error("Invalid job data",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		if failErr := w.storage.FailJob(recordCtx, job.ID, "Invalid job data: "+err.Error()); failErr != nil {
			w.logger.Error("Failed to update job status to FAILED",
				slog.String("job_id", job.ID),
				slog.String("error", failErr.Error()),
			)
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	// Step 3: run the provider under the job timeout
	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, err := w.generator.Generate(jobCtx, job.Data.Provider, req)
	if err == nil && result == nil {
		err = errors.New("provider returned no result")
	}
	if err != nil {
		if jobCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("job timed out after %s: %w", w.jobTimeout, err)
		}

		w.logger.Error("Job execution failed",
			slog.String("job_id", job.ID),
			slog.String("provider", job.Data.Provider),
			slog.String("model", req.Model),
			slog.String("error", err.Error()),
		)

		if failErr := w.storage.FailJob(recordCtx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("Failed to update job status to FAILED",
				slog.String("job_id", job.ID),
				slog.String("error", failErr.Error()),
			)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	// Step 4: store the result
	if err := w.storage.CompleteJob(recordCtx, job.ID, result); err != nil {
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return domain.NewRetryableError(fmt.Errorf("failed to complete job: %w", err))
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.ID),
		slog.String("provider", job.Data.Provider),
		slog.String("model", req.Model),
	)

	// Step 5: the linked scene shows the newest output
	if job.SceneID != "" {
		if thumb := result.Output(); thumb != "" {
			if err := w.storage.UpdateSceneThumbnail(recordCtx, job.SceneID, thumb); err != nil {
				w.logger.Warn("Failed to update scene thumbnail",
					slog.String("job_id", job.ID),
					slog.String("scene_id", job.SceneID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return nil
}

// buildRequest turns stored job data into a provider request. Provider and
// prompt are required; model defaults to "default".
func buildRequest(job *domain.Job) (generation.Request, error) {
	data := job.Data
	if data.Provider == "" {
		return generation.Request{}, errors.New("provider is required")
	}
	if data.Prompt == "" {
		return generation.Request{}, errors.New("prompt is required")
	}

	model := data.Model
	if model == "" {
		model = "default"
	}

	params := make(map[string]any, len(data.Parameters)+1)
	for k, v := range data.Parameters {
		params[k] = v
	}
	if _, ok := params["negative_prompt"]; !ok && data.NegativePrompt != "" {
		params["negative_prompt"] = data.NegativePrompt
	}

	return generation.Request{
		Prompt:     data.Prompt,
		Model:      model,
		Parameters: params,
	}, nil
}
