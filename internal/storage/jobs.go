package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, workflow_id, scene_id, type, status, data, result, error, created_at, started_at, completed_at`

// JobFilter narrows ListJobs. PageSize 0 returns every match.
type JobFilter struct {
	WorkflowID string
	Status     string
	PageSize   int
	Cursor     *JobCursor
}

// JobCursor is the position after which the next page starts
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// JobUpdate carries the optional fields of a job update
type JobUpdate struct {
	Status *string
	Result *domain.JobResult
	Error  *string
}

// CreateJob inserts a job. An empty ID is generated, an empty status becomes pending.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if job.Type == "" {
		job.Type = domain.JobTypeGeneration
	}
	job.CreatedAt = s.now()

	data, err := encodeJSON(job.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal job data: %w", err)
	}

	query := `
		INSERT INTO jobs (id, workflow_id, scene_id, type, status, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, s.q(query),
		job.ID,
		job.WorkflowID,
		nullString(job.SceneID),
		job.Type,
		job.Status,
		data,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	if err := s.db.GetContext(ctx, &row, s.q(query), jobID); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job := row.toDomain()
	return &job, nil
}

// ListJobs returns jobs newest first. With a page size it fetches one extra
// row so callers can tell whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}

	if filter.WorkflowID != "" {
		query += ` AND workflow_id = ?`
		args = append(args, filter.WorkflowID)
	}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}

	if filter.Cursor != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.JobID)
	}

	// id breaks ties so pages never overlap
	query += ` ORDER BY created_at DESC, id DESC`

	if filter.PageSize > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.PageSize+1)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return toJobs(rows), nil
}

// ListPendingJobs returns the oldest pending jobs, at most limit
func (s *Storage) ListPendingJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), domain.JobStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return toJobs(rows), nil
}

// ClaimJob attempts to claim a job using optimistic locking.
// Returns the running job on success, ErrJobAlreadyClaimed if another worker won.
func (s *Storage) ClaimJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = ?,
		    started_at = COALESCE(started_at, ?)
		WHERE id = ?
		  AND status = ?
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, s.q(query), domain.JobStatusRunning, s.now(), jobID, domain.JobStatusPending)
	if err != nil {
		if isNoRows(err) {
			if _, getErr := s.GetJobByID(ctx, jobID); getErr != nil {
				return nil, getErr
			}
			s.logger.Warn("Failed to claim job - already claimed",
				slog.String("job_id", jobID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job := row.toDomain()

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("provider", job.Data.Provider),
	)

	return &job, nil
}

// UpdateJob applies the set fields. Moving to running stamps started_at once;
// moving to completed or failed stamps completed_at, any other status clears it.
func (s *Storage) UpdateJob(ctx context.Context, jobID string, update JobUpdate) (*domain.Job, error) {
	if update.Status != nil && !domain.ValidJobStatus(*update.Status) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, *update.Status)
	}
	if _, err := s.GetJobByID(ctx, jobID); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if update.Status != nil {
			status := *update.Status
			var startedAt, completedAt *time.Time
			if status == domain.JobStatusRunning {
				startedAt = &now
			}
			if status == domain.JobStatusCompleted || status == domain.JobStatusFailed {
				completedAt = &now
			}

			query := `UPDATE jobs SET status = ?, started_at = COALESCE(started_at, ?), completed_at = ? WHERE id = ?`
			if _, err := tx.ExecContext(ctx, s.q(query), status, startedAt, completedAt, jobID); err != nil {
				return fmt.Errorf("failed to update job status: %w", err)
			}
		}

		if update.Result != nil {
			result, err := encodeJSON(update.Result)
			if err != nil {
				return fmt.Errorf("failed to marshal result: %w", err)
			}
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE jobs SET result = ? WHERE id = ?`), result, jobID); err != nil {
				return fmt.Errorf("failed to update job result: %w", err)
			}
		}

		if update.Error != nil {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE jobs SET error = ? WHERE id = ?`), nullString(*update.Error), jobID); err != nil {
				return fmt.Errorf("failed to update job error: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if update.Status != nil {
		s.logger.Info("Job status updated",
			slog.String("job_id", jobID),
			slog.String("status", *update.Status),
		)
	}

	return s.GetJobByID(ctx, jobID)
}

// CompleteJob stores the provider output and marks the job completed
func (s *Storage) CompleteJob(ctx context.Context, jobID string, result *domain.JobResult) error {
	status := domain.JobStatusCompleted
	_, err := s.UpdateJob(ctx, jobID, JobUpdate{Status: &status, Result: result})
	return err
}

// FailJob records the failure message and marks the job failed
func (s *Storage) FailJob(ctx context.Context, jobID, message string) error {
	status := domain.JobStatusFailed
	_, err := s.UpdateJob(ctx, jobID, JobUpdate{Status: &status, Error: &message})
	return err
}

// DeleteJob removes a job
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.execOne(ctx, domain.ErrJobNotFound, `DELETE FROM jobs WHERE id = ?`, jobID); err != nil {
		if err == domain.ErrJobNotFound {
			return err
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// RecoverInterruptedJobs fails every job still marked running. Called once at
// processor startup, before any job is claimed.
func (s *Storage) RecoverInterruptedJobs(ctx context.Context, reason string) (int64, error) {
	query := `UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE status = ?`

	result, err := s.db.ExecContext(ctx, s.q(query), domain.JobStatusFailed, reason, s.now(), domain.JobStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Warn("Marked interrupted jobs as failed",
			slog.Int64("count", rowsAffected),
		)
	}

	return rowsAffected, nil
}

func toJobs(rows []jobRow) []domain.Job {
	jobs := make([]domain.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, row.toDomain())
	}
	return jobs
}
