package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

type workflowRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	Data      string    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r workflowRow) toDomain() domain.Workflow {
	return domain.Workflow{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Data:      json.RawMessage(r.Data),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type versionRow struct {
	ID         int64     `db:"id"`
	WorkflowID string    `db:"workflow_id"`
	Version    int       `db:"version"`
	Data       string    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r versionRow) toDomain() domain.WorkflowVersion {
	return domain.WorkflowVersion{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		Version:    r.Version,
		Data:       json.RawMessage(r.Data),
		CreatedAt:  r.CreatedAt,
	}
}

type sceneRow struct {
	ID         string         `db:"id"`
	WorkflowID string         `db:"workflow_id"`
	Name       string         `db:"name"`
	Data       string         `db:"data"`
	Thumbnail  sql.NullString `db:"thumbnail"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r sceneRow) toDomain() (domain.Scene, error) {
	scene := domain.Scene{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		Name:       r.Name,
		Thumbnail:  r.Thumbnail.String,
		CreatedAt:  r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.Data), &scene.Data); err != nil {
		return domain.Scene{}, fmt.Errorf("failed to decode scene %s data: %w", r.ID, err)
	}
	return scene, nil
}

type jobRow struct {
	ID          string         `db:"id"`
	WorkflowID  string         `db:"workflow_id"`
	SceneID     sql.NullString `db:"scene_id"`
	Type        string         `db:"type"`
	Status      string         `db:"status"`
	Data        string         `db:"data"`
	Result      sql.NullString `db:"result"`
	Error       sql.NullString `db:"error"`
	CreatedAt   time.Time      `db:"created_at"`
	StartedAt   sql.NullTime   `db:"started_at"`
	CompletedAt sql.NullTime   `db:"completed_at"`
}

// toDomain decodes the JSON columns. Malformed job data is kept readable:
// the job is returned with empty Data and the processor fails it.
func (r jobRow) toDomain() domain.Job {
	job := domain.Job{
		ID:         r.ID,
		WorkflowID: r.WorkflowID,
		SceneID:    r.SceneID.String,
		Type:       r.Type,
		Status:     r.Status,
		Error:      r.Error.String,
		CreatedAt:  r.CreatedAt,
	}
	_ = json.Unmarshal([]byte(r.Data), &job.Data)

	if r.Result.Valid && r.Result.String != "" {
		var result domain.JobResult
		if err := json.Unmarshal([]byte(r.Result.String), &result); err == nil {
			job.Result = &result
		}
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		job.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		job.CompletedAt = &t
	}
	return job
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
