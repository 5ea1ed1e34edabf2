package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const workflowColumns = `id, name, type, data, created_at, updated_at`

// WorkflowUpdate carries the optional fields of a workflow update
type WorkflowUpdate struct {
	Name *string
	Data json.RawMessage
}

// CreateWorkflow inserts a workflow. An empty ID is generated; empty data is stored as {}.
func (s *Storage) CreateWorkflow(ctx context.Context, workflow *domain.Workflow) error {
	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
	}
	if len(workflow.Data) == 0 {
		workflow.Data = json.RawMessage(`{}`)
	}
	now := s.now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	query := `
		INSERT INTO workflows (id, name, type, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, s.q(query),
		workflow.ID,
		workflow.Name,
		workflow.Type,
		string(workflow.Data),
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// GetWorkflow retrieves a workflow by ID
func (s *Storage) GetWorkflow(ctx context.Context, id string) (*domain.Workflow, error) {
	var row workflowRow
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`

	if err := s.db.GetContext(ctx, &row, s.q(query), id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	workflow := row.toDomain()
	return &workflow, nil
}

// ListWorkflows returns every workflow, most recently updated first
func (s *Storage) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	var rows []workflowRow
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY updated_at DESC, id DESC`

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]domain.Workflow, 0, len(rows))
	for _, row := range rows {
		workflows = append(workflows, row.toDomain())
	}
	return workflows, nil
}

// UpdateWorkflow applies the set fields and bumps updated_at
func (s *Storage) UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) (*domain.Workflow, error) {
	now := s.now()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if update.Name != nil {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE workflows SET name = ?, updated_at = ? WHERE id = ?`), *update.Name, now, id); err != nil {
				return fmt.Errorf("failed to update workflow name: %w", err)
			}
		}
		if len(update.Data) > 0 {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE workflows SET data = ?, updated_at = ? WHERE id = ?`), string(update.Data), now, id); err != nil {
				return fmt.Errorf("failed to update workflow data: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetWorkflow(ctx, id)
}

// DeleteWorkflow removes a workflow; versions, scenes and jobs cascade
func (s *Storage) DeleteWorkflow(ctx context.Context, id string) error {
	if err := s.execOne(ctx, domain.ErrWorkflowNotFound, `DELETE FROM workflows WHERE id = ?`, id); err != nil {
		if err == domain.ErrWorkflowNotFound {
			return err
		}
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

// CreateWorkflowVersion snapshots data as the next version number of the workflow
func (s *Storage) CreateWorkflowVersion(ctx context.Context, workflowID string, data json.RawMessage) (*domain.WorkflowVersion, error) {
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	version := domain.WorkflowVersion{
		WorkflowID: workflowID,
		Data:       data,
		CreatedAt:  s.now(),
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, s.q(`SELECT COUNT(*) FROM workflows WHERE id = ?`), workflowID); err != nil {
			return fmt.Errorf("failed to check workflow: %w", err)
		}
		if exists == 0 {
			return domain.ErrWorkflowNotFound
		}

		if err := tx.GetContext(ctx, &version.Version,
			s.q(`SELECT COALESCE(MAX(version), 0) + 1 FROM workflow_versions WHERE workflow_id = ?`), workflowID); err != nil {
			return fmt.Errorf("failed to compute next version: %w", err)
		}

		query := `
			INSERT INTO workflow_versions (workflow_id, version, data, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`
		if err := tx.GetContext(ctx, &version.ID, s.q(query),
			version.WorkflowID, version.Version, string(version.Data), version.CreatedAt); err != nil {
			return fmt.Errorf("failed to create workflow version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &version, nil
}

// ListWorkflowVersions returns versions of a workflow, newest first
func (s *Storage) ListWorkflowVersions(ctx context.Context, workflowID string) ([]domain.WorkflowVersion, error) {
	var rows []versionRow
	query := `
		SELECT id, workflow_id, version, data, created_at
		FROM workflow_versions
		WHERE workflow_id = ?
		ORDER BY version DESC
	`

	if err := s.db.SelectContext(ctx, &rows, s.q(query), workflowID); err != nil {
		return nil, fmt.Errorf("failed to list workflow versions: %w", err)
	}

	versions := make([]domain.WorkflowVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, row.toDomain())
	}
	return versions, nil
}
