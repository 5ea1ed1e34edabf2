package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const sceneColumns = `id, workflow_id, name, data, thumbnail, created_at`

// SceneUpdate carries the optional fields of a scene update
type SceneUpdate struct {
	Name      *string
	Data      *domain.SceneData
	Thumbnail *string
}

// CreateScene inserts a scene. An empty ID is generated.
func (s *Storage) CreateScene(ctx context.Context, scene *domain.Scene) error {
	if scene.ID == "" {
		scene.ID = uuid.NewString()
	}
	scene.CreatedAt = s.now()

	data, err := encodeJSON(scene.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal scene data: %w", err)
	}

	query := `
		INSERT INTO scenes (id, workflow_id, name, data, thumbnail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, s.q(query),
		scene.ID,
		scene.WorkflowID,
		scene.Name,
		data,
		nullString(scene.Thumbnail),
		scene.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}

	return nil
}

// GetScene retrieves a scene by ID
func (s *Storage) GetScene(ctx context.Context, id string) (*domain.Scene, error) {
	var row sceneRow
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE id = ?`

	if err := s.db.GetContext(ctx, &row, s.q(query), id); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrSceneNotFound
		}
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	scene, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &scene, nil
}

// ListScenes returns scenes newest first, optionally limited to one workflow
func (s *Storage) ListScenes(ctx context.Context, workflowID string) ([]domain.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes`
	args := []any{}
	if workflowID != "" {
		query += ` WHERE workflow_id = ?`
		args = append(args, workflowID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []sceneRow
	if err := s.db.SelectContext(ctx, &rows, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}

	scenes := make([]domain.Scene, 0, len(rows))
	for _, row := range rows {
		scene, err := row.toDomain()
		if err != nil {
			s.logger.Warn("Skipping scene with unreadable data",
				slog.String("scene_id", row.ID),
				slog.Any("error", err),
			)
			continue
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

// UpdateScene applies the set fields
func (s *Storage) UpdateScene(ctx context.Context, id string, update SceneUpdate) (*domain.Scene, error) {
	if _, err := s.GetScene(ctx, id); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if update.Name != nil {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE scenes SET name = ? WHERE id = ?`), *update.Name, id); err != nil {
				return fmt.Errorf("failed to update scene name: %w", err)
			}
		}
		if update.Data != nil {
			data, err := encodeJSON(update.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal scene data: %w", err)
			}
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE scenes SET data = ? WHERE id = ?`), data, id); err != nil {
				return fmt.Errorf("failed to update scene data: %w", err)
			}
		}
		if update.Thumbnail != nil {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE scenes SET thumbnail = ? WHERE id = ?`), nullString(*update.Thumbnail), id); err != nil {
				return fmt.Errorf("failed to update scene thumbnail: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetScene(ctx, id)
}

// UpdateSceneThumbnail sets the preview shown for a scene
func (s *Storage) UpdateSceneThumbnail(ctx context.Context, id, thumbnail string) error {
	if err := s.execOne(ctx, domain.ErrSceneNotFound, `UPDATE scenes SET thumbnail = ? WHERE id = ?`, nullString(thumbnail), id); err != nil {
		if err == domain.ErrSceneNotFound {
			return err
		}
		return fmt.Errorf("failed to update scene thumbnail: %w", err)
	}
	return nil
}

// DeleteScene removes a scene; jobs keep running with scene_id cleared
func (s *Storage) DeleteScene(ctx context.Context, id string) error {
	if err := s.execOne(ctx, domain.ErrSceneNotFound, `DELETE FROM scenes WHERE id = ?`, id); err != nil {
		if err == domain.ErrSceneNotFound {
			return err
		}
		return fmt.Errorf("failed to delete scene: %w", err)
	}
	return nil
}
