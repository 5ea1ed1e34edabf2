package dto

import (
	"encoding/json"

	"github.com/cuongbtq/promptcraft/internal/domain"
)

type CreateWorkflowRequest struct {
	Name string          `json:"name" binding:"required"`
	Type string          `json:"type" binding:"required"`
	Data json.RawMessage `json:"data"`
}

type UpdateWorkflowRequest struct {
	Name *string         `json:"name"`
	Data json.RawMessage `json:"data"`
}

type CreateVersionRequest struct {
	Data json.RawMessage `json:"data" binding:"required"`
}

type CreateSceneRequest struct {
	WorkflowID string           `json:"workflow_id" binding:"required"`
	Name       string           `json:"name" binding:"required"`
	Data       domain.SceneData `json:"data"`
	Thumbnail  string           `json:"thumbnail"`
}

type UpdateSceneRequest struct {
	Name      *string           `json:"name"`
	Data      *domain.SceneData `json:"data"`
	Thumbnail *string           `json:"thumbnail"`
}
