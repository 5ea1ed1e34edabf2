package dto

import "github.com/cuongbtq/promptcraft/internal/domain"

type CreateJobRequest struct {
	WorkflowID string         `json:"workflow_id" binding:"required"`
	SceneID    string         `json:"scene_id"`
	Type       string         `json:"type"`
	Data       domain.JobData `json:"data"`
}

type UpdateJobRequest struct {
	Status *string           `json:"status"`
	Result *domain.JobResult `json:"result"`
	Error  *string           `json:"error"`
}

type ListJobsRequest struct {
	WorkflowID string `form:"workflow_id"`
	Status     string `form:"status"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []domain.Job `json:"jobs"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// GenerationRequest submits a prompt to a provider as a new pending job
type GenerationRequest struct {
	WorkflowID     string                `json:"workflow_id" binding:"required"`
	SceneID        string                `json:"scene_id"`
	Provider       string                `json:"provider" binding:"required"`
	Model          string                `json:"model"`
	Category       string                `json:"category"`
	Prompt         string                `json:"prompt" binding:"required"`
	NegativePrompt string                `json:"negative_prompt"`
	Parameters     map[string]any        `json:"parameters"`
	Metadata       domain.RecordMetadata `json:"metadata"`
}
