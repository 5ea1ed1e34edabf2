package domain

import (
	"encoding/json"
	"time"
)

// RecordMetadata carries the user annotations and the relationship fields
// shared by jobs and scenes.
type RecordMetadata struct {
	Tags          []string `json:"tags,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	VariationOf   string   `json:"variationOf,omitempty"`
	SequenceID    string   `json:"sequenceId,omitempty"`
	SequenceOrder int      `json:"sequenceOrder,omitempty"`
	SequenceName  string   `json:"sequenceName,omitempty"`
}

// Record is anything relationship views can be derived for.
type Record interface {
	RecordID() string
	Meta() RecordMetadata
}

// Scene is a saved prompt snapshot, optionally bound to one or more jobs.
type Scene struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Name       string    `json:"name"`
	Data       SceneData `json:"data"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SceneData is the JSON document stored with a scene
type SceneData struct {
	Category string         `json:"category"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model"`
	Prompt   PromptSnapshot `json:"prompt"`
	Metadata RecordMetadata `json:"metadata"`
	JobIDs   []string       `json:"jobIds,omitempty"`
	Outputs  []SceneOutput  `json:"outputs,omitempty"`
}

// PromptSnapshot freezes a prompt slot at save time
type PromptSnapshot struct {
	Main      string           `json:"main"`
	Negative  string           `json:"negative,omitempty"`
	Modifiers []string         `json:"modifiers,omitempty"`
	Nodes     []map[string]any `json:"nodes,omitempty"`
	Params    map[string]any   `json:"params,omitempty"`
}

// SceneOutput is one generated asset of a multi-output scene
type SceneOutput struct {
	JobID  string `json:"jobId"`
	Model  string `json:"model,omitempty"`
	URL    string `json:"url,omitempty"`
	Data   string `json:"data,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// RecordID implements Record
func (s Scene) RecordID() string { return s.ID }

// Meta implements Record
func (s Scene) Meta() RecordMetadata { return s.Data.Metadata }

// Workflow groups scenes and jobs; data is opaque to the backend
type Workflow struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WorkflowVersion is a numbered snapshot of a workflow's data
type WorkflowVersion struct {
	ID         int64           `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Version    int             `json:"version"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
}
