package domain

import "time"

// Job status values
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobTypeGeneration is the only job type the processor executes
const JobTypeGeneration = "generation"

// Categories a prompt slot or job belongs to
const (
	CategoryImage = "image"
	CategoryVideo = "video"
)

// ValidJobStatus reports whether status belongs to the job lifecycle
func ValidJobStatus(status string) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Job is a generation request and its outcome. Only the processor mutates it;
// clients read snapshots.
type Job struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	SceneID     string     `json:"scene_id,omitempty"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Data        JobData    `json:"data"`
	Result      *JobResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobData is the submitted generation request
type JobData struct {
	Provider       string         `json:"provider"`
	Model          string         `json:"model"`
	Category       string         `json:"category,omitempty"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Metadata       RecordMetadata `json:"metadata"`
}

// JobResult is what a provider produced: a URL, inline data (usually base64), or both
type JobResult struct {
	OutputURL  string         `json:"output_url,omitempty"`
	OutputData string         `json:"output_data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Output returns the URL when present, the inline data otherwise
func (r *JobResult) Output() string {
	if r == nil {
		return ""
	}
	if r.OutputURL != "" {
		return r.OutputURL
	}
	return r.OutputData
}

// IsActive reports whether the job still has work outstanding
func (j Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// RecordID implements Record
func (j Job) RecordID() string { return j.ID }

// Meta implements Record
func (j Job) Meta() RecordMetadata { return j.Data.Metadata }

// JobMessage is a unit of work handed to the worker pool
type JobMessage struct {
	JobID string
	Ack   func() error
	Nack  func(requeue bool) error
}
