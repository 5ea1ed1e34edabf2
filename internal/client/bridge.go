// Package client is the front-end core that drives the bridge server: job
// polling, relationship views, prompt slots, submission and error messages.
package client

import (
	"context"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
)

// Bridge is the set of commands the client issues against the backend
type Bridge interface {
	CreateJob(ctx context.Context, req dto.CreateJobRequest) (*domain.Job, error)
	ListJobs(ctx context.Context, workflowID string) ([]domain.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	SubmitGeneration(ctx context.Context, req dto.GenerationRequest) (*domain.Job, error)

	CreateScene(ctx context.Context, req dto.CreateSceneRequest) (*domain.Scene, error)
	ListScenes(ctx context.Context, workflowID string) ([]domain.Scene, error)
	DeleteScene(ctx context.Context, sceneID string) error

	ListWorkflows(ctx context.Context) ([]domain.Workflow, error)
	CreateWorkflow(ctx context.Context, name, workflowType string) (*domain.Workflow, error)

	ConfigureProvider(ctx context.Context, provider, apiKey string) error
	ConfigureLocalProvider(ctx context.Context, provider, apiURL string) error
	Complete(ctx context.Context, req dto.CompleteRequest) (string, error)

	// AssetURL turns a local file path into a URL the backend serves
	AssetURL(path string) string
	// OpenPath opens path with the default handler, or app when set
	OpenPath(ctx context.Context, path, app string) error
	CheckPort(ctx context.Context, host string, port int) (bool, error)

	// GetSetting reports false when the key was never written
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}
