package client

import (
	"context"
	"sync"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
)

// fakeBridge records generation and completion calls and serves settings from memory
type fakeBridge struct {
	mu sync.Mutex

	generations []dto.GenerationRequest
	completions []dto.CompleteRequest
	settings    map[string]string
	jobs        []domain.Job
	scenes      []domain.Scene

	submitErr   error
	completeErr error
	completion  string
}

var _ Bridge = (*fakeBridge)(nil)

func newFakeBridge() *fakeBridge {
	return &fakeBridge{settings: map[string]string{}}
}

func (f *fakeBridge) CreateJob(_ context.Context, req dto.CreateJobRequest) (*domain.Job, error) {
	return &domain.Job{ID: "job-new", WorkflowID: req.WorkflowID, Data: req.Data, Status: domain.JobStatusPending}, nil
}

func (f *fakeBridge) ListJobs(context.Context, string) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs, nil
}

func (f *fakeBridge) DeleteJob(context.Context, string) error { return nil }

func (f *fakeBridge) SubmitGeneration(_ context.Context, req dto.GenerationRequest) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generations = append(f.generations, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.Job{
		ID:         "job-" + req.Model,
		WorkflowID: req.WorkflowID,
		Type:       domain.JobTypeGeneration,
		Status:     domain.JobStatusPending,
		Data: domain.JobData{
			Provider:   req.Provider,
			Model:      req.Model,
			Prompt:     req.Prompt,
			Parameters: req.Parameters,
			Metadata:   req.Metadata,
		},
	}, nil
}

func (f *fakeBridge) CreateScene(_ context.Context, req dto.CreateSceneRequest) (*domain.Scene, error) {
	return &domain.Scene{ID: "scene-new", WorkflowID: req.WorkflowID, Name: req.Name, Data: req.Data}, nil
}

func (f *fakeBridge) ListScenes(context.Context, string) ([]domain.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scenes, nil
}

func (f *fakeBridge) DeleteScene(context.Context, string) error { return nil }

func (f *fakeBridge) ListWorkflows(context.Context) ([]domain.Workflow, error) { return nil, nil }

func (f *fakeBridge) CreateWorkflow(_ context.Context, name, workflowType string) (*domain.Workflow, error) {
	return &domain.Workflow{ID: "wf-new", Name: name, Type: workflowType}, nil
}

func (f *fakeBridge) ConfigureProvider(context.Context, string, string) error      { return nil }
func (f *fakeBridge) ConfigureLocalProvider(context.Context, string, string) error { return nil }

func (f *fakeBridge) Complete(_ context.Context, req dto.CompleteRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, req)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completion, nil
}

func (f *fakeBridge) AssetURL(path string) string { return "asset://" + path }

func (f *fakeBridge) OpenPath(context.Context, string, string) error { return nil }

func (f *fakeBridge) CheckPort(context.Context, string, int) (bool, error) { return true, nil }

func (f *fakeBridge) GetSetting(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.settings[key]
	return v, ok, nil
}

func (f *fakeBridge) SetSetting(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}
