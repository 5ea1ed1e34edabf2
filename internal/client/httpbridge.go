package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
)

const listPageSize = 100

// APIError is a non-2xx answer from the bridge server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// NotFound reports whether err is a 404 from the bridge server
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// HTTPBridge implements Bridge against the bridge server's REST API
type HTTPBridge struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// HTTPOption customises an HTTPBridge
type HTTPOption func(*HTTPBridge)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(b *HTTPBridge) {
		if client != nil {
			b.client = client
		}
	}
}

// WithLogger sets the bridge logger
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(b *HTTPBridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewHTTPBridge creates a bridge talking to the server at baseURL
func NewHTTPBridge(baseURL string, opts ...HTTPOption) *HTTPBridge {
	b := &HTTPBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		// no client timeout: callers bound each call with their ctx
		client: &http.Client{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *HTTPBridge) CreateJob(ctx context.Context, req dto.CreateJobRequest) (*domain.Job, error) {
	var job domain.Job
	if err := b.do(ctx, http.MethodPost, "/api/v1/jobs", nil, req, &job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &job, nil
}

// ListJobs follows the cursor until every job of the workflow is loaded
func (b *HTTPBridge) ListJobs(ctx context.Context, workflowID string) ([]domain.Job, error) {
	var jobs []domain.Job
	cursor := ""
	for {
		query := url.Values{"page_size": {strconv.Itoa(listPageSize)}}
		if workflowID != "" {
			query.Set("workflow_id", workflowID)
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var page dto.ListJobsResponse
		if err := b.do(ctx, http.MethodGet, "/api/v1/jobs", query, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}
		jobs = append(jobs, page.Jobs...)

		if page.NextCursor == "" {
			return jobs, nil
		}
		cursor = page.NextCursor
	}
}

func (b *HTTPBridge) DeleteJob(ctx context.Context, jobID string) error {
	if err := b.do(ctx, http.MethodDelete, "/api/v1/jobs/"+url.PathEscape(jobID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (b *HTTPBridge) SubmitGeneration(ctx context.Context, req dto.GenerationRequest) (*domain.Job, error) {
	var job domain.Job
	if err := b.do(ctx, http.MethodPost, "/api/v1/generations", nil, req, &job); err != nil {
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}
	return &job, nil
}

func (b *HTTPBridge) CreateScene(ctx context.Context, req dto.CreateSceneRequest) (*domain.Scene, error) {
	var scene domain.Scene
	if err := b.do(ctx, http.MethodPost, "/api/v1/scenes", nil, req, &scene); err != nil {
		return nil, fmt.Errorf("failed to create scene: %w", err)
	}
	return &scene, nil
}

func (b *HTTPBridge) ListScenes(ctx context.Context, workflowID string) ([]domain.Scene, error) {
	query := url.Values{}
	if workflowID != "" {
		query.Set("workflow_id", workflowID)
	}

	var scenes []domain.Scene
	if err := b.do(ctx, http.MethodGet, "/api/v1/scenes", query, nil, &scenes); err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	return scenes, nil
}

func (b *HTTPBridge) DeleteScene(ctx context.Context, sceneID string) error {
	if err := b.do(ctx, http.MethodDelete, "/api/v1/scenes/"+url.PathEscape(sceneID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}
	return nil
}

func (b *HTTPBridge) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	var workflows []domain.Workflow
	if err := b.do(ctx, http.MethodGet, "/api/v1/workflows", nil, nil, &workflows); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	return workflows, nil
}

func (b *HTTPBridge) CreateWorkflow(ctx context.Context, name, workflowType string) (*domain.Workflow, error) {
	var workflow domain.Workflow
	req := dto.CreateWorkflowRequest{Name: name, Type: workflowType}
	if err := b.do(ctx, http.MethodPost, "/api/v1/workflows", nil, req, &workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	return &workflow, nil
}

func (b *HTTPBridge) ConfigureProvider(ctx context.Context, provider, apiKey string) error {
	req := dto.ConfigureProviderRequest{Provider: provider, APIKey: apiKey}
	if err := b.do(ctx, http.MethodPost, "/api/v1/providers/configure", nil, req, nil); err != nil {
		return fmt.Errorf("failed to configure %s: %w", provider, err)
	}
	return nil
}

func (b *HTTPBridge) ConfigureLocalProvider(ctx context.Context, provider, apiURL string) error {
	req := dto.ConfigureLocalProviderRequest{Provider: provider, APIURL: apiURL}
	if err := b.do(ctx, http.MethodPost, "/api/v1/providers/local", nil, req, nil); err != nil {
		return fmt.Errorf("failed to configure %s: %w", provider, err)
	}
	return nil
}

func (b *HTTPBridge) Complete(ctx context.Context, req dto.CompleteRequest) (string, error) {
	var resp dto.CompleteResponse
	if err := b.do(ctx, http.MethodPost, "/api/v1/ai/complete", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (b *HTTPBridge) AssetURL(path string) string {
	return b.baseURL + "/api/v1/system/asset?" + url.Values{"path": {path}}.Encode()
}

func (b *HTTPBridge) OpenPath(ctx context.Context, path, app string) error {
	req := dto.OpenPathRequest{Path: path, App: app}
	if err := b.do(ctx, http.MethodPost, "/api/v1/system/open", nil, req, nil); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}

func (b *HTTPBridge) CheckPort(ctx context.Context, host string, port int) (bool, error) {
	query := url.Values{"port": {strconv.Itoa(port)}}
	if host != "" {
		query.Set("host", host)
	}

	var resp struct {
		Open bool `json:"open"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/v1/system/port", query, nil, &resp); err != nil {
		return false, fmt.Errorf("failed to check port: %w", err)
	}
	return resp.Open, nil
}

func (b *HTTPBridge) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var resp struct {
		Value string `json:"value"`
	}
	err := b.do(ctx, http.MethodGet, "/api/v1/settings/"+url.PathEscape(key), nil, nil, &resp)
	if NotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return resp.Value, true, nil
}

func (b *HTTPBridge) SetSetting(ctx context.Context, key, value string) error {
	req := dto.SetSettingRequest{Value: &value}
	if err := b.do(ctx, http.MethodPut, "/api/v1/settings/"+url.PathEscape(key), nil, req, nil); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// do sends body as JSON and decodes the answer into out. Error bodies become *APIError.
func (b *HTTPBridge) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := b.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		b.logger.Debug("Bridge request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
