package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/api/handler"
	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
	"github.com/cuongbtq/promptcraft/internal/generation/providers"
	"github.com/cuongbtq/promptcraft/internal/storage"
	"github.com/cuongbtq/promptcraft/shared/database"
	"github.com/cuongbtq/promptcraft/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *fakePublisher) PublishJob(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, jobID)
	return nil
}

type fakeOpener struct {
	path, app string
	err       error
}

func (o *fakeOpener) Open(_ context.Context, path, app string) error {
	o.path, o.app = path, app
	return o.err
}

// textProvider answers completions with a fixed text
type textProvider struct {
	name string
	text string
}

func (p *textProvider) Name() string    { return p.name }
func (p *textProvider) Available() bool { return true }

func (p *textProvider) Generate(_ context.Context, req generation.Request) (*domain.JobResult, error) {
	if p.text == "" {
		return &domain.JobResult{}, nil
	}
	return &domain.JobResult{OutputData: p.text + ": " + req.Prompt}, nil
}

type testAPI struct {
	router    *gin.Engine
	db        *database.Client
	store     *storage.Storage
	providers *generation.Service
	publisher *fakePublisher
	opener    *fakeOpener
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log := logger.NewDiscard().Logger
	client, err := database.NewClient(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := storage.NewStorage(client.GetDB(), log)
	require.NoError(t, store.Migrate(context.Background()))

	svc := generation.NewService(log)
	providers.Register(svc, providers.Config{Logger: log})
	svc.Register(&textProvider{name: "anthropic", text: "enhanced"})
	svc.Register(&textProvider{name: "mute"})

	api := &testAPI{
		db:        client,
		store:     store,
		providers: svc,
		publisher: &fakePublisher{},
		opener:    &fakeOpener{},
	}
	api.router = SetupRouter(&handler.Dependencies{
		Logger:    log,
		Storage:   store,
		Providers: svc,
		Publisher: api.publisher,
		Opener:    api.opener,
	}, nil)
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createWorkflow(t *testing.T) domain.Workflow {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/workflows", dto.CreateWorkflowRequest{Name: "Storyboard", Type: "image"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Workflow](t, rec)
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	require.NoError(t, api.db.Close())
	rec = api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[map[string]string](t, rec)["status"])
}

func TestWorkflows(t *testing.T) {
	api := newTestAPI(t)
	wf := api.createWorkflow(t)
	assert.JSONEq(t, `{}`, string(wf.Data))

	rec := api.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"type": "image"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/workflows/"+wf.ID, map[string]any{"name": "Renamed", "data": map[string]any{"nodes": 3}})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[domain.Workflow](t, rec)
	assert.Equal(t, "Renamed", updated.Name)
	assert.JSONEq(t, `{"nodes":3}`, string(updated.Data))

	rec = api.do(t, http.MethodGet, "/api/v1/workflows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Workflow](t, rec), 1)

	for i := 0; i < 2; i++ {
		rec = api.do(t, http.MethodPost, "/api/v1/workflows/"+wf.ID+"/versions", map[string]any{"data": map[string]any{"step": i}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, i+1, decode[domain.WorkflowVersion](t, rec).Version)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/workflows/"+wf.ID+"/versions", nil)
	versions := decode[[]domain.WorkflowVersion](t, rec)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)

	rec = api.do(t, http.MethodDelete, "/api/v1/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/workflows/"+wf.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrWorkflowNotFound.Error(), errorBody(t, rec))

	rec = api.do(t, http.MethodGet, "/api/v1/workflows/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenes(t *testing.T) {
	api := newTestAPI(t)
	wf := api.createWorkflow(t)

	rec := api.do(t, http.MethodPost, "/api/v1/scenes", dto.CreateSceneRequest{WorkflowID: "00000000-0000-0000-0000-000000000000", Name: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/scenes", dto.CreateSceneRequest{
		WorkflowID: wf.ID,
		Name:       "Opening shot",
		Data: domain.SceneData{
			Category: domain.CategoryImage,
			Model:    "dall-e-3",
			Prompt:   domain.PromptSnapshot{Main: "a lighthouse"},
			Metadata: domain.RecordMetadata{SequenceID: "seq-1", SequenceOrder: 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	scene := decode[domain.Scene](t, rec)

	rec = api.do(t, http.MethodGet, "/api/v1/scenes?workflow_id="+wf.ID, nil)
	scenes := decode[[]domain.Scene](t, rec)
	require.Len(t, scenes, 1)
	assert.Equal(t, "seq-1", scenes[0].Data.Metadata.SequenceID)

	thumb := "https://img/1.png"
	rec = api.do(t, http.MethodPatch, "/api/v1/scenes/"+scene.ID, dto.UpdateSceneRequest{Thumbnail: &thumb})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, thumb, decode[domain.Scene](t, rec).Thumbnail)

	rec = api.do(t, http.MethodDelete, "/api/v1/scenes/"+scene.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/scenes/"+scene.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerations(t *testing.T) {
	api := newTestAPI(t)
	wf := api.createWorkflow(t)

	tests := []struct {
		name     string
		req      map[string]any
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown provider",
			req:      map[string]any{"workflow_id": wf.ID, "provider": "dalle", "prompt": "x"},
			wantCode: http.StatusBadRequest,
			wantErr:  "unknown provider: dalle",
		},
		{
			name:     "missing prompt",
			req:      map[string]any{"workflow_id": wf.ID, "provider": "openai"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown workflow",
			req:      map[string]any{"workflow_id": "00000000-0000-0000-0000-000000000000", "provider": "openai", "prompt": "x"},
			wantCode: http.StatusNotFound,
		},
		{
			name: "accepted",
			req: map[string]any{
				"workflow_id": wf.ID,
				"provider":    "openai",
				"model":       "dall-e-3",
				"category":    "image",
				"prompt":      "a lighthouse at dusk",
				"parameters":  map[string]any{"size": "1024x1792", "n": 1},
				"metadata":    map[string]any{"variationOf": "job-0"},
			},
			wantCode: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/generations", tt.req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorBody(t, rec))
			}
			if tt.wantCode != http.StatusCreated {
				return
			}

			job := decode[domain.Job](t, rec)
			assert.Equal(t, domain.JobStatusPending, job.Status)
			assert.Equal(t, domain.JobTypeGeneration, job.Type)
			assert.Equal(t, "job-0", job.Data.Metadata.VariationOf)
			assert.Equal(t, "1024x1792", job.Data.Parameters["size"])
			assert.Equal(t, []string{job.ID}, api.publisher.ids)
		})
	}
}

func TestGenerations_PublishFailure(t *testing.T) {
	api := newTestAPI(t)
	wf := api.createWorkflow(t)
	api.publisher.err = errors.New("channel closed")

	rec := api.do(t, http.MethodPost, "/api/v1/generations", map[string]any{"workflow_id": wf.ID, "provider": "openai", "prompt": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	jobs, err := api.store.ListJobs(context.Background(), storage.JobFilter{WorkflowID: wf.ID})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].Error, "channel closed")
}

func TestJobs_PaginationAndUpdates(t *testing.T) {
	api := newTestAPI(t)
	wf := api.createWorkflow(t)

	var created []domain.Job
	for i := 0; i < 5; i++ {
		rec := api.do(t, http.MethodPost, "/api/v1/jobs", dto.CreateJobRequest{
			WorkflowID: wf.ID,
			Data:       domain.JobData{Provider: "openai", Prompt: "prompt " + strconv.Itoa(i)},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created = append(created, decode[domain.Job](t, rec))
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		path := "/api/v1/jobs?page_size=2&workflow_id=" + wf.ID
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}
		rec := api.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decode[dto.ListJobsResponse](t, rec)
		pages++
		for _, job := range page.Jobs {
			assert.False(t, seen[job.ID], "job listed twice")
			seen[job.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)

	rec := api.do(t, http.MethodGet, "/api/v1/jobs?status=cancelled", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/jobs?cursor=not-a-cursor!", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	job := created[0]
	running := domain.JobStatusRunning
	rec = api.do(t, http.MethodPatch, "/api/v1/jobs/"+job.ID, dto.UpdateJobRequest{Status: &running})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[domain.Job](t, rec)
	require.NotNil(t, updated.StartedAt)
	assert.Nil(t, updated.CompletedAt)

	completed := domain.JobStatusCompleted
	rec = api.do(t, http.MethodPatch, "/api/v1/jobs/"+job.ID, dto.UpdateJobRequest{
		Status: &completed,
		Result: &domain.JobResult{OutputURL: "https://img/1.png"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated = decode[domain.Job](t, rec)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, "https://img/1.png", updated.Result.Output())

	bogus := "paused"
	rec = api.do(t, http.MethodPatch, "/api/v1/jobs/"+job.ID, dto.UpdateJobRequest{Status: &bogus})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/jobs?status=completed", nil)
	assert.Len(t, decode[dto.ListJobsResponse](t, rec).Jobs, 1)

	rec = api.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviders(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/providers/configure", dto.ConfigureProviderRequest{Provider: "openai", APIKey: "sk-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/providers/configure", dto.ConfigureProviderRequest{Provider: "stability", APIKey: "k"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/providers/local", dto.ConfigureLocalProviderRequest{Provider: "comfyui", APIURL: "http://127.0.0.1:8188"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/providers", nil)
	infos := decode[[]generation.ProviderInfo](t, rec)
	byName := map[string]generation.ProviderInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.True(t, byName["openai"].Available)
	assert.False(t, byName["google"].Available)
	assert.True(t, byName["comfyui"].Local)
	assert.False(t, byName["midjourney"].Available)
}

func TestComplete(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		req      dto.CompleteRequest
		wantCode int
		wantText string
		wantErr  string
	}{
		{
			name:     "text",
			req:      dto.CompleteRequest{Provider: "anthropic", Model: "claude-sonnet-4-5", Prompt: "a cat"},
			wantCode: http.StatusOK,
			wantText: "enhanced: a cat",
		},
		{
			name:     "no text",
			req:      dto.CompleteRequest{Provider: "mute", Prompt: "a cat"},
			wantCode: http.StatusBadGateway,
			wantErr:  "no text output received",
		},
		{
			name:     "not configured",
			req:      dto.CompleteRequest{Provider: "openai", Model: "gpt-4o", Prompt: "a cat"},
			wantCode: http.StatusBadGateway,
			wantErr:  "OpenAI API key not configured",
		},
		{
			name:     "unknown provider",
			req:      dto.CompleteRequest{Provider: "nobody", Prompt: "a cat"},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/ai/complete", tt.req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, decode[dto.CompleteResponse](t, rec).Text)
			}
			if tt.wantErr != "" {
				assert.Contains(t, errorBody(t, rec), tt.wantErr)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/settings/generation_mode", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/settings/generation_mode", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/settings/generation_mode", map[string]any{"value": "local"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/settings/generation_mode", nil)
	assert.Equal(t, "local", decode[map[string]string](t, rec)["value"])

	rec = api.do(t, http.MethodGet, "/api/v1/settings", nil)
	assert.Equal(t, map[string]string{"generation_mode": "local"}, decode[map[string]string](t, rec))
}

func TestSystem_CheckPort(t *testing.T) {
	api := newTestAPI(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	openPort := ln.Addr().(*net.TCPAddr).Port
	defer ln.Close()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	rec := api.do(t, http.MethodGet, "/api/v1/system/port?port="+strconv.Itoa(openPort), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["open"])

	rec = api.do(t, http.MethodGet, "/api/v1/system/port?host=127.0.0.1&port="+strconv.Itoa(closedPort), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["open"])

	rec = api.do(t, http.MethodGet, "/api/v1/system/port?port=70000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystem_OpenAndAsset(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/system/open", dto.OpenPathRequest{Path: "/tmp/out.png", App: "gimp"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/tmp/out.png", api.opener.path)
	assert.Equal(t, "gimp", api.opener.app)

	api.opener.err = errors.New("exec: not found")
	rec = api.do(t, http.MethodPost, "/api/v1/system/open", dto.OpenPathRequest{Path: "/tmp/out.png"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, []byte("PNGDATA"), 0o644))

	rec = api.do(t, http.MethodGet, "/api/v1/system/asset?path="+url.QueryEscape(path), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PNGDATA", rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/system/asset?path=relative.png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/system/asset?path="+url.QueryEscape(path+".missing"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	log := logger.NewDiscard().Logger
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:1420"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:1420")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:1420", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// an explicit wildcard is the only way to admit every origin
	r = gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	r = gin.New()
	r.Use(RecoveryMiddleware(log))
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestBrowserRequestGuards(t *testing.T) {
	const payload = `{"path":"/tmp/payload.sh","app":"sh"}`

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		headers     map[string]string
		wantStatus  int
	}{
		{
			name:        "foreign origin with text body",
			method:      http.MethodPost,
			path:        "/api/v1/system/open",
			body:        payload,
			contentType: "text/plain",
			headers:     map[string]string{"Origin": "http://evil.example"},
			wantStatus:  http.StatusForbidden,
		},
		{
			name:        "foreign origin with json body",
			method:      http.MethodPost,
			path:        "/api/v1/system/open",
			body:        payload,
			contentType: "application/json",
			headers:     map[string]string{"Origin": "http://evil.example"},
			wantStatus:  http.StatusForbidden,
		},
		{
			name:        "text body without origin",
			method:      http.MethodPost,
			path:        "/api/v1/system/open",
			body:        payload,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:        "form body without origin",
			method:      http.MethodPut,
			path:        "/api/v1/settings/openai_api_key",
			body:        "value=x",
			contentType: "application/x-www-form-urlencoded",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:       "foreign origin reading settings",
			method:     http.MethodGet,
			path:       "/api/v1/settings",
			headers:    map[string]string{"Origin": "http://evil.example"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "cross-site asset embed",
			method:     http.MethodGet,
			path:       "/api/v1/system/asset?path=%2Fetc%2Fpasswd",
			headers:    map[string]string{"Sec-Fetch-Site": "cross-site"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:        "same origin json",
			method:      http.MethodPost,
			path:        "/api/v1/system/open",
			body:        payload,
			contentType: "application/json; charset=utf-8",
			headers:     map[string]string{"Origin": "http://example.com"},
			wantStatus:  http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			api.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEqual(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantStatus != http.StatusNoContent {
				assert.Empty(t, api.opener.path, "opener must not run")
			}
		})
	}
}
