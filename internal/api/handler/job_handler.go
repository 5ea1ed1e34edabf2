package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
	"github.com/cuongbtq/promptcraft/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// JobHandler handles job and generation HTTP requests
type JobHandler struct {
	base
	storage   *storage.Storage
	providers *generation.Service
	publisher Publisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		base:      base{logger: deps.Logger},
		storage:   deps.Storage,
		providers: deps.Providers,
		publisher: deps.Publisher,
	}
}

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if !h.bindJSON(c, &req) {
		return
	}

	job := &domain.Job{
		WorkflowID: req.WorkflowID,
		SceneID:    req.SceneID,
		Type:       req.Type,
		Data:       req.Data,
	}
	h.create(c, job)
}

// SubmitGeneration handles POST /api/v1/generations
// Stores the request as a pending generation job for the processor.
func (h *JobHandler) SubmitGeneration(c *gin.Context) {
	var req dto.GenerationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if _, ok := h.providers.Get(req.Provider); !ok {
		respondError(c, http.StatusBadRequest, "unknown provider: "+req.Provider)
		return
	}

	params := req.Parameters
	if params == nil {
		params = map[string]any{}
	}

	job := &domain.Job{
		WorkflowID: req.WorkflowID,
		SceneID:    req.SceneID,
		Type:       domain.JobTypeGeneration,
		Data: domain.JobData{
			Provider:       req.Provider,
			Model:          req.Model,
			Category:       req.Category,
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			Parameters:     params,
			Metadata:       req.Metadata,
		},
	}
	h.create(c, job)
}

func (h *JobHandler) create(c *gin.Context, job *domain.Job) {
	ctx := c.Request.Context()

	if _, err := h.storage.GetWorkflow(ctx, job.WorkflowID); err != nil {
		h.storeError(c, err, "create job")
		return
	}
	if job.SceneID != "" {
		if _, err := h.storage.GetScene(ctx, job.SceneID); err != nil {
			h.storeError(c, err, "create job")
			return
		}
	}

	if err := h.storage.CreateJob(ctx, job); err != nil {
		h.storeError(c, err, "create job")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishJob(ctx, job.ID); err != nil {
			h.logger.Error("Failed to publish job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			// nothing will pick it up
			if failErr := h.storage.FailJob(ctx, job.ID, "Failed to enqueue job: "+err.Error()); failErr != nil {
				h.logger.Error("Failed to mark unqueued job as failed",
					slog.String("job_id", job.ID),
					slog.String("error", failErr.Error()),
				)
			}
			respondError(c, http.StatusServiceUnavailable, "Failed to enqueue job")
			return
		}
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("workflow_id", job.WorkflowID),
		slog.String("provider", job.Data.Provider),
		slog.String("model", job.Data.Model),
	)

	c.JSON(http.StatusCreated, job)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.idParam(c, "job_id")
	if !ok {
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.storeError(c, err, "get job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first, filtered by workflow and/or status, with cursor pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if req.Status != "" && !domain.ValidJobStatus(req.Status) {
		respondError(c, http.StatusBadRequest, "Invalid status: "+req.Status)
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid cursor")
		return
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), storage.JobFilter{
		WorkflowID: req.WorkflowID,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	})
	if err != nil {
		h.storeError(c, err, "list jobs")
		return
	}

	// one extra row means there is another page
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}

// UpdateJob handles PATCH /api/v1/jobs/:job_id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, ok := h.idParam(c, "job_id")
	if !ok {
		return
	}

	var req dto.UpdateJobRequest
	if !h.bindJSON(c, &req) {
		return
	}

	job, err := h.storage.UpdateJob(c.Request.Context(), jobID, storage.JobUpdate{
		Status: req.Status,
		Result: req.Result,
		Error:  req.Error,
	})
	if err != nil {
		h.storeError(c, err, "update job")
		return
	}

	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.idParam(c, "job_id")
	if !ok {
		return
	}

	if err := h.storage.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.storeError(c, err, "delete job")
		return
	}

	h.logger.Info("Job deleted",
		slog.String("job_id", jobID),
	)
	c.Status(http.StatusNoContent)
}
