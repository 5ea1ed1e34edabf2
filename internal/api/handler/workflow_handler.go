package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/storage"
)

// WorkflowHandler handles workflow and workflow version requests
type WorkflowHandler struct {
	base
	storage *storage.Storage
}

// NewWorkflowHandler creates a new WorkflowHandler instance
func NewWorkflowHandler(deps *Dependencies) *WorkflowHandler {
	return &WorkflowHandler{
		base:    base{logger: deps.Logger},
		storage: deps.Storage,
	}
}

// CreateWorkflow handles POST /api/v1/workflows
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req dto.CreateWorkflowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	workflow := &domain.Workflow{Name: req.Name, Type: req.Type, Data: req.Data}
	if err := h.storage.CreateWorkflow(c.Request.Context(), workflow); err != nil {
		h.storeError(c, err, "create workflow")
		return
	}

	h.logger.Info("Workflow created",
		slog.String("workflow_id", workflow.ID),
		slog.String("name", workflow.Name),
	)
	c.JSON(http.StatusCreated, workflow)
}

// ListWorkflows handles GET /api/v1/workflows
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	workflows, err := h.storage.ListWorkflows(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "list workflows")
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// GetWorkflow handles GET /api/v1/workflows/:workflow_id
func (h *WorkflowHandler) GetWorkflow(c *gin.Context) {
	id, ok := h.idParam(c, "workflow_id")
	if !ok {
		return
	}

	workflow, err := h.storage.GetWorkflow(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "get workflow")
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// UpdateWorkflow handles PATCH /api/v1/workflows/:workflow_id
func (h *WorkflowHandler) UpdateWorkflow(c *gin.Context) {
	id, ok := h.idParam(c, "workflow_id")
	if !ok {
		return
	}

	var req dto.UpdateWorkflowRequest
	if !h.bindJSON(c, &req) {
		return
	}

	workflow, err := h.storage.UpdateWorkflow(c.Request.Context(), id, storage.WorkflowUpdate{
		Name: req.Name,
		Data: req.Data,
	})
	if err != nil {
		h.storeError(c, err, "update workflow")
		return
	}
	c.JSON(http.StatusOK, workflow)
}

// DeleteWorkflow handles DELETE /api/v1/workflows/:workflow_id
// Scenes, jobs and versions of the workflow go with it.
func (h *WorkflowHandler) DeleteWorkflow(c *gin.Context) {
	id, ok := h.idParam(c, "workflow_id")
	if !ok {
		return
	}

	if err := h.storage.DeleteWorkflow(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "delete workflow")
		return
	}

	h.logger.Info("Workflow deleted",
		slog.String("workflow_id", id),
	)
	c.Status(http.StatusNoContent)
}

// CreateVersion handles POST /api/v1/workflows/:workflow_id/versions
func (h *WorkflowHandler) CreateVersion(c *gin.Context) {
	id, ok := h.idParam(c, "workflow_id")
	if !ok {
		return
	}

	var req dto.CreateVersionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	version, err := h.storage.CreateWorkflowVersion(c.Request.Context(), id, req.Data)
	if err != nil {
		h.storeError(c, err, "create workflow version")
		return
	}
	c.JSON(http.StatusCreated, version)
}

// ListVersions handles GET /api/v1/workflows/:workflow_id/versions
func (h *WorkflowHandler) ListVersions(c *gin.Context) {
	id, ok := h.idParam(c, "workflow_id")
	if !ok {
		return
	}

	versions, err := h.storage.ListWorkflowVersions(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "list workflow versions")
		return
	}
	c.JSON(http.StatusOK, versions)
}
