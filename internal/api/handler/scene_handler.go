package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/storage"
)

// SceneHandler handles scene requests
type SceneHandler struct {
	base
	storage *storage.Storage
}

// NewSceneHandler creates a new SceneHandler instance
func NewSceneHandler(deps *Dependencies) *SceneHandler {
	return &SceneHandler{
		base:    base{logger: deps.Logger},
		storage: deps.Storage,
	}
}

// CreateScene handles POST /api/v1/scenes
func (h *SceneHandler) CreateScene(c *gin.Context) {
	var req dto.CreateSceneRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.storage.GetWorkflow(ctx, req.WorkflowID); err != nil {
		h.storeError(c, err, "create scene")
		return
	}

	scene := &domain.Scene{
		WorkflowID: req.WorkflowID,
		Name:       req.Name,
		Data:       req.Data,
		Thumbnail:  req.Thumbnail,
	}
	if err := h.storage.CreateScene(ctx, scene); err != nil {
		h.storeError(c, err, "create scene")
		return
	}

	h.logger.Info("Scene created",
		slog.String("scene_id", scene.ID),
		slog.String("workflow_id", scene.WorkflowID),
		slog.Int("outputs", len(scene.Data.Outputs)),
	)
	c.JSON(http.StatusCreated, scene)
}

// ListScenes handles GET /api/v1/scenes
// Without workflow_id every scene is listed.
func (h *SceneHandler) ListScenes(c *gin.Context) {
	scenes, err := h.storage.ListScenes(c.Request.Context(), c.Query("workflow_id"))
	if err != nil {
		h.storeError(c, err, "list scenes")
		return
	}
	c.JSON(http.StatusOK, scenes)
}

// GetScene handles GET /api/v1/scenes/:scene_id
func (h *SceneHandler) GetScene(c *gin.Context) {
	id, ok := h.idParam(c, "scene_id")
	if !ok {
		return
	}

	scene, err := h.storage.GetScene(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "get scene")
		return
	}
	c.JSON(http.StatusOK, scene)
}

// UpdateScene handles PATCH /api/v1/scenes/:scene_id
func (h *SceneHandler) UpdateScene(c *gin.Context) {
	id, ok := h.idParam(c, "scene_id")
	if !ok {
		return
	}

	var req dto.UpdateSceneRequest
	if !h.bindJSON(c, &req) {
		return
	}

	scene, err := h.storage.UpdateScene(c.Request.Context(), id, storage.SceneUpdate{
		Name:      req.Name,
		Data:      req.Data,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		h.storeError(c, err, "update scene")
		return
	}
	c.JSON(http.StatusOK, scene)
}

// DeleteScene handles DELETE /api/v1/scenes/:scene_id
func (h *SceneHandler) DeleteScene(c *gin.Context) {
	id, ok := h.idParam(c, "scene_id")
	if !ok {
		return
	}

	if err := h.storage.DeleteScene(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "delete scene")
		return
	}

	h.logger.Info("Scene deleted",
		slog.String("scene_id", id),
	)
	c.Status(http.StatusNoContent)
}
