package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/promptcraft/internal/domain"
	"github.com/cuongbtq/promptcraft/internal/generation"
	"github.com/cuongbtq/promptcraft/internal/storage"
)

// Publisher enqueues submitted job ids for the processor
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Opener hands a local path to the desktop, optionally to a named application
type Opener interface {
	Open(ctx context.Context, path, app string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Storage   *storage.Storage
	Providers *generation.Service
	// Publisher is nil when the queue is disabled; the processor then polls
	Publisher Publisher
	Opener    Opener
}

type base struct {
	logger *slog.Logger
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// storeError maps storage sentinels onto 404/400 and anything else onto 500
func (b base) storeError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrSceneNotFound),
		errors.Is(err, domain.ErrWorkflowNotFound),
		errors.Is(err, domain.ErrSettingNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		b.logger.Error("Failed to "+action,
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "Failed to "+action)
	}
}

// idParam reads a UUID path parameter, answering 400 when malformed
func (b base) idParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		b.logger.Warn("Invalid id format",
			slog.String("param", name),
			slog.String("value", id),
		)
		respondError(c, http.StatusBadRequest, name+" must be a valid UUID")
		return "", false
	}
	return id, true
}

// bindJSON decodes the body, answering 400 on failure
func (b base) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		b.logger.Warn("Invalid request body",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
