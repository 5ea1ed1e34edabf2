package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/storage"
)

// SettingsHandler handles key-value settings
type SettingsHandler struct {
	base
	storage *storage.Storage
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(deps *Dependencies) *SettingsHandler {
	return &SettingsHandler{
		base:    base{logger: deps.Logger},
		storage: deps.Storage,
	}
}

// ListSettings handles GET /api/v1/settings
func (h *SettingsHandler) ListSettings(c *gin.Context) {
	settings, err := h.storage.ListSettings(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "list settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// GetSetting handles GET /api/v1/settings/:key
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	value, err := h.storage.GetSetting(c.Request.Context(), key)
	if err != nil {
		h.storeError(c, err, "get setting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// SetSetting handles PUT /api/v1/settings/:key
func (h *SettingsHandler) SetSetting(c *gin.Context) {
	key := c.Param("key")

	var req dto.SetSettingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.storage.SetSetting(c.Request.Context(), key, *req.Value); err != nil {
		h.storeError(c, err, "save setting")
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": *req.Value})
}
