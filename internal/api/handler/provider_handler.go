package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
	"github.com/cuongbtq/promptcraft/internal/generation"
)

// ProviderHandler handles provider configuration and text completion requests
type ProviderHandler struct {
	base
	providers *generation.Service
}

// NewProviderHandler creates a new ProviderHandler instance
func NewProviderHandler(deps *Dependencies) *ProviderHandler {
	return &ProviderHandler{
		base:      base{logger: deps.Logger},
		providers: deps.Providers,
	}
}

// ListProviders handles GET /api/v1/providers
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, h.providers.Describe())
}

// ConfigureProvider handles POST /api/v1/providers/configure
// Replaces the cloud provider with one using the new API key.
func (h *ProviderHandler) ConfigureProvider(c *gin.Context) {
	var req dto.ConfigureProviderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.providers.Configure(req.Provider, req.APIKey); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": req.Provider, "configured": true})
}

// ConfigureLocalProvider handles POST /api/v1/providers/local
func (h *ProviderHandler) ConfigureLocalProvider(c *gin.Context) {
	var req dto.ConfigureLocalProviderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.providers.ConfigureLocal(req.Provider, req.APIURL); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": req.Provider, "configured": true})
}

// Complete handles POST /api/v1/ai/complete
// Provider failures come back as 502 with the provider's message so the
// client can classify them.
func (h *ProviderHandler) Complete(c *gin.Context) {
	var req dto.CompleteRequest
	if !h.bindJSON(c, &req) {
		return
	}

	text, err := h.providers.Complete(c.Request.Context(), req.Provider, generation.Completion{
		Model:       req.Model,
		Prompt:      req.Prompt,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		if errors.Is(err, generation.ErrProviderNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Warn("Text completion failed",
			slog.String("provider", req.Provider),
			slog.String("model", req.Model),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.CompleteResponse{Text: text})
}
