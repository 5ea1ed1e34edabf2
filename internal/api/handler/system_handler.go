package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/promptcraft/internal/api/dto"
)

const portCheckTimeout = time.Second

// SystemHandler handles desktop integration: port probes, opening paths and
// serving local files as assets.
type SystemHandler struct {
	base
	opener Opener
}

// NewSystemHandler creates a new SystemHandler instance
func NewSystemHandler(deps *Dependencies) *SystemHandler {
	return &SystemHandler{
		base:   base{logger: deps.Logger},
		opener: deps.Opener,
	}
}

// CheckPort handles GET /api/v1/system/port?host=&port=
// Reports whether something accepts TCP connections there, e.g. a local ComfyUI.
func (h *SystemHandler) CheckPort(c *gin.Context) {
	var req dto.CheckPortRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "port must be between 1 and 65535")
		return
	}
	if req.Host == "" {
		req.Host = "127.0.0.1"
	}

	open := checkPort(c.Request.Context(), req.Host, req.Port)
	c.JSON(http.StatusOK, gin.H{"host": req.Host, "port": req.Port, "open": open})
}

func checkPort(ctx context.Context, host string, port int) bool {
	dialer := net.Dialer{Timeout: portCheckTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// OpenPath handles POST /api/v1/system/open
func (h *SystemHandler) OpenPath(c *gin.Context) {
	var req dto.OpenPathRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if h.opener == nil {
		respondError(c, http.StatusNotImplemented, "opening paths is not supported here")
		return
	}

	if err := h.opener.Open(c.Request.Context(), req.Path, req.App); err != nil {
		h.logger.Error("Failed to open path",
			slog.String("path", req.Path),
			slog.String("app", req.App),
			slog.String("error", err.Error()),
		)
		respondError(c, http.StatusInternalServerError, "Failed to open path: "+err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// ServeAsset handles GET /api/v1/system/asset?path=
// Streams an absolute local file so clients can display generated media.
func (h *SystemHandler) ServeAsset(c *gin.Context) {
	path := c.Query("path")
	if path == "" || !filepath.IsAbs(path) {
		respondError(c, http.StatusBadRequest, "path must be absolute")
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		respondError(c, http.StatusNotFound, "file not found")
		return
	}

	c.File(filepath.Clean(path))
}
