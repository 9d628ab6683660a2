package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/archive"
	"github.com/prometheus88/Simple-PFT-Node/internal/cache"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// StatusSource provides a live snapshot of the node's operation. The monitor
// loop implements it; the standalone API server runs without one and falls
// back to the cached status.
type StatusSource interface {
	Status() *models.NodeStatus
}

// Analyzer runs ad-hoc memo analysis for the /v1/analyze endpoint.
type Analyzer interface {
	Analyze(ctx context.Context, memo string) *models.AnalysisResult
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Status   StatusSource        // Live monitor snapshot (optional)
	Cache    *cache.Cache        // Redis-backed recent responses and cached status (optional)
	Archive  *archive.Archive    // ClickHouse response archive (optional)
	Analyzer Analyzer            // Analysis backend for ad-hoc requests (optional)
	Metrics  prometheus.Gatherer // Registry served at /metrics (optional)
	DevMode  bool                // Enable detailed error responses in development
	Logger   *logrus.Logger      // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// NodeStatus returns the node's operational snapshot. A live monitor wins;
// otherwise the status the monitor last wrote to the cache is served.
func (h *Handlers) NodeStatus(c echo.Context) error {
	if h.Status != nil {
		return c.JSON(http.StatusOK, h.Status.Status())
	}

	if h.Cache != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		status, err := h.Cache.GetNodeStatus(ctx)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to get status", nil)
		}
		if status != nil {
			return c.JSON(http.StatusOK, status)
		}
	}

	return h.err(c, http.StatusServiceUnavailable, "status not available", nil)
}

// RecentResponses returns the most recently sent replies with an optional
// limit parameter (default: 100, range: 1-200). The Redis cache serves live
// deployments; the ClickHouse archive answers when no cache is configured.
func (h *Handlers) RecentResponses(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if h.Cache != nil {
		items, err := h.Cache.GetRecentResponses(ctx, limit)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to get responses", nil)
		}
		return c.JSON(http.StatusOK, map[string]any{"items": items})
	}

	if h.Archive != nil {
		items, err := h.Archive.RecentResponses(ctx, limit)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to get responses", nil)
		}
		return c.JSON(http.StatusOK, map[string]any{"items": items})
	}

	return h.err(c, http.StatusServiceUnavailable, "no response store configured", nil)
}

// Analyze runs a memo through the analysis backend without sending a reply,
// for testing prompts against the live model.
func (h *Handlers) Analyze(c echo.Context) error {
	if h.Analyzer == nil {
		return h.err(c, http.StatusBadRequest, "analysis is not configured", nil)
	}

	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Memo = strings.TrimSpace(req.Memo)
	if req.Memo == "" {
		return h.err(c, http.StatusBadRequest, "memo is required", map[string]any{"memo": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()
	result := h.Analyzer.Analyze(ctx, req.Memo)
	if !result.OK {
		return h.err(c, http.StatusBadGateway, "analysis failed", nil)
	}

	return c.JSON(http.StatusOK, AnalyzeResponse{
		Analysis: result.Text,
		Model:    result.Model,
		TookMs:   time.Since(start).Milliseconds(),
	})
}
