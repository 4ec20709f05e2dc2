package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/godigest/internal/dedup"
	"github.com/jonesrussell/godigest/internal/logger"
	"github.com/jonesrussell/godigest/internal/models"
	"github.com/jonesrussell/godigest/internal/repository"
	"github.com/jonesrussell/godigest/internal/scheduler"
	"github.com/jonesrussell/godigest/internal/sources"
)

const defaultMetricsDays = 30

// Handler carries the dependencies for the operator endpoints.
type Handler struct {
	scheduler *scheduler.Scheduler
	manager   *sources.Manager
	dedup     *dedup.Deduplicator
	metrics   *repository.MetricsRepository
	logger    logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	sched *scheduler.Scheduler,
	manager *sources.Manager,
	deduplicator *dedup.Deduplicator,
	metrics *repository.MetricsRepository,
	log logger.Logger,
) *Handler {
	return &Handler{
		scheduler: sched,
		manager:   manager,
		dedup:     deduplicator,
		metrics:   metrics,
		logger:    log,
	}
}

type crawlRequest struct {
	SourceTypes []models.SourceType `json:"source_types,omitempty"`
	SourceIDs   []string            `json:"source_ids,omitempty"`
}

// TriggerCrawl starts a manual crawl run over an explicit selection.
func (h *Handler) TriggerCrawl(c *gin.Context) {
	var req crawlRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	for _, t := range req.SourceTypes {
		if !t.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown source type", "type": t})
			return
		}
	}

	summary, ok, msg := h.scheduler.RunManualCrawl(c.Request.Context(), req.SourceTypes, req.SourceIDs)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": msg})
		return
	}

	h.logger.Info("Manual crawl completed",
		logger.String("run_id", summary.RunID.String()),
		logger.Int("stored", summary.Stored),
	)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": msg,
		"summary": summary,
	})
}

// ListSources returns all sources with their fetch state.
func (h *Handler) ListSources(c *gin.Context) {
	list, err := h.manager.LoadActiveSources(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": list,
		"count":   len(list),
	})
}

// SourceMetrics returns a source's recent daily counters.
func (h *Handler) SourceMetrics(c *gin.Context) {
	id := c.Param("id")

	days := defaultMetricsDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
			return
		}
		days = parsed
	}

	metrics, err := h.metrics.ForSource(c.Request.Context(), id, days)
	if err != nil {
		h.logger.Error("Failed to load source metrics",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"source_id": id, "metrics": metrics})
}

// DuplicateReport returns duplicate log entries grouped by fingerprint.
func (h *Handler) DuplicateReport(c *gin.Context) {
	filter := repository.ReportFilter{
		PendingOnly: c.Query("pending") == "true",
		Fingerprint: c.Query("fingerprint"),
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		filter.Limit = parsed
	}

	groups, err := h.dedup.GenerateReport(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to generate duplicate report", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups, "count": len(groups)})
}

// DuplicateCandidates returns stored items whose titles share significant
// terms with the given title. This is the review surface for near-duplicates
// that exact fingerprint matching cannot catch.
func (h *Handler) DuplicateCandidates(c *gin.Context) {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing title parameter"})
		return
	}

	item := &models.Item{
		Title: title,
		Type:  models.ContentType(c.Query("type")),
	}

	candidates, err := h.dedup.FindPotentialDuplicates(c.Request.Context(), item)
	if err != nil {
		h.logger.Error("Failed to find duplicate candidates",
			logger.String("title", title),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to find candidates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}

type resolveRequest struct {
	Resolution models.DuplicateResolution `json:"resolution"`
}

// ResolveDuplicate sets a pending duplicate log entry's resolution.
func (h *Handler) ResolveDuplicate(c *gin.Context) {
	id := c.Param("id")

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.dedup.ResolveDuplicate(c.Request.Context(), id, req.Resolution)
	switch {
	case errors.Is(err, dedup.ErrInvalidResolution):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown resolution", "resolution": req.Resolution})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No pending duplicate entry"})
	case err != nil:
		h.logger.Error("Failed to resolve duplicate",
			logger.String("log_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve duplicate"})
	default:
		c.JSON(http.StatusOK, gin.H{"resolved": true, "id": id})
	}
}
