package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	apperrors "github.com/concoursapp/catalogsync/pkg/errors"
	"github.com/concoursapp/catalogsync/pkg/metrics"
)

// Handler wires the HTTP transport to the sync orchestrator.
type Handler struct {
	svc      catalog.Service
	counters *metrics.SyncCounters
	logger   *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc catalog.Service, counters *metrics.SyncCounters, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		counters: counters,
		logger:   logger.With("component", "http.handler"),
	}
}

// ListCategories serves the cached category list.
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.svc.Categories(c.Request.Context())
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "storage_error", errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListQuestions serves one category's questions with nested answers. A
// background category-scoped refresh is triggered by the orchestrator when
// connected; the response never waits on it.
func (h *Handler) ListQuestions(c *gin.Context) {
	categoryID := c.Param("id")
	questions, err := h.svc.QuestionsForCategory(c.Request.Context(), categoryID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "storage_error"
		if apperrors.IsCode(err, apperrors.CodeInvalidInput) {
			status = http.StatusBadRequest
			code = "invalid_request"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"categoryId": categoryID, "questions": questions})
}

// SyncStatus reports the orchestrator state plus refresh counters.
func (h *Handler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   h.svc.Status(),
		"counters": h.counters.Snapshot(),
	})
}

// TriggerRefresh requests a refresh. The orchestrator coalesces requests
// arriving while a fetch is in flight, so this is always safe to call.
func (h *Handler) TriggerRefresh(c *gin.Context) {
	status := h.svc.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"status": status})
}

// StreamUpdates pushes a Server-Sent Event for every published dataset so
// screens can re-render when a background refresh lands.
func (h *Handler) StreamUpdates(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events := make(chan catalog.Snapshot, 4)
	unsubscribe := h.svc.SubscribeUpdates(func(snapshot catalog.Snapshot) {
		select {
		case events <- snapshot:
		default:
			// Slow consumer; the next publish supersedes this one anyway.
		}
	})
	defer unsubscribe()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-events:
			payload, err := json.Marshal(snapshot)
			if err != nil {
				h.logger.Error("marshal snapshot failed", "error", err)
				continue
			}
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
