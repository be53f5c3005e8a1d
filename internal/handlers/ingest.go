package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// IngestHandler accepts metric sample batches from crawlers and exposes the
// manual trigger and digest flush endpoints.
type IngestHandler struct {
	manager *engine.Manager
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(manager *engine.Manager) *IngestHandler {
	return &IngestHandler{manager: manager}
}

// Ingest evaluates every active rule against the posted sample batch and
// returns the notifications that fired.
func (h *IngestHandler) Ingest(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	var body struct {
		Samples []engine.MetricSample `json:"samples" binding:"required"`
	}
	if !bindAndValidate(c, &body) {
		return
	}

	fired := svc.Ingest(c.Request.Context(), body.Samples)
	response.Success(c, http.StatusOK, gin.H{
		"fired":         fired,
		"evaluated":     len(body.Samples),
		"notifications": len(fired),
	})
}

// Trigger records an externally synthesized notification, routed exactly
// like a rule-fired one.
func (h *IngestHandler) Trigger(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	var candidate engine.Notification
	if !bindAndValidate(c, &candidate) {
		return
	}

	stored, err := svc.Trigger(c.Request.Context(), candidate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, stored)
}

// FlushDigests delivers the user's deferred notifications now instead of at
// the next scheduled digest tick.
func (h *IngestHandler) FlushDigests(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	flushed := svc.FlushDigests(c.Request.Context())
	response.Success(c, http.StatusOK, gin.H{
		"flushed": flushed,
		"pending": svc.PendingDigests(),
	})
}
