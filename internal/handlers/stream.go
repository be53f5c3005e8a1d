package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/internal/middleware"
	"github.com/pulsemetrics/pulseboard/internal/realtime"
	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// StreamHandler upgrades clients to the realtime feed stream.
type StreamHandler struct {
	manager *engine.Manager
	hub     *realtime.Hub
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(manager *engine.Manager, hub *realtime.Hub) *StreamHandler {
	return &StreamHandler{manager: manager, hub: hub}
}

// Serve upgrades the connection and blocks until the client disconnects.
// Resolving the feed first guarantees the engine (and its hub bridge) exists
// before the first push.
func (h *StreamHandler) Serve(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	if _, err := h.manager.Get(userID); err != nil {
		response.Error(c, err)
		return
	}

	h.hub.Serve(userID, c.Writer, c.Request)
}
