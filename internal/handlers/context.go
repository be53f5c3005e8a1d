package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/internal/middleware"
	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// feedFor resolves the per-user engine for the current request. A missing
// user id or a factory failure writes the error response and returns false.
func feedFor(c *gin.Context, manager *engine.Manager) (*engine.Service, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return nil, false
	}

	svc, err := manager.Get(userID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return svc, true
}
