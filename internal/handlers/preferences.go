package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// PreferenceHandler exposes HTTP endpoints for notification preferences.
type PreferenceHandler struct {
	manager *engine.Manager
}

// NewPreferenceHandler constructs a preference handler.
func NewPreferenceHandler(manager *engine.Manager) *PreferenceHandler {
	return &PreferenceHandler{manager: manager}
}

// Get returns the current preference set.
func (h *PreferenceHandler) Get(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, svc.Preferences())
}

// Update applies a partial preference update. Nested keys merge; a failed
// validation leaves the stored preferences untouched.
func (h *PreferenceHandler) Update(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	var patch engine.PreferencesPatch
	if !bindAndValidate(c, &patch) {
		return
	}

	prefs, err := svc.UpdatePreferences(patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, prefs)
}
