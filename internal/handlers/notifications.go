package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the notification feed.
type NotificationHandler struct {
	manager *engine.Manager
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(manager *engine.Manager) *NotificationHandler {
	return &NotificationHandler{manager: manager}
}

// List returns notifications for the current user, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := svc.List(filter)
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// Get returns a single notification by id.
func (h *NotificationHandler) Get(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	item, err := svc.Get(strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, item)
}

// MarkRead flips a notification to read. Idempotent; unknown ids succeed.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	svc.MarkRead(strings.TrimSpace(c.Param("id")))
	response.Success(c, http.StatusOK, gin.H{"unread": svc.UnreadCount()})
}

// MarkAllRead flips every unread notification to read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	updated := svc.MarkAllRead()
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Delete removes a notification. Unknown ids succeed.
func (h *NotificationHandler) Delete(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	svc.Delete(strings.TrimSpace(c.Param("id")))
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Statistics returns aggregate counts over the current feed.
func (h *NotificationHandler) Statistics(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, svc.Statistics())
}

// UnreadCount returns just the unread counter for badge rendering.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": svc.UnreadCount()})
}

func parseFilter(c *gin.Context) (engine.Filter, error) {
	var filter engine.Filter

	for _, raw := range strings.Split(c.Query("types"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			t := engine.Type(raw)
			if !t.Valid() {
				return engine.Filter{}, apperrors.NewValidation("unknown notification type " + strconv.Quote(raw))
			}
			filter.Types = append(filter.Types, t)
		}
	}
	for _, raw := range strings.Split(c.Query("priorities"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			p := engine.Priority(raw)
			if !p.Valid() {
				return engine.Filter{}, apperrors.NewValidation("unknown priority " + strconv.Quote(raw))
			}
			filter.Priorities = append(filter.Priorities, p)
		}
	}

	if raw := c.Query("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return engine.Filter{}, apperrors.NewValidation("read must be a boolean")
		}
		filter.Read = &read
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return engine.Filter{}, apperrors.NewValidation("since must be RFC 3339")
		}
		filter.Since = since
	}
	if raw := c.Query("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return engine.Filter{}, apperrors.NewValidation("until must be RFC 3339")
		}
		filter.Until = until
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return engine.Filter{}, apperrors.NewValidation("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}
