package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/pulseboard/internal/engine"
	apperrors "github.com/pulsemetrics/pulseboard/pkg/errors"
	"github.com/pulsemetrics/pulseboard/pkg/response"
)

// RuleHandler exposes HTTP endpoints for alert rule management.
type RuleHandler struct {
	manager *engine.Manager
}

// NewRuleHandler constructs a rule handler.
func NewRuleHandler(manager *engine.Manager) *RuleHandler {
	return &RuleHandler{manager: manager}
}

// List returns all alert rules in definition order.
func (h *RuleHandler) List(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, svc.ListRules())
}

// Get returns a single rule by id.
func (h *RuleHandler) Get(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	rule, err := svc.GetRule(strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rule)
}

// Create validates and registers a new rule.
func (h *RuleHandler) Create(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	var rule engine.Rule
	if !bindAndValidate(c, &rule) {
		return
	}

	created, err := svc.AddRule(rule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, created)
}

// Update replaces an existing rule definition.
func (h *RuleHandler) Update(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	var rule engine.Rule
	if !bindAndValidate(c, &rule) {
		return
	}
	rule.ID = strings.TrimSpace(c.Param("id"))

	updated, err := svc.UpdateRule(rule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// SetActive toggles a rule between active and inactive.
func (h *RuleHandler) SetActive(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	var body struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Active == nil {
		response.Error(c, apperrors.NewBadRequest("active flag is required"))
		return
	}

	rule, err := svc.SetRuleActive(strings.TrimSpace(c.Param("id")), *body.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rule)
}

// Delete removes a rule. Unknown ids succeed.
func (h *RuleHandler) Delete(c *gin.Context) {
	svc, ok := feedFor(c, h.manager)
	if !ok {
		return
	}

	svc.RemoveRule(strings.TrimSpace(c.Param("id")))
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
