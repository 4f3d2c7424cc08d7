package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inboxpilot/internal/httpserver"
	"inboxpilot/internal/model"
	"inboxpilot/internal/rules"
)

type ruleRequest struct {
	Name          string          `json:"name" binding:"required"`
	TriggerType   string          `json:"trigger_type" binding:"required"`
	TriggerConfig json.RawMessage `json:"trigger_config"`
	ActionType    string          `json:"action_type" binding:"required"`
	ActionConfig  json.RawMessage `json:"action_config"`
	Enabled       *bool           `json:"enabled"`
	Priority      int             `json:"priority"`
}

func (r ruleRequest) toModel(userID int) *model.AutomationRule {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &model.AutomationRule{
		UserID:        userID,
		Name:          r.Name,
		TriggerType:   model.TriggerType(r.TriggerType),
		TriggerConfig: r.TriggerConfig,
		ActionType:    model.RuleActionType(r.ActionType),
		ActionConfig:  r.ActionConfig,
		Enabled:       enabled,
		Priority:      r.Priority,
	}
}

func (a *API) listRules(c *gin.Context) {
	list, err := a.rules.List(c.Request.Context(), httpserver.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": list})
}

func (a *API) createRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := req.toModel(httpserver.UserID(c))
	if err := a.rules.Create(c.Request.Context(), rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (a *API) getRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	rule, err := a.rules.Get(c.Request.Context(), id, httpserver.UserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (a *API) updateRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := req.toModel(httpserver.UserID(c))
	rule.ID = id
	if err := a.rules.Update(c.Request.Context(), rule); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (a *API) deleteRule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	if err := a.rules.Delete(c.Request.Context(), id, httpserver.UserID(c)); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete rule"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) listRuleTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": rules.Templates()})
}

func (a *API) createRuleFromTemplate(c *gin.Context) {
	rule, err := a.rules.CreateFromTemplate(c.Request.Context(),
		httpserver.UserID(c), c.Param("templateID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}
