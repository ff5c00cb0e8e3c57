package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/pkg/utils"
)

type ruleRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name" binding:"required"`
	Metric          string   `json:"metric" binding:"required"`
	Operator        string   `json:"operator" binding:"required"`
	Threshold       float64  `json:"threshold"`
	Severity        string   `json:"severity" binding:"required"`
	Enabled         *bool    `json:"enabled"`
	CooldownSeconds int64    `json:"cooldown_seconds"`
	ChannelIDs      []string `json:"channel_ids"`
}

// ListRules returns all alert rules.
func (h *Handlers) ListRules(c *gin.Context) {
	rules := h.engine.Rules().ListRules()
	utils.SendSuccess(c, gin.H{"rules": rules, "count": len(rules)})
}

// GetRule returns one alert rule by ID.
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.engine.Rules().GetRule(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}
	utils.SendSuccess(c, rule)
}

// CreateRule adds a new alert rule.
func (h *Handlers) CreateRule(c *gin.Context) {
	h.upsertRule(c, "")
}

// UpdateRule replaces an existing alert rule.
func (h *Handlers) UpdateRule(c *gin.Context) {
	h.upsertRule(c, c.Param("id"))
}

func (h *Handlers) upsertRule(c *gin.Context, id string) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	if id == "" {
		id = req.ID
	}

	rule, err := h.engine.Rules().UpsertRule(alerting.Rule{
		ID:         id,
		Name:       req.Name,
		Metric:     req.Metric,
		Operator:   alerting.Operator(req.Operator),
		Threshold:  req.Threshold,
		Severity:   alerting.Severity(req.Severity),
		Enabled:    enabled,
		Cooldown:   time.Duration(req.CooldownSeconds) * time.Second,
		ChannelIDs: req.ChannelIDs,
	})
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if h.persist.Rules != nil {
		if err := h.persist.Rules.Save(c.Request.Context(), rule); err != nil {
			h.logger.WithError(err).Error("Failed to persist alert rule")
			utils.SendError(c, http.StatusInternalServerError, "rule saved in memory but not persisted")
			return
		}
	}
	utils.SendSuccess(c, rule)
}

// DeleteRule removes an alert rule.
func (h *Handlers) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.Rules().DeleteRule(id); err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}

	if h.persist.Rules != nil {
		if err := h.persist.Rules.Delete(c.Request.Context(), id); err != nil {
			h.logger.WithError(err).Error("Failed to delete persisted alert rule")
		}
	}
	utils.SendSuccess(c, gin.H{"deleted": id})
}
