package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/pkg/utils"
)

type escalationRequest struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name" binding:"required"`
	Severities         []string `json:"severities"`
	UnackedAfterSecs   int64    `json:"unacked_after_seconds" binding:"required"`
	ChannelIDs         []string `json:"channel_ids"`
	EscalateTo         []string `json:"escalate_to"`
	AutoResolve        bool     `json:"auto_resolve"`
	RepeatAfterSeconds int64    `json:"repeat_after_seconds"`
	Enabled            *bool    `json:"enabled"`
}

// ListEscalationRules returns all escalation rules.
func (h *Handlers) ListEscalationRules(c *gin.Context) {
	rules := h.engine.Escalation().ListRules()
	utils.SendSuccess(c, gin.H{"rules": rules, "count": len(rules)})
}

// CreateEscalationRule adds an escalation rule.
func (h *Handlers) CreateEscalationRule(c *gin.Context) {
	h.upsertEscalationRule(c, "")
}

// UpdateEscalationRule replaces an existing escalation rule.
func (h *Handlers) UpdateEscalationRule(c *gin.Context) {
	h.upsertEscalationRule(c, c.Param("id"))
}

func (h *Handlers) upsertEscalationRule(c *gin.Context, id string) {
	var req escalationRequest
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

	severities := make([]alerting.Severity, 0, len(req.Severities))
	for _, s := range req.Severities {
		severities = append(severities, alerting.Severity(s))
	}

	rule, err := h.engine.Escalation().UpsertRule(alerting.EscalationRule{
		ID:           id,
		Name:         req.Name,
		Severities:   severities,
		UnackedAfter: time.Duration(req.UnackedAfterSecs) * time.Second,
		ChannelIDs:   req.ChannelIDs,
		EscalateTo:   req.EscalateTo,
		AutoResolve:  req.AutoResolve,
		RepeatAfter:  time.Duration(req.RepeatAfterSeconds) * time.Second,
		Enabled:      enabled,
	})
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if h.persist.Config != nil {
		if err := h.persist.Config.SaveEscalationRule(c.Request.Context(), rule); err != nil {
			h.logger.WithError(err).Error("Failed to persist escalation rule")
			utils.SendError(c, http.StatusInternalServerError, "escalation rule saved in memory but not persisted")
			return
		}
	}
	utils.SendSuccess(c, rule)
}

// DeleteEscalationRule removes an escalation rule.
func (h *Handlers) DeleteEscalationRule(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.Escalation().DeleteRule(id); err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}

	if h.persist.Config != nil {
		if err := h.persist.Config.DeleteEscalationRule(c.Request.Context(), id); err != nil {
			h.logger.WithError(err).Error("Failed to delete persisted escalation rule")
		}
	}
	utils.SendSuccess(c, gin.H{"deleted": id})
}
