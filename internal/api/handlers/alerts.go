package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/pkg/utils"
)

// ListAlerts returns retained alerts, newest first. ?status= filters by
// lifecycle state.
func (h *Handlers) ListAlerts(c *gin.Context) {
	status := alerting.AlertStatus(c.Query("status"))
	switch status {
	case "", alerting.StatusActive, alerting.StatusAcknowledged, alerting.StatusResolved:
	default:
		utils.SendError(c, http.StatusBadRequest, "unknown alert status")
		return
	}

	alerts := h.engine.Store().List(status)
	utils.SendSuccess(c, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
		"active": h.engine.Store().ActiveCount(),
	})
}

// GetAlert returns one alert by ID.
func (h *Handlers) GetAlert(c *gin.Context) {
	alert, err := h.engine.Store().Get(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}
	utils.SendSuccess(c, alert)
}

// AcknowledgeAlert marks an alert acknowledged on behalf of an actor.
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	var req struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "actor is required")
		return
	}

	alert, err := h.engine.Acknowledge(c.Param("id"), req.Actor)
	if err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}
	utils.SendSuccess(c, alert)
}

// ResolveAlert marks an alert resolved.
func (h *Handlers) ResolveAlert(c *gin.Context) {
	alert, err := h.engine.Resolve(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}
	utils.SendSuccess(c, alert)
}

// DispatchAlert re-sends one alert to an explicit channel list.
func (h *Handlers) DispatchAlert(c *gin.Context) {
	var req struct {
		ChannelIDs []string `json:"channel_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "channel_ids is required")
		return
	}

	alert, err := h.engine.Store().Get(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}

	results := h.engine.Dispatch(c.Request.Context(), alert, req.ChannelIDs)
	utils.SendSuccess(c, gin.H{"results": results})
}

// GetAuditLog returns recent audit entries, newest first. ?alert_id= filters
// by alert, ?limit= caps the count.
func (h *Handlers) GetAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries := h.engine.Audit().Query(limit, c.Query("alert_id"))
	utils.SendSuccess(c, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}
