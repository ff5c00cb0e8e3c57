package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drawlytics/sentinel/pkg/utils"
)

// Health returns the most recent health report, running a fresh check if
// none exists yet.
func (h *Handlers) Health(c *gin.Context) {
	report, ok := h.engine.HealthChecker().Last()
	if !ok {
		report = h.engine.HealthChecker().Check(c.Request.Context())
	}
	utils.SendSuccess(c, report)
}

// CheckHealth runs a fresh health check cycle and returns the report.
func (h *Handlers) CheckHealth(c *gin.Context) {
	utils.SendSuccess(c, h.engine.HealthChecker().Check(c.Request.Context()))
}

// CollectNow samples all metric sources immediately. The snapshot goes
// through the same evaluation path as a scheduled tick.
func (h *Handlers) CollectNow(c *gin.Context) {
	utils.SendSuccess(c, h.engine.CollectNow(c.Request.Context()))
}

// LatestSnapshot returns the most recent metric snapshot.
func (h *Handlers) LatestSnapshot(c *gin.Context) {
	snap, ok := h.engine.Collector().Latest()
	if !ok {
		utils.SendError(c, http.StatusNotFound, "no snapshot collected yet")
		return
	}
	utils.SendSuccess(c, snap)
}

// MetricsHistory returns retained snapshots, oldest first.
func (h *Handlers) MetricsHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	snaps := h.engine.Collector().History(limit)
	utils.SendSuccess(c, gin.H{"snapshots": snaps, "count": len(snaps)})
}

// ExportConfiguration streams the full configuration bundle as JSON.
func (h *Handlers) ExportConfiguration(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="sentinel-config.json"`)
	if err := h.exporter.WriteJSON(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to export configuration")
	}
}

// ImportConfiguration replaces the engine's configuration from a bundle.
func (h *Handlers) ImportConfiguration(c *gin.Context) {
	if err := h.exporter.ReadJSON(c.Request.Body); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}
	utils.SendSuccess(c, gin.H{"imported": true})
}

// WebSocketStats reports hub connection counters.
func (h *Handlers) WebSocketStats(c *gin.Context) {
	utils.SendSuccess(c, h.hub.Stats())
}
