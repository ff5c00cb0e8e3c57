package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drawlytics/sentinel/internal/notify"
	"github.com/drawlytics/sentinel/pkg/utils"
)

type channelRequest struct {
	ID      string            `json:"id"`
	Name    string            `json:"name" binding:"required"`
	Type    string            `json:"type" binding:"required"`
	Enabled *bool             `json:"enabled"`
	Config  map[string]string `json:"config"`
}

// ListChannels returns all notification channels.
func (h *Handlers) ListChannels(c *gin.Context) {
	channels := h.registry.ListChannels()
	utils.SendSuccess(c, gin.H{"channels": channels, "count": len(channels)})
}

// GetChannel returns one channel by ID.
func (h *Handlers) GetChannel(c *gin.Context) {
	ch, err := h.registry.GetChannel(c.Param("id"))
	if err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}
	utils.SendSuccess(c, ch)
}

// CreateChannel adds a notification channel.
func (h *Handlers) CreateChannel(c *gin.Context) {
	h.upsertChannel(c, "")
}

// UpdateChannel replaces an existing channel.
func (h *Handlers) UpdateChannel(c *gin.Context) {
	h.upsertChannel(c, c.Param("id"))
}

func (h *Handlers) upsertChannel(c *gin.Context, id string) {
	var req channelRequest
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

	ch, err := h.registry.UpsertChannel(notify.Channel{
		ID:      id,
		Name:    req.Name,
		Type:    notify.ChannelType(req.Type),
		Enabled: enabled,
		Config:  req.Config,
	})
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if h.persist.Config != nil {
		if err := h.persist.Config.SaveChannel(c.Request.Context(), ch); err != nil {
			h.logger.WithError(err).Error("Failed to persist notification channel")
			utils.SendError(c, http.StatusInternalServerError, "channel saved in memory but not persisted")
			return
		}
	}
	utils.SendSuccess(c, ch)
}

// DeleteChannel removes a channel.
func (h *Handlers) DeleteChannel(c *gin.Context) {
	id := c.Param("id")
	if err := h.registry.DeleteChannel(id); err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}

	if h.persist.Config != nil {
		if err := h.persist.Config.DeleteChannel(c.Request.Context(), id); err != nil {
			h.logger.WithError(err).Error("Failed to delete persisted channel")
		}
	}
	utils.SendSuccess(c, gin.H{"deleted": id})
}

// TestChannel delivers a canned alert through one channel and records the
// outcome on the channel.
func (h *Handlers) TestChannel(c *gin.Context) {
	result := h.dispatcher.TestChannel(c.Request.Context(), c.Param("id"))
	if h.persist.Config != nil {
		if ch, err := h.registry.GetChannel(c.Param("id")); err == nil {
			if err := h.persist.Config.SaveChannel(c.Request.Context(), ch); err != nil {
				h.logger.WithError(err).Error("Failed to persist channel test result")
			}
		}
	}
	utils.SendSuccess(c, result)
}
