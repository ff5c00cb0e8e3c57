package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drawlytics/sentinel/internal/notify"
	"github.com/drawlytics/sentinel/pkg/utils"
)

type templateRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name" binding:"required"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body" binding:"required"`
	ChannelTypes []string `json:"channel_types"`
}

// ListTemplates returns all message templates.
func (h *Handlers) ListTemplates(c *gin.Context) {
	templates := h.templates.List()
	utils.SendSuccess(c, gin.H{"templates": templates, "count": len(templates)})
}

// CreateTemplate adds a message template.
func (h *Handlers) CreateTemplate(c *gin.Context) {
	h.upsertTemplate(c, "")
}

// UpdateTemplate replaces an existing template.
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	h.upsertTemplate(c, c.Param("id"))
}

func (h *Handlers) upsertTemplate(c *gin.Context, id string) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}
	if id == "" {
		id = req.ID
	}

	channelTypes := make([]notify.ChannelType, 0, len(req.ChannelTypes))
	for _, ct := range req.ChannelTypes {
		channelTypes = append(channelTypes, notify.ChannelType(ct))
	}

	tpl, err := h.templates.Upsert(notify.Template{
		ID:           id,
		Name:         req.Name,
		Subject:      req.Subject,
		Body:         req.Body,
		ChannelTypes: channelTypes,
	})
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	if h.persist.Config != nil {
		if err := h.persist.Config.SaveTemplate(c.Request.Context(), tpl); err != nil {
			h.logger.WithError(err).Error("Failed to persist template")
			utils.SendError(c, http.StatusInternalServerError, "template saved in memory but not persisted")
			return
		}
	}
	utils.SendSuccess(c, tpl)
}

// DeleteTemplate removes a template.
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if err := h.templates.Delete(id); err != nil {
		utils.SendError(c, http.StatusNotFound, err.Error())
		return
	}

	if h.persist.Config != nil {
		if err := h.persist.Config.DeleteTemplate(c.Request.Context(), id); err != nil {
			h.logger.WithError(err).Error("Failed to delete persisted template")
		}
	}
	utils.SendSuccess(c, gin.H{"deleted": id})
}
