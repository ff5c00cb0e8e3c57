// Package api wires the admin HTTP surface around the alerting engine.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/api/handlers"
	"github.com/drawlytics/sentinel/internal/api/middleware"
	"github.com/drawlytics/sentinel/internal/config"
	"github.com/drawlytics/sentinel/internal/websocket"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, h *handlers.Handlers, logger *logrus.Logger, wsHub *websocket.Hub) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", websocket.HandleWebSocketGin(wsHub))

	api := router.Group("/api/v1")
	{
		alerts := api.Group("/alerts")
		{
			alerts.GET("/", h.ListAlerts)
			alerts.GET("/:id", h.GetAlert)
			alerts.POST("/:id/acknowledge", h.AcknowledgeAlert)
			alerts.POST("/:id/resolve", h.ResolveAlert)
			alerts.POST("/:id/dispatch", h.DispatchAlert)
		}

		rules := api.Group("/rules")
		{
			rules.GET("/", h.ListRules)
			rules.GET("/:id", h.GetRule)
			rules.POST("/", h.CreateRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
		}

		channels := api.Group("/channels")
		{
			channels.GET("/", h.ListChannels)
			channels.GET("/:id", h.GetChannel)
			channels.POST("/", h.CreateChannel)
			channels.PUT("/:id", h.UpdateChannel)
			channels.DELETE("/:id", h.DeleteChannel)
			channels.POST("/:id/test", h.TestChannel)
		}

		templates := api.Group("/templates")
		{
			templates.GET("/", h.ListTemplates)
			templates.POST("/", h.CreateTemplate)
			templates.PUT("/:id", h.UpdateTemplate)
			templates.DELETE("/:id", h.DeleteTemplate)
		}

		escalation := api.Group("/escalation-rules")
		{
			escalation.GET("/", h.ListEscalationRules)
			escalation.POST("/", h.CreateEscalationRule)
			escalation.PUT("/:id", h.UpdateEscalationRule)
			escalation.DELETE("/:id", h.DeleteEscalationRule)
		}

		system := api.Group("/system")
		{
			system.GET("/health", h.CheckHealth)
			system.POST("/collect", h.CollectNow)
			system.GET("/snapshot", h.LatestSnapshot)
			system.GET("/metrics/history", h.MetricsHistory)
			system.GET("/audit", h.GetAuditLog)
			system.GET("/config/export", h.ExportConfiguration)
			system.POST("/config/import", h.ImportConfiguration)
			system.GET("/websocket/stats", h.WebSocketStats)
		}
	}

	return router
}
