// Package handlers exposes the engine's in-process operations to the admin
// collaborator over HTTP.
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/configio"
	"github.com/drawlytics/sentinel/internal/database"
	"github.com/drawlytics/sentinel/internal/notify"
	"github.com/drawlytics/sentinel/internal/websocket"
)

// Persistence groups the optional repositories behind the admin surface.
// A nil repository means the deployment runs without that table; mutations
// then live only in memory.
type Persistence struct {
	Rules  *database.RuleRepository
	Config *database.ConfigRepository
}

// Handlers holds the collaborators every endpoint reaches into.
type Handlers struct {
	engine     *alerting.Engine
	registry   *notify.Registry
	templates  *notify.TemplateStore
	dispatcher *notify.Dispatcher
	exporter   *configio.Exporter
	persist    Persistence
	hub        *websocket.Hub
	logger     *logrus.Logger
}

func NewHandlers(
	engine *alerting.Engine,
	registry *notify.Registry,
	templates *notify.TemplateStore,
	dispatcher *notify.Dispatcher,
	exporter *configio.Exporter,
	persist Persistence,
	hub *websocket.Hub,
	logger *logrus.Logger,
) *Handlers {
	return &Handlers{
		engine:     engine,
		registry:   registry,
		templates:  templates,
		dispatcher: dispatcher,
		exporter:   exporter,
		persist:    persist,
		hub:        hub,
		logger:     logger,
	}
}
