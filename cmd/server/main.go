package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/api"
	"github.com/drawlytics/sentinel/internal/api/handlers"
	"github.com/drawlytics/sentinel/internal/config"
	"github.com/drawlytics/sentinel/internal/configio"
	"github.com/drawlytics/sentinel/internal/database"
	"github.com/drawlytics/sentinel/internal/health"
	"github.com/drawlytics/sentinel/internal/metrics"
	"github.com/drawlytics/sentinel/internal/notify"
	"github.com/drawlytics/sentinel/internal/websocket"
	"github.com/drawlytics/sentinel/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	ruleRepo := database.NewRuleRepository(db)
	alertRepo := database.NewAlertRepository(db)
	configRepo := database.NewConfigRepository(db)
	auditRepo := database.NewAuditRepository(db)
	metricsRepo := database.NewMetricsRepository(db)

	clock := alerting.SystemClock()
	em := metrics.NewEngineMetrics("sentinel")

	// Metrics collector
	collector := metrics.NewCollector(cfg.Collector.HistoryCap, log)
	collector.Register(metrics.NewSystemSource())
	collector.Register(metrics.NewLoadSource())
	collector.Register(metrics.NewGaugeSource(metrics.FieldDBConnections, func(ctx context.Context) (float64, error) {
		return float64(db.Stats().OpenConnections), nil
	}))

	// Health checker
	checker := health.NewChecker(config.Duration(cfg.Health.ProbeTimeout, 5*time.Second), log)
	for _, svc := range cfg.Health.Services {
		checker.Register(health.NewHTTPProbe(
			svc.Name, svc.URL, svc.Core,
			config.Duration(svc.Timeout, 0),
		))
	}

	// Alerting core
	store := alerting.NewAlertStore(cfg.Alerting.AlertCap, clock, log)
	rules := alerting.NewRuleEngine(store, clock, log)
	rules.SetDefaultCooldown(config.Duration(cfg.Alerting.DefaultCooldown, 5*time.Minute))
	audit := alerting.NewAuditLog(cfg.Alerting.AuditCap, clock)

	// Notification stack
	registry := notify.NewRegistry()
	httpClient := &http.Client{Timeout: config.Duration(cfg.Notify.ChannelTimeout, 10*time.Second)}
	registry.RegisterSender(notify.NewWebhookSender(httpClient))
	registry.RegisterSender(notify.NewSlackSender(httpClient))
	registry.RegisterSender(notify.NewTeamsSender(httpClient))
	registry.RegisterSender(notify.NewDiscordSender(httpClient))
	logTransport := &notify.LogTransport{Logger: log}
	registry.RegisterSender(notify.NewEmailSender(logTransport))
	registry.RegisterSender(notify.NewSMSSender(logTransport))

	templates := notify.NewTemplateStore()
	dispatcher := notify.NewDispatcher(registry, templates, config.Duration(cfg.Notify.ChannelTimeout, 10*time.Second), log)

	escalation := alerting.NewEscalationManager(store, dispatcher, audit, clock, log)

	exporter := &configio.Exporter{
		Registry:   registry,
		Templates:  templates,
		Escalation: escalation,
		Audit:      audit,
		Rules:      rules,
		Store:      store,
		Collector:  collector,
	}

	// Restore persisted state, seeding defaults on a first start
	deps := restoreDeps{
		ruleRepo: ruleRepo, alertRepo: alertRepo, configRepo: configRepo, auditRepo: auditRepo,
		rules: rules, store: store, registry: registry, templates: templates,
		escalation: escalation, audit: audit,
	}
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	restoreState(startupCtx, log, deps)
	seedState(startupCtx, log, cfg.Alerting.SeedPath, exporter, deps)
	cancelStartup()

	bindPersistence(log, deps, metricsRepo, collector)

	// Engine
	engine := alerting.NewEngine(alerting.EngineConfig{
		CollectInterval:    config.Duration(cfg.Collector.Interval, 30*time.Second),
		HealthInterval:     config.Duration(cfg.Health.Interval, time.Minute),
		EscalationInterval: config.Duration(cfg.Escalation.ScanInterval, 2*time.Minute),
		RetentionInterval:  config.Duration(cfg.Database.PruneInterval, time.Hour),
		StopGrace:          config.Duration(cfg.Notify.StopGrace, 15*time.Second),
	}, collector, checker, rules, store, audit, escalation, dispatcher, em, log)

	// Periodic retention sweep over the persisted history. In-memory caps are
	// enforced on insert, this keeps the database tables bounded too.
	snapshotRetention := config.Duration(cfg.Collector.Retention, 168*time.Hour)
	engine.SetRetentionHook(func(ctx context.Context) {
		if err := alertRepo.Prune(ctx, cfg.Alerting.AlertCap); err != nil {
			log.WithError(err).Error("Failed to prune alert history")
		}
		if err := auditRepo.Prune(ctx, cfg.Alerting.AuditCap); err != nil {
			log.WithError(err).Error("Failed to prune audit history")
		}
		if err := metricsRepo.Prune(ctx, time.Now().Add(-snapshotRetention)); err != nil {
			log.WithError(err).Error("Failed to prune metric snapshots")
		}
	})

	// Create WebSocket hub and stream engine events to it
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	store.Subscribe(func(event alerting.AlertEvent) {
		wsHub.Broadcast(websocket.AlertMessage(event))
	})
	engine.SetEscalationHook(func(event alerting.EscalationEvent) {
		wsHub.Broadcast(websocket.EscalationMessage(event))
	})
	engine.SetHealthHook(func(report health.Report) {
		wsHub.Broadcast(websocket.HealthMessage(report))
	})
	collector.Subscribe(func(snap metrics.Snapshot) {
		wsHub.Broadcast(websocket.SnapshotMessage(snap))
	})

	if cfg.Alerting.Enabled {
		if err := engine.Start(); err != nil {
			log.Fatal("Failed to start alerting engine: ", err)
		}
	} else {
		log.Warn("Alerting engine disabled by configuration")
	}

	// Admin HTTP surface
	h := handlers.NewHandlers(engine, registry, templates, dispatcher, exporter, handlers.Persistence{
		Rules:  ruleRepo,
		Config: configRepo,
	}, wsHub, log)
	router := api.NewRouter(cfg, h, log, wsHub)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting Sentinel on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine.Stop()
	wsHub.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
