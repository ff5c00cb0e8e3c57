package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/health"
	"github.com/drawlytics/sentinel/internal/metrics"
)

// EngineConfig holds the engine's schedule.
type EngineConfig struct {
	CollectInterval    time.Duration
	HealthInterval     time.Duration
	EscalationInterval time.Duration
	RetentionInterval  time.Duration
	StopGrace          time.Duration
}

func (c *EngineConfig) applyDefaults() {
	if c.CollectInterval <= 0 {
		c.CollectInterval = 30 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = time.Minute
	}
	if c.EscalationInterval <= 0 {
		c.EscalationInterval = 2 * time.Minute
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = time.Hour
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 15 * time.Second
	}
}

// Engine drives the whole alerting cycle: a periodic tick collects one
// snapshot and synchronously evaluates rules against it, newly fired alerts
// are fanned out on their own goroutines, health checks and escalation scans
// run on their own cadences. All collaborators are injected; there is no
// global state.
type Engine struct {
	cfg        EngineConfig
	collector  *metrics.Collector
	checker    *health.Checker
	rules      *RuleEngine
	store      *AlertStore
	audit      *AuditLog
	escalation *EscalationManager
	dispatcher Dispatcher
	em         *metrics.EngineMetrics
	logger     *logrus.Logger

	onEscalation func(EscalationEvent)
	onHealth     func(health.Report)
	onRetention  func(context.Context)

	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewEngine wires the engine. The rule engine is subscribed to the collector
// so every collection, scheduled or on-demand, is followed by exactly one
// evaluation of that snapshot.
func NewEngine(
	cfg EngineConfig,
	collector *metrics.Collector,
	checker *health.Checker,
	rules *RuleEngine,
	store *AlertStore,
	audit *AuditLog,
	escalation *EscalationManager,
	dispatcher Dispatcher,
	em *metrics.EngineMetrics,
	logger *logrus.Logger,
) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg:        cfg,
		collector:  collector,
		checker:    checker,
		rules:      rules,
		store:      store,
		audit:      audit,
		escalation: escalation,
		dispatcher: dispatcher,
		em:         em,
		logger:     logger,
	}

	collector.Subscribe(e.handleSnapshot)
	store.Subscribe(func(AlertEvent) {
		if e.em != nil {
			e.em.ActiveAlerts.Set(float64(store.ActiveCount()))
		}
	})

	return e
}

// SetEscalationHook installs a callback invoked for every escalation event,
// used to broadcast them to dashboard clients.
func (e *Engine) SetEscalationHook(fn func(EscalationEvent)) {
	e.onEscalation = fn
}

// SetHealthHook installs a callback invoked with every health report.
func (e *Engine) SetHealthHook(fn func(health.Report)) {
	e.onHealth = fn
}

// SetRetentionHook installs a callback run on the retention schedule,
// typically to prune persisted history.
func (e *Engine) SetRetentionHook(fn func(context.Context)) {
	e.onRetention = fn
}

// Start schedules the periodic jobs. It is the only fatal failure point: if
// the scheduler cannot be built the engine does not run at all.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine is already running")
	}

	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	e.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	jobs := []struct {
		every time.Duration
		run   func()
	}{
		{e.cfg.CollectInterval, e.collectTick},
		{e.cfg.HealthInterval, e.healthTick},
		{e.cfg.EscalationInterval, e.escalationTick},
		{e.cfg.RetentionInterval, e.retentionTick},
	}
	for _, job := range jobs {
		if _, err := e.cron.AddFunc("@every "+job.every.String(), job.run); err != nil {
			e.cancel()
			return fmt.Errorf("failed to schedule engine job: %w", err)
		}
	}

	e.cron.Start()
	e.running = true

	e.logger.WithFields(logrus.Fields{
		"collect_interval":    e.cfg.CollectInterval.String(),
		"health_interval":     e.cfg.HealthInterval.String(),
		"escalation_interval": e.cfg.EscalationInterval.String(),
	}).Info("Alerting engine started")

	return nil
}

// Stop cancels the schedulers so no new cycle starts, gives in-flight
// dispatches a grace period, then abandons them.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mu.Unlock()

	stopped := e.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(e.cfg.StopGrace):
		e.logger.Warn("Timed out waiting for scheduled jobs to finish")
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.cfg.StopGrace):
		e.logger.Warn("Abandoning in-flight notification dispatches")
	}

	e.cancel()
	e.logger.Info("Alerting engine stopped")
}

// CollectNow samples outside the ticker cadence. The snapshot flows through
// the same subscription path, so rules are evaluated against it exactly as
// on a scheduled tick.
func (e *Engine) CollectNow(ctx context.Context) metrics.Snapshot {
	return e.collector.CollectNow(ctx)
}

// Acknowledge marks an alert acknowledged and records it in the audit log.
// Acknowledging an alert that is already acknowledged or resolved changes
// nothing and produces no audit entry.
func (e *Engine) Acknowledge(id, actor string) (Alert, error) {
	alert, changed, err := e.store.Acknowledge(id, actor)
	if err != nil {
		return Alert{}, err
	}
	if changed {
		e.audit.Record(AuditEntry{
			Action:  AuditAcknowledged,
			AlertID: alert.ID,
			Details: "acknowledged by " + actor,
		})
	}
	return alert, nil
}

// Resolve marks an alert resolved and records it in the audit log. Resolving
// twice is a no-op and does not produce a second audit entry.
func (e *Engine) Resolve(id string) (Alert, error) {
	alert, changed, err := e.store.Resolve(id)
	if err != nil {
		return Alert{}, err
	}
	if changed {
		e.audit.Record(AuditEntry{
			Action:  AuditResolved,
			AlertID: alert.ID,
			Details: "resolved manually",
		})
	}
	return alert, nil
}

// Dispatch fans one alert out to explicit channels and audits every outcome.
// Exposed to the admin collaborator for re-sends.
func (e *Engine) Dispatch(ctx context.Context, alert Alert, channelIDs []string) []DeliveryResult {
	start := time.Now()
	results := e.dispatcher.Dispatch(ctx, alert, channelIDs)
	if e.em != nil {
		e.em.DispatchDurations.Observe(time.Since(start).Seconds())
	}
	e.recordDeliveries(alert, results)
	return results
}

func (e *Engine) collectTick() {
	ctx := e.baseCtx
	if ctx.Err() != nil {
		return
	}
	e.collector.Collect(ctx)
}

// handleSnapshot runs synchronously after every collection, so each
// evaluation sees one fully formed snapshot. Fan-out for fired alerts is
// pushed onto worker goroutines so a slow channel cannot stall the next
// tick.
func (e *Engine) handleSnapshot(snap metrics.Snapshot) {
	if e.em != nil {
		e.em.ObserveSnapshot(snap)
		e.em.EvaluationsTotal.Inc()
	}

	alerts := e.rules.Evaluate(snap)
	for _, alert := range alerts {
		if e.em != nil {
			e.em.AlertsFiredTotal.WithLabelValues(string(alert.Severity)).Inc()
		}
		e.dispatchAsync(alert)
	}
}

func (e *Engine) dispatchAsync(alert Alert) {
	rule, err := e.rules.GetRule(alert.RuleID)
	if err != nil || len(rule.ChannelIDs) == 0 {
		return
	}

	ctx := e.baseCtx
	if ctx == nil {
		// Evaluation triggered before Start, e.g. an on-demand collect.
		ctx = context.Background()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		start := time.Now()
		results := e.dispatcher.Dispatch(ctx, alert, rule.ChannelIDs)
		if e.em != nil {
			e.em.DispatchDurations.Observe(time.Since(start).Seconds())
		}
		e.recordDeliveries(alert, results)
	}()
}

func (e *Engine) recordDeliveries(alert Alert, results []DeliveryResult) {
	for _, res := range results {
		action := AuditSent
		if !res.Success {
			action = AuditFailed
		}
		e.audit.Record(AuditEntry{
			Action:    action,
			AlertID:   alert.ID,
			ChannelID: res.ChannelID,
			Details:   res.Message,
		})
		if e.em != nil {
			status := "sent"
			if !res.Success {
				status = "failed"
			}
			e.em.DeliveriesTotal.WithLabelValues(res.ChannelType, status).Inc()
		}
	}
}

func (e *Engine) healthTick() {
	ctx := e.baseCtx
	if ctx.Err() != nil {
		return
	}
	report := e.checker.Check(ctx)
	if e.em != nil {
		for name, sh := range report.Services {
			v := 0.0
			switch sh.Status {
			case health.StatusHealthy:
				v = 1
			case health.StatusDegraded:
				v = 0.5
			}
			e.em.HealthStatus.WithLabelValues(name).Set(v)
		}
	}
	if e.onHealth != nil {
		e.onHealth(report)
	}
}

func (e *Engine) escalationTick() {
	ctx := e.baseCtx
	if ctx.Err() != nil {
		return
	}
	events := e.escalation.Scan(ctx)
	for _, event := range events {
		if e.em != nil {
			e.em.EscalationsTotal.Inc()
		}
		if e.onEscalation != nil {
			e.onEscalation(event)
		}
	}
}

func (e *Engine) retentionTick() {
	ctx := e.baseCtx
	if e.onRetention == nil || ctx == nil || ctx.Err() != nil {
		return
	}
	e.onRetention(ctx)
}

// Components exposes the engine's collaborators to the admin surface.
func (e *Engine) Rules() *RuleEngine             { return e.rules }
func (e *Engine) Store() *AlertStore             { return e.store }
func (e *Engine) Audit() *AuditLog               { return e.audit }
func (e *Engine) Escalation() *EscalationManager { return e.escalation }
func (e *Engine) Collector() *metrics.Collector  { return e.collector }
func (e *Engine) HealthChecker() *health.Checker { return e.checker }
