package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/database"
	"github.com/drawlytics/sentinel/internal/metrics"
)

// bindPersistence writes state changes through to the database as they
// happen: every alert lifecycle event, every audit entry, every collected
// snapshot. A created alert also re-saves its rule, so the last trigger time
// stamped during evaluation survives a restart and keeps the cooldown in
// force.
func bindPersistence(log *logrus.Logger, deps restoreDeps, metricsRepo *database.MetricsRepository, collector *metrics.Collector) {
	deps.store.Subscribe(func(event alerting.AlertEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.alertRepo.Save(ctx, event.Alert); err != nil {
			log.WithError(err).Error("Failed to persist alert")
		}
		if event.Kind != alerting.AlertCreated {
			return
		}
		rule, err := deps.rules.GetRule(event.Alert.RuleID)
		if err != nil {
			// Manually created or imported alerts may not have a live rule.
			return
		}
		if err := deps.ruleRepo.Save(ctx, rule); err != nil {
			log.WithError(err).Error("Failed to persist triggered rule")
		}
	})

	deps.audit.SetSink(func(entry alerting.AuditEntry) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.auditRepo.Save(ctx, entry); err != nil {
			log.WithError(err).Error("Failed to persist audit entry")
		}
	})

	collector.Subscribe(func(snap metrics.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsRepo.Save(ctx, snap); err != nil {
			log.WithError(err).Error("Failed to persist metric snapshot")
		}
	})
}
