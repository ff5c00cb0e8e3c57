package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/configio"
	"github.com/drawlytics/sentinel/internal/database"
	"github.com/drawlytics/sentinel/internal/notify"
)

type restoreDeps struct {
	ruleRepo   *database.RuleRepository
	alertRepo  *database.AlertRepository
	configRepo *database.ConfigRepository
	auditRepo  *database.AuditRepository

	rules      *alerting.RuleEngine
	store      *alerting.AlertStore
	registry   *notify.Registry
	templates  *notify.TemplateStore
	escalation *alerting.EscalationManager
	audit      *alerting.AuditLog
}

// restoreState loads persisted rules, alerts, channels, templates, escalation
// rules and audit entries into the in-memory components. Any single failure
// is logged and skipped; the engine starts with whatever loaded.
func restoreState(ctx context.Context, log *logrus.Logger, deps restoreDeps) {
	if rules, err := deps.ruleRepo.List(ctx); err != nil {
		log.WithError(err).Error("Failed to load persisted alert rules")
	} else if len(rules) > 0 {
		deps.rules.Import(rules)
		log.WithField("count", len(rules)).Info("Restored alert rules")
	}

	if alerts, err := deps.alertRepo.List(ctx, 0); err != nil {
		log.WithError(err).Error("Failed to load persisted alerts")
	} else if len(alerts) > 0 {
		// The repository returns newest first; the store expects insertion
		// order.
		for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
			alerts[i], alerts[j] = alerts[j], alerts[i]
		}
		deps.store.Import(alerts)
		log.WithField("count", len(alerts)).Info("Restored alerts")
	}

	if channels, err := deps.configRepo.ListChannels(ctx); err != nil {
		log.WithError(err).Error("Failed to load persisted channels")
	} else if len(channels) > 0 {
		deps.registry.Import(channels)
		log.WithField("count", len(channels)).Info("Restored notification channels")
	}

	if templates, err := deps.configRepo.ListTemplates(ctx); err != nil {
		log.WithError(err).Error("Failed to load persisted templates")
	} else if len(templates) > 0 {
		deps.templates.Import(templates)
		log.WithField("count", len(templates)).Info("Restored message templates")
	}

	if escRules, err := deps.configRepo.ListEscalationRules(ctx); err != nil {
		log.WithError(err).Error("Failed to load persisted escalation rules")
	} else if len(escRules) > 0 {
		deps.escalation.Import(escRules)
		log.WithField("count", len(escRules)).Info("Restored escalation rules")
	}

	if entries, err := deps.auditRepo.List(ctx, 0); err != nil {
		log.WithError(err).Error("Failed to load persisted audit entries")
	} else if len(entries) > 0 {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		deps.audit.Import(entries)
		log.WithField("count", len(entries)).Info("Restored audit log")
	}
}

// seedState applies the operator's bootstrap file on a first start, when
// nothing was restored from the database, and writes the seeded entries
// through so the next start does not depend on the file.
func seedState(ctx context.Context, log *logrus.Logger, path string, exporter *configio.Exporter, deps restoreDeps) {
	if len(deps.rules.ListRules()) > 0 || len(deps.registry.ListChannels()) > 0 {
		return
	}

	seed, err := configio.LoadSeed(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to load seed configuration")
		return
	}
	if seed == nil {
		return
	}
	if err := seed.Apply(exporter); err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to apply seed configuration")
		return
	}

	for _, rule := range deps.rules.ListRules() {
		if err := deps.ruleRepo.Save(ctx, rule); err != nil {
			log.WithError(err).Error("Failed to persist seeded alert rule")
		}
	}
	for _, ch := range deps.registry.ListChannels() {
		if err := deps.configRepo.SaveChannel(ctx, ch); err != nil {
			log.WithError(err).Error("Failed to persist seeded channel")
		}
	}
	for _, tpl := range deps.templates.List() {
		if err := deps.configRepo.SaveTemplate(ctx, tpl); err != nil {
			log.WithError(err).Error("Failed to persist seeded template")
		}
	}
	for _, rule := range deps.escalation.ListRules() {
		if err := deps.configRepo.SaveEscalationRule(ctx, rule); err != nil {
			log.WithError(err).Error("Failed to persist seeded escalation rule")
		}
	}

	log.WithField("path", path).Info("Applied seed configuration")
}
