package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/drawlytics/sentinel/internal/alerting"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// RuleRepository persists alert rules.
type RuleRepository struct {
	db *sqlx.DB
}

func NewRuleRepository(db *sqlx.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Save upserts one rule.
func (r *RuleRepository) Save(ctx context.Context, rule alerting.Rule) error {
	channelIDs, err := json.Marshal(rule.ChannelIDs)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "rule", err)
	}

	query := `
		INSERT INTO alert_rules (id, name, metric, operator, threshold, severity, enabled, cooldown_seconds, channel_ids, last_triggered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			metric = excluded.metric,
			operator = excluded.operator,
			threshold = excluded.threshold,
			severity = excluded.severity,
			enabled = excluded.enabled,
			cooldown_seconds = excluded.cooldown_seconds,
			channel_ids = excluded.channel_ids,
			last_triggered_at = excluded.last_triggered_at,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		rule.Metric,
		string(rule.Operator),
		rule.Threshold,
		string(rule.Severity),
		rule.Enabled,
		int64(rule.Cooldown.Seconds()),
		string(channelIDs),
		nullTime(rule.LastTriggeredAt),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "rule", err)
	}
	return nil
}

// Delete removes one rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.KindPersistence, "rule", err)
	}
	return nil
}

// List returns all persisted rules.
func (r *RuleRepository) List(ctx context.Context) ([]alerting.Rule, error) {
	query := `
		SELECT id, name, metric, operator, threshold, severity, enabled, cooldown_seconds, channel_ids, last_triggered_at, created_at, updated_at
		FROM alert_rules ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "rule", err)
	}
	defer rows.Close()

	var rules []alerting.Rule
	for rows.Next() {
		var (
			rule            alerting.Rule
			op, sev         string
			cooldownSecs    int64
			channelIDs      string
			lastTriggeredAt sql.NullTime
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Metric, &op, &rule.Threshold, &sev,
			&rule.Enabled, &cooldownSecs, &channelIDs, &lastTriggeredAt, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "rule", err)
		}
		rule.Operator = alerting.Operator(op)
		rule.Severity = alerting.Severity(sev)
		rule.Cooldown = time.Duration(cooldownSecs) * time.Second
		if lastTriggeredAt.Valid {
			rule.LastTriggeredAt = lastTriggeredAt.Time
		}
		if err := json.Unmarshal([]byte(channelIDs), &rule.ChannelIDs); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "rule", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "rule", err)
	}
	return rules, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
