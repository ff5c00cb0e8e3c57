package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/drawlytics/sentinel/internal/alerting"
	"github.com/drawlytics/sentinel/internal/notify"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// ConfigRepository persists notification channels, templates and escalation
// rules.
type ConfigRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// SaveChannel upserts one channel.
func (r *ConfigRepository) SaveChannel(ctx context.Context, ch notify.Channel) error {
	cfg, err := json.Marshal(ch.Config)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "channel", err)
	}

	query := `
		INSERT INTO channels (id, name, type, enabled, config, last_test_ok, last_test_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			enabled = excluded.enabled,
			config = excluded.config,
			last_test_ok = excluded.last_test_ok,
			last_test_at = excluded.last_test_at,
			last_used_at = excluded.last_used_at
	`
	_, err = r.db.ExecContext(ctx, query,
		ch.ID, ch.Name, string(ch.Type), ch.Enabled, string(cfg),
		ch.LastTestOK, ch.LastTestAt, ch.LastUsedAt,
	)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "channel", err)
	}
	return nil
}

// DeleteChannel removes one channel.
func (r *ConfigRepository) DeleteChannel(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.KindPersistence, "channel", err)
	}
	return nil
}

// ListChannels returns all persisted channels.
func (r *ConfigRepository) ListChannels(ctx context.Context) ([]notify.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, enabled, config, last_test_ok, last_test_at, last_used_at
		FROM channels ORDER BY id
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "channel", err)
	}
	defer rows.Close()

	var channels []notify.Channel
	for rows.Next() {
		var (
			ch                 notify.Channel
			chType, cfg        string
			lastTestOK         sql.NullBool
			lastTest, lastUsed sql.NullTime
		)
		if err := rows.Scan(&ch.ID, &ch.Name, &chType, &ch.Enabled, &cfg, &lastTestOK, &lastTest, &lastUsed); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "channel", err)
		}
		ch.Type = notify.ChannelType(chType)
		if err := json.Unmarshal([]byte(cfg), &ch.Config); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "channel", err)
		}
		if lastTestOK.Valid {
			v := lastTestOK.Bool
			ch.LastTestOK = &v
		}
		if lastTest.Valid {
			t := lastTest.Time
			ch.LastTestAt = &t
		}
		if lastUsed.Valid {
			t := lastUsed.Time
			ch.LastUsedAt = &t
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "channel", err)
	}
	return channels, nil
}

// SaveTemplate upserts one template.
func (r *ConfigRepository) SaveTemplate(ctx context.Context, tpl notify.Template) error {
	variables, err := json.Marshal(tpl.Variables)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "template", err)
	}
	channelTypes, err := json.Marshal(tpl.ChannelTypes)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "template", err)
	}

	query := `
		INSERT INTO templates (id, name, subject, body, variables, channel_types)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			subject = excluded.subject,
			body = excluded.body,
			variables = excluded.variables,
			channel_types = excluded.channel_types
	`
	_, err = r.db.ExecContext(ctx, query, tpl.ID, tpl.Name, tpl.Subject, tpl.Body, string(variables), string(channelTypes))
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "template", err)
	}
	return nil
}

// DeleteTemplate removes one template.
func (r *ConfigRepository) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.KindPersistence, "template", err)
	}
	return nil
}

// ListTemplates returns all persisted templates.
func (r *ConfigRepository) ListTemplates(ctx context.Context) ([]notify.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, subject, body, variables, channel_types FROM templates ORDER BY id
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "template", err)
	}
	defer rows.Close()

	var templates []notify.Template
	for rows.Next() {
		var (
			tpl                     notify.Template
			variables, channelTypes string
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.Body, &variables, &channelTypes); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "template", err)
		}
		if err := json.Unmarshal([]byte(variables), &tpl.Variables); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "template", err)
		}
		if err := json.Unmarshal([]byte(channelTypes), &tpl.ChannelTypes); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "template", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "template", err)
	}
	return templates, nil
}

// SaveEscalationRule upserts one escalation rule.
func (r *ConfigRepository) SaveEscalationRule(ctx context.Context, rule alerting.EscalationRule) error {
	severities, err := json.Marshal(rule.Severities)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}
	channelIDs, err := json.Marshal(rule.ChannelIDs)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}
	escalateTo, err := json.Marshal(rule.EscalateTo)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}

	query := `
		INSERT INTO escalation_rules (id, name, severities, unacked_after_seconds, channel_ids, escalate_to, auto_resolve, repeat_after_seconds, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			severities = excluded.severities,
			unacked_after_seconds = excluded.unacked_after_seconds,
			channel_ids = excluded.channel_ids,
			escalate_to = excluded.escalate_to,
			auto_resolve = excluded.auto_resolve,
			repeat_after_seconds = excluded.repeat_after_seconds,
			enabled = excluded.enabled
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, string(severities), int64(rule.UnackedAfter.Seconds()),
		string(channelIDs), string(escalateTo), rule.AutoResolve,
		int64(rule.RepeatAfter.Seconds()), rule.Enabled,
	)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}
	return nil
}

// DeleteEscalationRule removes one escalation rule.
func (r *ConfigRepository) DeleteEscalationRule(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM escalation_rules WHERE id = ?`, id); err != nil {
		return errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}
	return nil
}

// ListEscalationRules returns all persisted escalation rules.
func (r *ConfigRepository) ListEscalationRules(ctx context.Context) ([]alerting.EscalationRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, severities, unacked_after_seconds, channel_ids, escalate_to, auto_resolve, repeat_after_seconds, enabled
		FROM escalation_rules ORDER BY id
	`)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}
	defer rows.Close()

	var rules []alerting.EscalationRule
	for rows.Next() {
		var (
			rule                               alerting.EscalationRule
			severities, channelIDs, escalateTo string
			unackedSecs, repeatSecs            int64
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &severities, &unackedSecs, &channelIDs, &escalateTo,
			&rule.AutoResolve, &repeatSecs, &rule.Enabled); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "escalation_rule", err)
		}
		rule.UnackedAfter = time.Duration(unackedSecs) * time.Second
		rule.RepeatAfter = time.Duration(repeatSecs) * time.Second
		if err := json.Unmarshal([]byte(severities), &rule.Severities); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "escalation_rule", err)
		}
		if err := json.Unmarshal([]byte(channelIDs), &rule.ChannelIDs); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "escalation_rule", err)
		}
		if err := json.Unmarshal([]byte(escalateTo), &rule.EscalateTo); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "escalation_rule", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "escalation_rule", err)
	}
	return rules, nil
}
