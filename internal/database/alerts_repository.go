package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/drawlytics/sentinel/internal/alerting"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// AlertRepository persists alerts so lifecycle state survives restarts.
type AlertRepository struct {
	db *sqlx.DB
}

func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Save upserts one alert with its full lifecycle state.
func (r *AlertRepository) Save(ctx context.Context, alert alerting.Alert) error {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "alert", err)
	}

	query := `
		INSERT INTO alerts (id, rule_id, rule_name, metric, message, severity, status, triggered_at, acknowledged_at, acknowledged_by, resolved_at, metric_value, threshold, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			acknowledged_at = excluded.acknowledged_at,
			acknowledged_by = excluded.acknowledged_by,
			resolved_at = excluded.resolved_at,
			metadata = excluded.metadata
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID,
		alert.RuleID,
		alert.RuleName,
		alert.Metric,
		alert.Message,
		string(alert.Severity),
		string(alert.Status),
		alert.TriggeredAt,
		alert.AcknowledgedAt,
		alert.AcknowledgedBy,
		alert.ResolvedAt,
		alert.MetricValue,
		alert.Threshold,
		string(metadata),
	)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "alert", err)
	}
	return nil
}

// List returns up to limit alerts, newest first. limit <= 0 returns all.
func (r *AlertRepository) List(ctx context.Context, limit int) ([]alerting.Alert, error) {
	query := `
		SELECT id, rule_id, rule_name, metric, message, severity, status, triggered_at, acknowledged_at, acknowledged_by, resolved_at, metric_value, threshold, metadata
		FROM alerts ORDER BY triggered_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "alert", err)
	}
	defer rows.Close()

	var alerts []alerting.Alert
	for rows.Next() {
		var (
			alert        alerting.Alert
			sev, status  string
			ackAt, resAt sql.NullTime
			ackBy        sql.NullString
			metadata     string
		)
		if err := rows.Scan(&alert.ID, &alert.RuleID, &alert.RuleName, &alert.Metric, &alert.Message,
			&sev, &status, &alert.TriggeredAt, &ackAt, &ackBy, &resAt,
			&alert.MetricValue, &alert.Threshold, &metadata); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "alert", err)
		}
		alert.Severity = alerting.Severity(sev)
		alert.Status = alerting.AlertStatus(status)
		if ackAt.Valid {
			t := ackAt.Time
			alert.AcknowledgedAt = &t
		}
		if ackBy.Valid {
			alert.AcknowledgedBy = ackBy.String
		}
		if resAt.Valid {
			t := resAt.Time
			alert.ResolvedAt = &t
		}
		if err := json.Unmarshal([]byte(metadata), &alert.Metadata); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "alert", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "alert", err)
	}
	return alerts, nil
}

// Prune deletes non-active alerts beyond keep, oldest first. Active alerts
// are never pruned, matching the in-memory retention rule.
func (r *AlertRepository) Prune(ctx context.Context, keep int) error {
	query := `
		DELETE FROM alerts WHERE status != 'active' AND id NOT IN (
			SELECT id FROM alerts WHERE status != 'active' ORDER BY triggered_at DESC LIMIT ?
		)
	`
	if _, err := r.db.ExecContext(ctx, query, keep); err != nil {
		return errs.Wrap(errs.KindPersistence, "alert", err)
	}
	return nil
}
