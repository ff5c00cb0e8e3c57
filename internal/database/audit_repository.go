package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/drawlytics/sentinel/internal/alerting"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// AuditRepository persists the notification audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Save appends one audit entry.
func (r *AuditRepository) Save(ctx context.Context, entry alerting.AuditEntry) error {
	query := `
		INSERT INTO audit_log (id, timestamp, action, alert_id, channel_id, details)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.Timestamp, string(entry.Action), entry.AlertID, entry.ChannelID, entry.Details,
	)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "audit_entry", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]alerting.AuditEntry, error) {
	query := `
		SELECT id, timestamp, action, alert_id, channel_id, details
		FROM audit_log ORDER BY timestamp DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "audit_entry", err)
	}
	defer rows.Close()

	var entries []alerting.AuditEntry
	for rows.Next() {
		var (
			entry  alerting.AuditEntry
			action string
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &action, &entry.AlertID, &entry.ChannelID, &entry.Details); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "audit_entry", err)
		}
		entry.Action = alerting.AuditAction(action)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "audit_entry", err)
	}
	return entries, nil
}

// Prune removes entries beyond keep, oldest first.
func (r *AuditRepository) Prune(ctx context.Context, keep int) error {
	query := `
		DELETE FROM audit_log WHERE id NOT IN (
			SELECT id FROM audit_log ORDER BY timestamp DESC, id DESC LIMIT ?
		)
	`
	if _, err := r.db.ExecContext(ctx, query, keep); err != nil {
		return errs.Wrap(errs.KindPersistence, "audit_entry", err)
	}
	return nil
}
