package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/drawlytics/sentinel/internal/metrics"
	errs "github.com/drawlytics/sentinel/pkg/errors"
)

// MetricsRepository persists collected metric snapshots for history queries.
type MetricsRepository struct {
	db *sqlx.DB
}

func NewMetricsRepository(db *sqlx.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Save appends one snapshot.
func (r *MetricsRepository) Save(ctx context.Context, snap metrics.Snapshot) error {
	fields, err := json.Marshal(snap.Fields)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "snapshot", err)
	}
	degraded, err := json.Marshal(snap.Degraded)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "snapshot", err)
	}

	query := `INSERT INTO metric_snapshots (timestamp, fields, degraded) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, snap.Timestamp, string(fields), string(degraded)); err != nil {
		return errs.Wrap(errs.KindPersistence, "snapshot", err)
	}
	return nil
}

// List returns snapshots since the cutoff, oldest first.
func (r *MetricsRepository) List(ctx context.Context, since time.Time, limit int) ([]metrics.Snapshot, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp, fields, degraded FROM metric_snapshots
		WHERE timestamp >= ? ORDER BY timestamp ASC LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "snapshot", err)
	}
	defer rows.Close()

	var snaps []metrics.Snapshot
	for rows.Next() {
		var (
			snap             metrics.Snapshot
			fields, degraded string
		)
		if err := rows.Scan(&snap.Timestamp, &fields, &degraded); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "snapshot", err)
		}
		if err := json.Unmarshal([]byte(fields), &snap.Fields); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "snapshot", err)
		}
		if err := json.Unmarshal([]byte(degraded), &snap.Degraded); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "snapshot", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "snapshot", err)
	}
	return snaps, nil
}

// Prune removes snapshots older than the cutoff.
func (r *MetricsRepository) Prune(ctx context.Context, before time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metric_snapshots WHERE timestamp < ?`, before); err != nil {
		return errs.Wrap(errs.KindPersistence, "snapshot", err)
	}
	return nil
}
