package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/alerting"
)

func auditEntry(id string, at time.Time) alerting.AuditEntry {
	return alerting.AuditEntry{
		ID:        id,
		Timestamp: at,
		Action:    alerting.AuditSent,
		AlertID:   "a-1",
		ChannelID: "slack-ops",
		Details:   "delivered",
	}
}

func TestAuditRepositoryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, auditEntry("e-1", at)))

	entries, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e-1", entries[0].ID)
	assert.Equal(t, alerting.AuditSent, entries[0].Action)
	assert.Equal(t, "a-1", entries[0].AlertID)
	assert.Equal(t, "slack-ops", entries[0].ChannelID)
	assert.WithinDuration(t, at, entries[0].Timestamp, time.Second)
}

func TestAuditRepositorySaveIgnoresDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, auditEntry("e-1", at)))
	require.NoError(t, repo.Save(ctx, auditEntry("e-1", at)))

	entries, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditRepositoryListNewestFirstWithLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("e-%d", i)
		require.NoError(t, repo.Save(ctx, auditEntry(id, base.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := repo.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e-4", entries[0].ID)
	assert.Equal(t, "e-2", entries[2].ID)
}

func TestAuditRepositoryPruneKeepsNewest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("e-%d", i)
		require.NoError(t, repo.Save(ctx, auditEntry(id, base.Add(time.Duration(i)*time.Minute))))
	}

	require.NoError(t, repo.Prune(ctx, 2))

	entries, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e-4", entries[0].ID)
	assert.Equal(t, "e-3", entries[1].ID)
}
