package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawlytics/sentinel/internal/metrics"
)

func TestMetricsRepositoryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetricsRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := metrics.Snapshot{
		Timestamp: at,
		Fields: map[string]float64{
			metrics.FieldCPUUsage:    91.5,
			metrics.FieldMemoryUsage: metrics.SentinelDegraded,
		},
		Degraded: []string{metrics.FieldMemoryUsage},
	}
	require.NoError(t, repo.Save(ctx, snap))

	snaps, err := repo.List(ctx, at.Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, snap.Fields, snaps[0].Fields)
	assert.Equal(t, snap.Degraded, snaps[0].Degraded)
	assert.WithinDuration(t, at, snaps[0].Timestamp, time.Second)
}

func TestMetricsRepositoryListSinceOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetricsRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, metrics.Snapshot{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Fields:    map[string]float64{metrics.FieldCPUUsage: float64(i)},
		}))
	}

	snaps, err := repo.List(ctx, base.Add(2*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, float64(2), snaps[0].Fields[metrics.FieldCPUUsage])
	assert.Equal(t, float64(4), snaps[2].Fields[metrics.FieldCPUUsage])

	limited, err := repo.List(ctx, base, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, float64(0), limited[0].Fields[metrics.FieldCPUUsage])
}

func TestMetricsRepositoryPrune(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetricsRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Save(ctx, metrics.Snapshot{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Fields:    map[string]float64{metrics.FieldCPUUsage: float64(i)},
		}))
	}

	require.NoError(t, repo.Prune(ctx, base.Add(2*time.Hour)))

	snaps, err := repo.List(ctx, base, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, float64(2), snaps[0].Fields[metrics.FieldCPUUsage])
	assert.Equal(t, float64(3), snaps[1].Fields[metrics.FieldCPUUsage])
}
