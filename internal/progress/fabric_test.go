package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clipforge/highlighter/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestFabric(t *testing.T) (*Fabric, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFabric(client, time.Hour), client
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"42",
		"project:42",
		"progress:project:42",
		"project:project:42",
		"progress:project:project:42",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		require.Equal(t, once, twice, "Normalize must be idempotent for input %q", in)
		require.Equal(t, "progress:project:42", once)
	}
}

func TestPublishThenGetSnapshot(t *testing.T) {
	fabric, _ := newTestFabric(t)
	ctx := context.Background()
	projectID := uuid.New()

	err := fabric.Publish(ctx, domain.ProgressEvent{ProjectID: projectID, Stage: domain.StageAnalyze, Percent: 30})
	require.NoError(t, err)

	snap, ok, err := fabric.GetSnapshot(ctx, projectID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 30, snap.Percent)
	require.Equal(t, domain.StageAnalyze, snap.Stage)
	require.True(t, snap.Snapshot)
}

func TestPublishClampsPercent(t *testing.T) {
	fabric, _ := newTestFabric(t)
	ctx := context.Background()
	projectID := uuid.New()

	require.NoError(t, fabric.Publish(ctx, domain.ProgressEvent{ProjectID: projectID, Stage: domain.StageExport, Percent: 150}))
	snap, ok, err := fabric.GetSnapshot(ctx, projectID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, snap.Percent)
}

func TestPublishUpgradesRegressionWithinSameStage(t *testing.T) {
	fabric, _ := newTestFabric(t)
	ctx := context.Background()
	projectID := uuid.New()

	require.NoError(t, fabric.Publish(ctx, domain.ProgressEvent{ProjectID: projectID, Stage: domain.StageHighlight, Percent: 60}))
	require.NoError(t, fabric.Publish(ctx, domain.ProgressEvent{ProjectID: projectID, Stage: domain.StageHighlight, Percent: 40}))

	snap, ok, err := fabric.GetSnapshot(ctx, projectID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 60, snap.Percent, "a lower percent within the same stage must be silently upgraded to the last-known value")
}

func TestPublishUpgradesRegressionAcrossStages(t *testing.T) {
	fabric, _ := newTestFabric(t)
	ctx := context.Background()
	projectID := uuid.New()

	require.NoError(t, fabric.Publish(ctx, domain.ProgressEvent{ProjectID: projectID, Stage: domain.StageHighlight, Percent: 60}))
	// A terminal ERROR/cancelled event always carries Percent 0 and a
	// different Stage than the last in-progress event; per §4.4.3 the clamp
	// is non-decreasing per project, not just within a stage, so a
	// reconnecting client must never see percent regress (§8).
	require.NoError(t, fabric.Publish(ctx, domain.ProgressEvent{ProjectID: projectID, Stage: domain.StageError, Percent: 0, Message: "cancelled"}))

	snap, ok, err := fabric.GetSnapshot(ctx, projectID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 60, snap.Percent, "a terminal event must not regress the snapshot's percent")
	require.Equal(t, domain.StageError, snap.Stage, "the terminal event's stage must still be recorded")
}

func TestGetSnapshotMissingChannel(t *testing.T) {
	fabric, _ := newTestFabric(t)
	_, ok, err := fabric.GetSnapshot(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}
