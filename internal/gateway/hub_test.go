package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/progress"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *progress.Fabric) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fabric := progress.NewFabric(rdb, time.Hour)
	return NewHub(fabric), fabric
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversPublishedProgressToSubscriber(t *testing.T) {
	hub, fabric := newTestHub(t)
	conn := dialHub(t, hub)

	projectID := uuid.New()
	// Round-trip the exact client->gateway wire shape of §4.7
	// (`{"type":"sync_subscriptions","project_ids":[...]}`) rather than a Go
	// struct literal, so a field-name drift between clientMessage and the
	// documented protocol would fail this test instead of passing silently.
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":        "sync_subscriptions",
		"project_ids": []string{projectID.String()},
	}))

	// first message on a fresh project is a snapshot miss, so nothing is
	// replayed; give the subscribe call a moment to land before publishing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, fabric.Publish(context.Background(), domain.ProgressEvent{
		ProjectID: projectID,
		Stage:     domain.StageAnalyze,
		Percent:   30,
		Message:   "scoring",
	}))

	var frame serverFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "progress", frame.Type)
	require.Equal(t, projectID.String(), frame.ProjectID)
	require.Equal(t, 30, frame.Percent)
	require.Equal(t, "running", frame.Status, "a non-terminal event must carry the coarse 'running' status")
}

func TestHubReplaysLastSnapshotOnSubscribe(t *testing.T) {
	hub, fabric := newTestHub(t)

	projectID := uuid.New()
	require.NoError(t, fabric.Publish(context.Background(), domain.ProgressEvent{
		ProjectID: projectID,
		Stage:     domain.StageIngest,
		Percent:   10,
	}))

	conn := dialHub(t, hub)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":        "sync_subscriptions",
		"project_ids": []string{projectID.String()},
	}))

	var frame serverFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	require.True(t, frame.Snapshot)
	require.Equal(t, 10, frame.Percent)
}

func TestServerFrameCarriesCoarseStatusForTerminalEvents(t *testing.T) {
	hub, fabric := newTestHub(t)
	conn := dialHub(t, hub)

	projectID := uuid.New()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":        "sync_subscriptions",
		"project_ids": []string{projectID.String()},
	}))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, fabric.Publish(context.Background(), domain.ProgressEvent{
		ProjectID: projectID,
		Stage:     domain.StageError,
		Percent:   45,
		Message:   "cancelled",
	}))

	var frame serverFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "cancelled", frame.Status)
}

func TestNormalizeChannelDelegatesToProgressPackage(t *testing.T) {
	require.Equal(t, progress.Normalize("42"), normalizeChannel("42"))
}
