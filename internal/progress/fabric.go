package progress

import (
	"context"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Clock is used instead of time.Now() directly so tests can fix server
// timestamps, following the teacher's package-level Clock var convention
// (progress/progress.go).
var Clock = clock.New()

const snapshotKeyPrefix = "progress:last:"

// Fabric is C3: Redis-backed channel normalisation, publish, and snapshot
// retrieval.
type Fabric struct {
	rdb         *redis.Client
	snapshotTTL time.Duration
}

// NewFabric constructs a Fabric. snapshotTTL should come from
// config.Cli.SnapshotTTLSeconds (default 24h per §6).
func NewFabric(rdb *redis.Client, snapshotTTL time.Duration) *Fabric {
	if snapshotTTL <= 0 {
		snapshotTTL = 24 * time.Hour
	}
	return &Fabric{rdb: rdb, snapshotTTL: snapshotTTL}
}

// Publish implements §4.3.2: validate and clamp, write the snapshot hash
// with a monotonic-upgrade guard, and publish the event to the channel's
// pub/sub topic. The channel is derived from ev.ProjectID, never passed in
// by the caller, so every publisher necessarily goes through Normalize.
func (f *Fabric) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	channel := ChannelFor(ev.ProjectID)
	ev.Percent = clampPercent(ev.Percent)
	if ev.TimestampMs == 0 {
		ev.TimestampMs = Clock.Now().UnixMilli()
	}

	last, ok, err := f.getSnapshot(ctx, channel)
	if err == nil && ok && ev.Percent < last.Percent {
		// Non-decreasing per project (§4.4.3), not just within a stage: a
		// terminal ERROR/cancelled event published at Percent 0 must never
		// regress the snapshot a reconnecting client would read (§8).
		ev.Percent = last.Percent
		metrics.Metrics.ProgressDropped.WithLabelValues("non_monotone_upgraded").Inc()
	}

	if err := f.writeSnapshot(ctx, channel, ev); err != nil {
		return err
	}

	payload, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	// Pub/sub is best-effort per §4.3.3; the snapshot above is already
	// durable, so a publish failure here is logged by the caller, not fatal.
	return f.rdb.Publish(ctx, channel, payload).Err()
}

// GetSnapshot implements §4.3.3.
func (f *Fabric) GetSnapshot(ctx context.Context, projectID uuid.UUID) (*domain.ProgressEvent, bool, error) {
	return f.getSnapshot(ctx, ChannelFor(projectID))
}

func (f *Fabric) getSnapshot(ctx context.Context, channel string) (*domain.ProgressEvent, bool, error) {
	m, err := f.rdb.HGetAll(ctx, snapshotKeyPrefix+channel).Result()
	if err != nil {
		metrics.Metrics.ProgressSnapshotMisses.Inc()
		return nil, false, err
	}
	if len(m) == 0 {
		metrics.Metrics.ProgressSnapshotMisses.Inc()
		return nil, false, nil
	}
	metrics.Metrics.ProgressSnapshotHits.Inc()
	ev, err := decodeSnapshot(m)
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (f *Fabric) writeSnapshot(ctx context.Context, channel string, ev domain.ProgressEvent) error {
	key := snapshotKeyPrefix + channel
	fields := map[string]interface{}{
		"project_id":   ev.ProjectID.String(),
		"stage":        string(ev.Stage),
		"percent":      ev.Percent,
		"message":      ev.Message,
		"timestamp_ms": ev.TimestampMs,
	}
	pipe := f.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, f.snapshotTTL)
	_, err := pipe.Exec(ctx)
	if err == nil {
		metrics.Metrics.ProgressPublished.WithLabelValues(string(ev.Stage)).Inc()
	}
	return err
}

// ChannelFor returns the canonical channel for a project id.
func ChannelFor(projectID uuid.UUID) string {
	return Normalize(projectID.String())
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func decodeSnapshot(m map[string]string) (*domain.ProgressEvent, error) {
	projectID, err := uuid.Parse(m["project_id"])
	if err != nil {
		return nil, err
	}
	percent, _ := strconv.Atoi(m["percent"])
	ts, _ := strconv.ParseInt(m["timestamp_ms"], 10, 64)
	return &domain.ProgressEvent{
		ProjectID:   projectID,
		Stage:       domain.Stage(m["stage"]),
		Percent:     percent,
		Message:     m["message"],
		TimestampMs: ts,
		Snapshot:    true,
	}, nil
}
