package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClipRepo persists domain.Clip rows, written by C6's data sync.
type ClipRepo struct {
	db *DB
}

// NewClipRepo wraps db.
func NewClipRepo(db *DB) *ClipRepo {
	return &ClipRepo{db: db}
}

// ListClips returns every clip for a project, ordered by start time, backing
// the control surface's clip listing (§4.8).
func (r *ClipRepo) ListClips(ctx context.Context, projectID uuid.UUID) ([]*domain.Clip, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, title, score, start_time, end_time, metadata, artifact_path
		FROM clips WHERE project_id = $1 ORDER BY start_time ASC`, projectID)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "listing clips", err)
	}
	defer rows.Close()

	var out []*domain.Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClip loads a single clip by id, backing the control surface's file
// streaming route (§6 "GET /files/projects/{id}/clips/{cid}").
func (r *ClipRepo) GetClip(ctx context.Context, id uuid.UUID) (*domain.Clip, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, project_id, title, score, start_time, end_time, metadata, artifact_path
		FROM clips WHERE id = $1`, id)
	return scanClip(row)
}

// ReplaceAll deletes every existing clip for projectID and inserts clips in
// a single transaction, the idempotent delete-then-reinsert shape C6 uses
// to reconcile clips_metadata.json into the store.
func (r *ClipRepo) ReplaceAll(ctx context.Context, projectID uuid.UUID, clips []*domain.Clip) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errkind.New(errkind.Internal, "beginning clips transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM clips WHERE project_id = $1`, projectID); err != nil {
		return errkind.New(errkind.Internal, "deleting existing clips", err)
	}

	for _, c := range clips {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return errkind.New(errkind.InvalidArgument, "encoding clip metadata", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO clips (id, project_id, title, score, start_time, end_time, metadata, artifact_path)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, projectID, c.Title, c.Score, c.StartTime, c.EndTime, metaJSON, c.ArtifactPath); err != nil {
			return errkind.New(errkind.Internal, "inserting clip", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errkind.New(errkind.Internal, "committing clips transaction", err)
	}
	return nil
}

func scanClip(row scanner) (*domain.Clip, error) {
	var c domain.Clip
	var metaJSON []byte
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Title, &c.Score, &c.StartTime, &c.EndTime, &metaJSON, &c.ArtifactPath); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errkind.New(errkind.NotFound, "clip not found", err)
		}
		return nil, errkind.New(errkind.Internal, "scanning clip row", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return nil, errkind.New(errkind.Internal, "decoding clip metadata", err)
		}
	}
	return &c, nil
}
