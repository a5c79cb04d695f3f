package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProjectRepo implements pipeline.ProjectStore against Postgres.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo wraps db.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// CreateProject inserts a new project row in PENDING status, returning the
// fully-populated domain.Project (§4.8 "create a project").
func (r *ProjectRepo) CreateProject(ctx context.Context, name, description string, category domain.Category, source domain.Source, settings map[string]interface{}) (*domain.Project, error) {
	p := &domain.Project{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Category:    category,
		Source:      source,
		Status:      domain.ProjectPending,
		Settings:    settings,
	}

	sourceJSON, err := json.Marshal(p.Source)
	if err != nil {
		return nil, errkind.New(errkind.InvalidArgument, "encoding source", err)
	}
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return nil, errkind.New(errkind.InvalidArgument, "encoding settings", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO projects (id, name, description, category, source, status, settings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, string(p.Category), sourceJSON, string(p.Status), settingsJSON)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, errkind.New(errkind.Internal, "inserting project", err)
	}
	p.CurrentStage = domain.StageIngest
	return p, nil
}

// GetProject loads one project by id, mapping pgx.ErrNoRows to NotFound.
func (r *ProjectRepo) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, description, category, source, status, current_stage,
		       progress, error_stage, error_message, sync_warning, video_path,
		       subtitle_path, video_duration_seconds, settings, created_at, updated_at
		FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

// ListProjects returns every project ordered by most-recently-created,
// backing the control surface's project listing (§4.8).
func (r *ProjectRepo) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, category, source, status, current_stage,
		       progress, error_stage, error_message, sync_warning, video_path,
		       subtitle_path, video_duration_seconds, settings, created_at, updated_at
		FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "listing projects", err)
	}
	defer rows.Close()

	var out []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row scanner) (*domain.Project, error) {
	var p domain.Project
	var category, status, currentStage string
	var sourceJSON, settingsJSON []byte
	var errStage, errMessage *string

	err := row.Scan(&p.ID, &p.Name, &p.Description, &category, &sourceJSON, &status,
		&currentStage, &p.Progress, &errStage, &errMessage, &p.SyncWarning,
		&p.VideoPath, &p.SubtitlePath, &p.VideoDuration, &settingsJSON, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errkind.New(errkind.NotFound, "project not found", err)
		}
		return nil, errkind.New(errkind.Internal, "scanning project row", err)
	}

	p.Category = domain.Category(category)
	p.Status = domain.ProjectStatus(status)
	p.CurrentStage = domain.Stage(currentStage)
	if errStage != nil && errMessage != nil {
		p.Error = &domain.ErrorRecord{Stage: domain.Stage(*errStage), Message: *errMessage}
	}
	if err := json.Unmarshal(sourceJSON, &p.Source); err != nil {
		return nil, errkind.New(errkind.Internal, "decoding source", err)
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &p.Settings); err != nil {
			return nil, errkind.New(errkind.Internal, "decoding settings", err)
		}
	}
	return &p, nil
}

// CompareAndSwapStatus implements the CAS transition of §4.4.4: the update
// only takes effect if the row's current status still equals from, raising
// Conflict on a race (e.g. two workers finishing the same project at once).
func (r *ProjectRepo) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to domain.ProjectStatus, fields map[string]interface{}) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE projects SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`, string(to), id, string(from))
	if err != nil {
		return errkind.New(errkind.Internal, "updating project status", err)
	}
	if tag.RowsAffected() == 0 {
		return errkind.New(errkind.Conflict, "project status changed concurrently", nil)
	}
	return nil
}

// SetStageProgress writes the project's current stage and overall percent
// as given (no clamping here), used on every stage boundary (§4.4.3).
func (r *ProjectRepo) SetStageProgress(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE projects SET current_stage = $1, progress = $2, updated_at = now()
		WHERE id = $3`, string(stage), progress, id)
	if err != nil {
		return errkind.New(errkind.Internal, "updating stage progress", err)
	}
	return nil
}

// SetError records the user-visible error surface of §7 on a project row.
func (r *ProjectRepo) SetError(ctx context.Context, id uuid.UUID, rec domain.ErrorRecord) error {
	_, err := r.db.Exec(ctx, `
		UPDATE projects SET error_stage = $1, error_message = $2, updated_at = now()
		WHERE id = $3`, string(rec.Stage), rec.Message, id)
	if err != nil {
		return errkind.New(errkind.Internal, "recording project error", err)
	}
	return nil
}

// SetSyncWarning implements §4.4.6: a data-sync failure after DONE never
// re-fails a COMPLETED project, it is only ever surfaced here.
func (r *ProjectRepo) SetSyncWarning(ctx context.Context, id uuid.UUID, warning string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE projects SET sync_warning = $1, updated_at = now() WHERE id = $2`, warning, id)
	if err != nil {
		return errkind.New(errkind.Internal, "recording sync warning", err)
	}
	return nil
}

// DeleteProject removes a project row (cascading to tasks/clips/collections
// via FK), refusing while a task is RUNNING (§4.8 "delete a project").
func (r *ProjectRepo) DeleteProject(ctx context.Context, id uuid.UUID) error {
	var running int
	if err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM tasks WHERE project_id = $1 AND status = $2`,
		id, string(domain.TaskRunning)).Scan(&running); err != nil {
		return errkind.New(errkind.Internal, "checking running tasks", err)
	}
	if running > 0 {
		return errkind.New(errkind.Busy, "project has a task currently running", nil)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return errkind.New(errkind.Internal, "deleting project", err)
	}
	if tag.RowsAffected() == 0 {
		return errkind.New(errkind.NotFound, "project not found", nil)
	}
	return nil
}

// touchUpdatedAt bumps updated_at independent of a CAS status change.
// Nothing in this repository calls it, the janitor included.
func (r *ProjectRepo) touchUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE projects SET updated_at = $1 WHERE id = $2`, at, id)
	return err
}
