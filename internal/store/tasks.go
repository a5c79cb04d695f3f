package store

import (
	"context"
	"errors"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TaskRepo persists domain.Task rows.
type TaskRepo struct {
	db *DB
}

// NewTaskRepo wraps db.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db}
}

// CreateTask inserts a PENDING task for a project.
func (r *TaskRepo) CreateTask(ctx context.Context, projectID uuid.UUID, kind domain.TaskKind) (*domain.Task, error) {
	t := &domain.Task{ID: uuid.New(), ProjectID: projectID, Kind: kind, Status: domain.TaskPending}
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (id, project_id, kind, status) VALUES ($1, $2, $3, $4)`,
		t.ID, t.ProjectID, string(t.Kind), string(t.Status))
	if err != nil {
		return nil, errkind.New(errkind.Internal, "inserting task", err)
	}
	return t, nil
}

// MarkRunning transitions a task to RUNNING, recording the worker that
// claimed it and the start time.
func (r *TaskRepo) MarkRunning(ctx context.Context, id uuid.UUID, workerID string) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE tasks SET status = $1, worker_id = $2, started_at = $3 WHERE id = $4`,
		string(domain.TaskRunning), workerID, now, id)
	if err != nil {
		return errkind.New(errkind.Internal, "marking task running", err)
	}
	return nil
}

// Finish transitions a task to a terminal status (COMPLETED/FAILED/CANCELLED).
func (r *TaskRepo) Finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, taskErr string) error {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
		UPDATE tasks SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(status), taskErr, now, id)
	if err != nil {
		return errkind.New(errkind.Internal, "finishing task", err)
	}
	return nil
}

// GetTask loads a single task by id.
func (r *TaskRepo) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, project_id, kind, status, progress, current_step, worker_id,
		       started_at, completed_at, error
		FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// StuckRunningTasks returns RUNNING tasks whose started_at is older than
// threshold, used by the janitor (§4.8 "stuck task threshold").
func (r *TaskRepo) StuckRunningTasks(ctx context.Context, threshold time.Duration) ([]*domain.Task, error) {
	cutoff := time.Now().Add(-threshold)
	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, kind, status, progress, current_step, worker_id,
		       started_at, completed_at, error
		FROM tasks WHERE status = $1 AND started_at < $2`, string(domain.TaskRunning), cutoff)
	if err != nil {
		return nil, errkind.New(errkind.Internal, "querying stuck tasks", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes terminal tasks older than retention, bounding the
// tasks table's growth (§4.8 janitor sweep).
func (r *TaskRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := r.db.Exec(ctx, `
		DELETE FROM tasks
		WHERE status IN ($1, $2, $3) AND completed_at < $4`,
		string(domain.TaskCompleted), string(domain.TaskFailed), string(domain.TaskCancelled), cutoff)
	if err != nil {
		return 0, errkind.New(errkind.Internal, "pruning old tasks", err)
	}
	return tag.RowsAffected(), nil
}

func scanTask(row scanner) (*domain.Task, error) {
	var t domain.Task
	var kind, status string
	err := row.Scan(&t.ID, &t.ProjectID, &kind, &status, &t.Progress, &t.CurrentStep,
		&t.WorkerID, &t.StartedAt, &t.CompletedAt, &t.Error)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errkind.New(errkind.NotFound, "task not found", err)
		}
		return nil, errkind.New(errkind.Internal, "scanning task row", err)
	}
	t.Kind = domain.TaskKind(kind)
	t.Status = domain.TaskStatus(status)
	return &t, nil
}
