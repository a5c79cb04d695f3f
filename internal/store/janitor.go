package store

import (
	"context"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/log"
)

// Janitor periodically sweeps orphaned RUNNING tasks (a worker that died
// mid-task without marking it FAILED) back to FAILED, and prunes old
// terminal tasks, per §4.8 "background maintenance".
type Janitor struct {
	tasks              *TaskRepo
	projects           *ProjectRepo
	stuckThreshold     time.Duration
	taskRetention      time.Duration
}

// NewJanitor builds a Janitor using the thresholds from config.Cli.
func NewJanitor(tasks *TaskRepo, projects *ProjectRepo, stuckThreshold, taskRetention time.Duration) *Janitor {
	return &Janitor{tasks: tasks, projects: projects, stuckThreshold: stuckThreshold, taskRetention: taskRetention}
}

// Run executes one sweep. Callers schedule it on a ticker (config.DefaultJanitorInterval).
func (j *Janitor) Run(ctx context.Context) error {
	stuck, err := j.tasks.StuckRunningTasks(ctx, j.stuckThreshold)
	if err != nil {
		return err
	}
	for _, t := range stuck {
		if err := j.tasks.Finish(ctx, t.ID, domain.TaskFailed, "orphaned: worker stopped reporting progress"); err != nil {
			log.Warn(t.ProjectID.String(), "janitor failed to finish orphaned task", "task_id", t.ID.String(), "err", err.Error())
			continue
		}
		_ = j.projects.CompareAndSwapStatus(ctx, t.ProjectID, domain.ProjectProcessing, domain.ProjectFailed, nil)
		_ = j.projects.SetError(ctx, t.ProjectID, domain.ErrorRecord{Stage: domain.StageError, Message: "task orphaned past the stuck-task threshold"})
		log.Warn(t.ProjectID.String(), "janitor failed orphaned task", "task_id", t.ID.String())
	}

	pruned, err := j.tasks.DeleteOlderThan(ctx, j.taskRetention)
	if err != nil {
		return err
	}
	if pruned > 0 {
		log.NoID("janitor pruned old tasks", "count", pruned)
	}
	return nil
}
