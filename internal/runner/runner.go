// Package runner bridges C5's Broker-agnostic Pool to C4's Orchestrator: it
// is the worker.Runner implementation cmd/highlighter-worker wires up,
// translating a dequeued worker.Task into an Orchestrator.Run call and the
// task row's terminal status, mirroring the teacher's
// runHandlerAsync/finishJob split (pipeline/coordinator.go) generalized from
// one upload job to one pool task.
package runner

import (
	"context"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/pipeline"
	"github.com/clipforge/highlighter/internal/worker"
	"github.com/google/uuid"
)

// TaskStore is the narrow slice of C1 this bridge needs: recording a task's
// claim and its terminal outcome.
type TaskStore interface {
	MarkRunning(ctx context.Context, id uuid.UUID, workerID string) error
	Finish(ctx context.Context, id uuid.UUID, status domain.TaskStatus, taskErr string) error
}

// Runner implements worker.Runner against a pipeline.Orchestrator.
type Runner struct {
	orchestrator *pipeline.Orchestrator
	tasks        TaskStore
	workerID     string
}

// New builds a Runner. workerID is attached to every task this process
// claims, so a stuck-task sweep can report which process owned it.
func New(orchestrator *pipeline.Orchestrator, tasks TaskStore, workerID string) *Runner {
	return &Runner{orchestrator: orchestrator, tasks: tasks, workerID: workerID}
}

// RunTask implements worker.Runner.
func (r *Runner) RunTask(ctx context.Context, t worker.Task) error {
	if err := r.tasks.MarkRunning(ctx, t.ID, r.workerID); err != nil {
		return err
	}

	runErr := r.orchestrator.Run(ctx, t.ProjectID, pipeline.RunOptions{
		StartAtStage: t.StartStage,
		Resume:       t.Resume,
	})

	status := domain.TaskCompleted
	message := ""
	if runErr != nil {
		message = runErr.Error()
		status = domain.TaskFailed
		if errkind.Is(runErr, errkind.Cancelled) {
			status = domain.TaskCancelled
		}
	}
	if err := r.tasks.Finish(ctx, t.ID, status, message); err != nil {
		log.LogError(t.ProjectID.String(), "failed recording task outcome", err, "task_id", t.ID.String())
	}
	return runErr
}
