// Package worker implements C5, the bounded worker pool: N goroutines
// pulling from a priority queue, one task running per project at a time,
// dispatch grounded in the teacher's runHandlerAsync goroutine-per-job model
// (pipeline/coordinator.go) but generalized from "fire one goroutine per
// upload job" to "dispatch from a fixed pool of N workers across priority
// classes", since this system expects many more concurrent projects than the
// teacher's one-job-per-stream model assumed.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/google/uuid"
)

// Priority is a task's dispatch class, scheduled high-to-low per §5
// "priority classes: processing, export, maintenance".
type Priority int

const (
	PriorityMaintenance Priority = iota
	PriorityExport
	PriorityProcessing
)

func (p Priority) String() string {
	switch p {
	case PriorityProcessing:
		return "processing"
	case PriorityExport:
		return "export"
	default:
		return "maintenance"
	}
}

// Task is one unit of dispatchable work: run a project through the
// orchestrator starting at a given stage.
type Task struct {
	ID         uuid.UUID
	ProjectID  uuid.UUID
	Kind       domain.TaskKind
	Priority   Priority
	StartStage domain.Stage
	Resume     bool
}

// Runner executes a Task; the pool itself is agnostic to what running a
// task means, so tests can substitute a no-op runner without pulling in the
// full orchestrator.
type Runner interface {
	RunTask(ctx context.Context, t Task) error
}

// Broker is the at-least-once delivery abstraction a Pool dispatches from.
// The in-memory implementation (broker.go) is what internal/bootstrap
// wires up for both binaries; a Redis-streams backed one could satisfy the same
// interface without the Pool changing.
type Broker interface {
	Enqueue(ctx context.Context, t Task) error
	Dequeue(ctx context.Context) (Task, bool, error)
	Ack(ctx context.Context, t Task) error
}

// Pool is C5: N workers pulling from a Broker, refusing to dispatch two
// tasks for the same project concurrently (§5 "per-project concurrency 1"),
// enforced with InFlight.
type Pool struct {
	broker   Broker
	runner   Runner
	inFlight *InFlight[context.CancelFunc]

	concurrency int

	mu      sync.Mutex
	dedup   map[uuid.UUID]struct{} // task ids currently being processed, for at-least-once dedup
	stopped chan struct{}
	wg      sync.WaitGroup
}

// NewPool builds a Pool with concurrency workers, defaulting to 1 if
// concurrency <= 0 so a misconfigured deploy still makes forward progress.
func NewPool(broker Broker, runner Runner, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{
		broker:      broker,
		runner:      runner,
		inFlight:    NewInFlight[context.CancelFunc](),
		concurrency: concurrency,
		dedup:       make(map[uuid.UUID]struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start launches the worker goroutines. It returns immediately; call Stop
// to wait for in-flight tasks to drain.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
}

// Stop signals every worker to exit after its current task and blocks until
// they do.
func (p *Pool) Stop() {
	close(p.stopped)
	p.wg.Wait()
}

// Enqueue submits a task to the broker for later dispatch.
func (p *Pool) Enqueue(ctx context.Context, t Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	metrics.Metrics.PoolQueueDepth.WithLabelValues(t.Priority.String()).Inc()
	return p.broker.Enqueue(ctx, t)
}

// Cancel cancels the in-flight run for projectID, if this process currently
// has one running, mirroring pipeline.Orchestrator.Cancel's no-op-on-absent
// semantics (§8 "Cancel after terminal is a no-op").
func (p *Pool) Cancel(projectID uuid.UUID) bool {
	cancel, ok := p.inFlight.Get(projectID)
	if !ok {
		return false
	}
	cancel()
	return true
}

// InFlightCount reports how many projects currently have a task running in
// this process.
func (p *Pool) InFlightCount() int {
	return p.inFlight.Len()
}

func (p *Pool) workerLoop(ctx context.Context, workerIdx int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopped:
			return
		case <-ctx.Done():
			return
		default:
		}

		task, ok, err := p.broker.Dequeue(ctx)
		if err != nil {
			log.NoID("pool worker dequeue failed", "worker", workerIdx, "err", err.Error())
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if p.inFlight.Has(task.ProjectID) {
			// Another worker already owns this project; re-enqueue and move on
			// rather than block, preserving per-project concurrency 1 (§5).
			_ = p.broker.Enqueue(ctx, task)
			continue
		}

		p.dispatch(ctx, task)
	}
}

func (p *Pool) dispatch(ctx context.Context, task Task) {
	p.mu.Lock()
	if _, seen := p.dedup[task.ID]; seen {
		p.mu.Unlock()
		return
	}
	p.dedup[task.ID] = struct{}{}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.dedup, task.ID)
		p.mu.Unlock()
	}()

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.inFlight.Store(task.ProjectID, cancel)
	defer p.inFlight.Remove(task.ProjectID)

	metrics.Metrics.PoolWorkersBusy.Inc()
	metrics.Metrics.ProjectsInFlight.Set(float64(p.inFlight.Len()))
	metrics.Metrics.PoolTasksDispatched.WithLabelValues(string(task.Kind), task.Priority.String()).Inc()
	start := time.Now()

	err := recovered(func() (struct{}, error) {
		return struct{}{}, p.runner.RunTask(taskCtx, task)
	})

	metrics.Metrics.PoolTaskDurationSec.WithLabelValues(string(task.Kind)).Observe(time.Since(start).Seconds())
	metrics.Metrics.PoolWorkersBusy.Dec()
	metrics.Metrics.ProjectsInFlight.Set(float64(p.inFlight.Len() - 1))

	if err != nil {
		metrics.Metrics.PoolTasksFailed.WithLabelValues(string(task.Kind), string(errkind.KindOf(err))).Inc()
		log.LogError(task.ProjectID.String(), "task failed", err, "task_id", task.ID.String())
	}
	_ = p.broker.Ack(ctx, task)
}

// recovered converts a panicking task run into an error instead of taking
// down a worker goroutine, mirroring the teacher's recovered[T] helper
// (pipeline/coordinator.go).
func recovered[T any](f func() (T, error)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.NoID("panic recovered in pool worker", "err", rec, "trace", string(debug.Stack()))
			err = fmt.Errorf("panic in task runner: %v", rec)
		}
	}()
	_, err = f()
	return err
}
