// Package pipeline implements C4, the six-stage orchestrator. It replaces
// the teacher's Coordinator (pipeline/coordinator.go), which dispatched a
// fixed ffmpeg/mediaconvert/Mist-trigger Handler interface per upload job,
// with a small sum type Stage plus a handler table, per the source
// material's explicit redesign guidance: the orchestrator owns sequencing,
// progress, cancellation, and failure handling; each StageHandler owns only
// its own precondition/work/postcondition contract.
package pipeline

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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits one span per stage execution, grounded in ManuGH-xg2g's use
// of otel spans around request-path work.
var tracer = otel.Tracer("github.com/clipforge/highlighter/internal/pipeline")

// Summary is what a stage hands back to the orchestrator on success: counts
// for logging/metrics and any non-fatal warnings, mirroring the teacher's
// HandlerOutput but generalized beyond a single "transcode result" shape.
type Summary struct {
	Counts   map[string]int
	Warnings []string
}

// RunContext is threaded through every StageHandler call: the project id,
// its current settings, the shared ports, and a cancellation-aware context.
type RunContext struct {
	Ctx       context.Context
	ProjectID uuid.UUID
	Project   *domain.Project
	Content   ContentStore
	Caps      Capabilities
	Store     ProjectStore
	Progress  ProgressPublisher
}

// StageHandler executes one stage's precondition → work → postcondition
// contract (§4.4.2) and returns a Summary or an error. Implementations must
// not retain any in-memory state across calls; the next stage reads only
// on-disk artifacts, which is what makes RunOptions.StartAtStage meaningful.
type StageHandler func(rc *RunContext) (Summary, error)

// RunOptions controls where Run begins.
type RunOptions struct {
	StartAtStage domain.Stage
	Resume       bool
}

// Orchestrator owns the stage handler table and the set of in-flight runs.
type Orchestrator struct {
	handlers map[domain.Stage]StageHandler

	store    ProjectStore
	content  ContentStore
	progress ProgressPublisher
	caps     Capabilities
	sync     DataSyncer

	stageTimeouts map[domain.Stage]time.Duration

	mu     sync.Mutex
	cancel map[uuid.UUID]context.CancelFunc
}

// NewOrchestrator builds an Orchestrator with the standard six-stage
// handler table.
func NewOrchestrator(store ProjectStore, content ContentStore, progress ProgressPublisher, caps Capabilities, syncer DataSyncer, stageTimeouts map[domain.Stage]time.Duration) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		content:       content,
		progress:      progress,
		caps:          caps,
		sync:          syncer,
		stageTimeouts: stageTimeouts,
		cancel:        make(map[uuid.UUID]context.CancelFunc),
	}
	o.handlers = map[domain.Stage]StageHandler{
		domain.StageIngest:    o.runIngest,
		domain.StageSubtitle:  o.runSubtitle,
		domain.StageAnalyze:   o.runAnalyze,
		domain.StageHighlight: o.runHighlight,
		domain.StageExport:    o.runExport,
		domain.StageDone:      o.runDone,
	}
	return o
}

// Run executes every stage from opts.StartAtStage to DONE for one project.
// It blocks until the run reaches a terminal outcome. Per §4.4.1 it is only
// safe to call once per project at a time; the worker pool enforces this by
// construction (per-project concurrency 1, §5), but Run also guards against
// being called twice for the same project from the same process.
func (o *Orchestrator) Run(ctx context.Context, projectID uuid.UUID, opts RunOptions) error {
	runCtx, cancel, err := o.beginRun(ctx, projectID)
	if err != nil {
		return err
	}
	defer o.endRun(projectID)
	defer cancel()

	project, err := o.store.GetProject(runCtx, projectID)
	if err != nil {
		return err
	}

	start := opts.StartAtStage
	if start == "" {
		start = domain.StageIngest
	}

	for _, stage := range domain.Stages {
		if stage.Index() < start.Index() {
			continue
		}
		if err := o.runStage(runCtx, project, stage); err != nil {
			return o.fail(ctx, project, stage, err)
		}
	}

	return o.complete(ctx, project)
}

func (o *Orchestrator) beginRun(ctx context.Context, projectID uuid.UUID) (context.Context, context.CancelFunc, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.cancel[projectID]; running {
		return nil, nil, errkind.New(errkind.Busy, "project already has a run in flight", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel[projectID] = cancel
	return runCtx, cancel, nil
}

func (o *Orchestrator) endRun(projectID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancel, projectID)
}

// Cancel signals the in-flight run for projectID, if any, per §4.4.5.
// Cancel after a terminal status is a no-op and returns false (§8 laws).
func (o *Orchestrator) Cancel(projectID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel, ok := o.cancel[projectID]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (o *Orchestrator) runStage(ctx context.Context, project *domain.Project, stage domain.Stage) error {
	if err := ctx.Err(); err != nil {
		return errkind.New(errkind.Cancelled, "run cancelled before stage "+string(stage), err)
	}

	handler, ok := o.handlers[stage]
	if !ok {
		return errkind.New(errkind.Internal, "no handler registered for stage "+string(stage), nil)
	}

	stageCtx, stageCancel := context.WithTimeout(ctx, o.stageTimeouts[stage])
	defer stageCancel()

	stageCtx, span := tracer.Start(stageCtx, "pipeline.stage."+string(stage),
		trace.WithAttributes(attribute.String("project_id", project.ID.String())))
	defer span.End()

	log.AddContext(project.ID.String(), "stage", string(stage))
	o.emitBoundary(stageCtx, project.ID, stage, true)

	start := time.Now()
	summary, err := recovered(func() (Summary, error) {
		rc := &RunContext{Ctx: stageCtx, ProjectID: project.ID, Project: project, Content: o.content, Caps: o.caps, Store: o.store, Progress: o.progress}
		return handler(rc)
	})
	duration := time.Since(start)
	metrics.Metrics.StageDurationSec.WithLabelValues(string(stage)).Observe(duration.Seconds())

	if err != nil {
		if stageCtx.Err() != nil && ctx.Err() == nil {
			err = errkind.New(errkind.Unrecoverable, fmt.Sprintf("stage %s timed out after %s", stage, o.stageTimeouts[stage]), err)
		}
		metrics.Metrics.StageFailures.WithLabelValues(string(stage), string(errkind.KindOf(err))).Inc()
		span.RecordError(err)
		return err
	}

	if err := o.store.SetStageProgress(ctx, project.ID, stage, stageEndPercent(stage)); err != nil {
		return err
	}
	o.emitBoundary(ctx, project.ID, stage, false)

	if len(summary.Warnings) > 0 {
		log.Warn(project.ID.String(), "stage completed with warnings", "stage", string(stage), "warnings", summary.Warnings)
	}
	return nil
}

// emitBoundary publishes the entering/leaving progress event for a stage
// per §4.4.3: entering emits sum_of_prior_weights, leaving emits
// sum_of_prior_weights + current_stage_weight - 1 (DONE's leaving event is
// the only one that ever reaches 100, handled by stageEndPercent).
func (o *Orchestrator) emitBoundary(ctx context.Context, projectID uuid.UUID, stage domain.Stage, entering bool) {
	percent := domain.PriorWeight(stage)
	if !entering {
		percent = stageEndPercent(stage)
	}
	ev := domain.ProgressEvent{
		ProjectID:   projectID,
		Stage:       stage,
		Percent:     percent,
		TimestampMs: time.Now().UnixMilli(),
	}
	if err := o.progress.Publish(ctx, ev); err != nil {
		log.Warn(projectID.String(), "failed publishing progress event", "stage", string(stage), "err", err.Error())
	}
	metrics.Metrics.ProgressPublished.WithLabelValues(string(stage)).Inc()
}

func stageEndPercent(stage domain.Stage) int {
	if stage == domain.StageDone {
		return 100
	}
	return domain.PriorWeight(stage) + domain.Weight[stage] - 1
}

func (o *Orchestrator) fail(ctx context.Context, project *domain.Project, stage domain.Stage, err error) error {
	if errkind.Is(err, errkind.Cancelled) {
		_ = o.store.CompareAndSwapStatus(ctx, project.ID, project.Status, domain.ProjectCancelled, nil)
		o.publishTerminal(ctx, project.ID, stage, "cancelled")
		return err
	}

	_ = o.store.SetError(ctx, project.ID, domain.ErrorRecord{Stage: stage, Message: err.Error()})
	_ = o.store.CompareAndSwapStatus(ctx, project.ID, project.Status, domain.ProjectFailed, nil)
	o.publishTerminal(ctx, project.ID, stage, "failed")
	log.LogError(project.ID.String(), "stage failed, project marked FAILED", err, "stage", string(stage))
	return err
}

func (o *Orchestrator) complete(ctx context.Context, project *domain.Project) error {
	if o.sync != nil {
		if err := o.sync.Sync(ctx, project.ID); err != nil {
			// Data-sync failures never re-fail a COMPLETED project (§4.4.6/§7).
			_ = o.store.SetSyncWarning(ctx, project.ID, err.Error())
			log.Warn(project.ID.String(), "post-pipeline data sync failed, project still COMPLETED", "err", err.Error())
		}
	}
	if err := o.store.CompareAndSwapStatus(ctx, project.ID, project.Status, domain.ProjectCompleted, nil); err != nil {
		return err
	}
	o.publishTerminal(ctx, project.ID, domain.StageDone, "completed")
	return nil
}

func (o *Orchestrator) publishTerminal(ctx context.Context, projectID uuid.UUID, stage domain.Stage, status string) {
	ev := domain.ProgressEvent{
		ProjectID:   projectID,
		Stage:       stage,
		Percent:     0,
		Message:     status,
		TimestampMs: time.Now().UnixMilli(),
	}
	if status == "failed" || status == "cancelled" {
		ev.Stage = domain.StageError
	}
	if err := o.progress.Publish(ctx, ev); err != nil {
		log.Warn(projectID.String(), "failed publishing terminal progress event", "status", status, "err", err.Error())
	}
}

// recovered runs f, converting any panic into an error, mirroring the
// teacher's recovered[T] helper (pipeline/coordinator.go) used to keep a
// panicking stage handler from taking down the worker goroutine.
func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.NoID("panic recovered in stage handler", "err", rec, "trace", string(debug.Stack()))
			err = fmt.Errorf("panic in stage handler: %v", rec)
		}
	}()
	return f()
}
