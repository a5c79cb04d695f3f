package pipeline

import (
	"context"
	"io"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/google/uuid"
)

// ProjectStore is the narrow slice of C1 the orchestrator needs: reading a
// project's current state and mutating it through the CAS status update and
// progress/error writers of §4.1/§4.4.4. The concrete implementation lives
// in internal/store; the orchestrator only ever sees this interface, the
// teacher's "accept interfaces" convention applied to the pipeline/store
// boundary that the monolithic Coordinator used to cross directly.
type ProjectStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to domain.ProjectStatus, fields map[string]interface{}) error
	SetStageProgress(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int) error
	SetError(ctx context.Context, id uuid.UUID, rec domain.ErrorRecord) error
	SetSyncWarning(ctx context.Context, id uuid.UUID, warning string) error
}

// ContentStore is the C2 slice the orchestrator and its stages need.
type ContentStore interface {
	Save(projectID uuid.UUID, relPath string, r io.Reader) (string, error)
	Open(absPath string) (io.ReadCloser, error)
	Exists(absPath string) bool
	PathFor(projectID uuid.UUID, relPath string) string
}

// ProgressPublisher is the C3 slice: one method, publish an event on the
// project's canonical channel.
type ProgressPublisher interface {
	Publish(ctx context.Context, ev domain.ProgressEvent) error
}

// DataSyncer is C6, invoked by the orchestrator after DONE per §4.4.6 and
// exposed separately so a manual re-sync (§4.8 "sync data for a project")
// can call the same method outside of a full run.
type DataSyncer interface {
	Sync(ctx context.Context, projectID uuid.UUID) error
}
