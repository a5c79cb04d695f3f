// Package api implements C8, the control surface: a thin handler layer that
// validates input and calls straight through to a repository or the worker
// pool, never performing pipeline work inline (§4.8). Handler shape and the
// validate-then-delegate discipline are grounded in the teacher's handlers
// package (handlers/handlers.go), generalized from the teacher's upload/
// transcode/playback handlers to this system's project/clip/collection
// surface. Every dependency is declared as a narrow interface here, the
// same "accept interfaces" boundary internal/pipeline and internal/datasync
// use against internal/store, so handlers can be exercised against fakes
// without a database.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/clipforge/highlighter/internal/apimiddleware"
	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ProjectStore is the slice of C1 the control surface needs for project CRUD.
type ProjectStore interface {
	CreateProject(ctx context.Context, name, description string, category domain.Category, source domain.Source, settings map[string]interface{}) (*domain.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	ListProjects(ctx context.Context) ([]*domain.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
	SetSyncWarning(ctx context.Context, id uuid.UUID, warning string) error
}

// TaskStore is the slice of C1 needed to record a newly enqueued task.
type TaskStore interface {
	CreateTask(ctx context.Context, projectID uuid.UUID, kind domain.TaskKind) (*domain.Task, error)
}

// ClipStore is the slice of C1 needed for clip listing and file streaming.
type ClipStore interface {
	ListClips(ctx context.Context, projectID uuid.UUID) ([]*domain.Clip, error)
	GetClip(ctx context.Context, id uuid.UUID) (*domain.Clip, error)
}

// CollectionStore is the slice of C1 needed for collection listing and reorder.
type CollectionStore interface {
	ListCollections(ctx context.Context, projectID uuid.UUID) ([]*domain.Collection, error)
	ReorderClips(ctx context.Context, collectionID uuid.UUID, newOrder []uuid.UUID) error
}

// ContentStore is the slice of C2 needed to stage uploads and stream clips.
type ContentStore interface {
	Save(projectID uuid.UUID, relPath string, r io.Reader) (string, error)
	Open(absPath string) (io.ReadCloser, error)
	Exists(absPath string) bool
	DeleteProject(projectID uuid.UUID) error
}

// Pool is the slice of C5 needed to enqueue and cancel runs.
type Pool interface {
	Enqueue(ctx context.Context, t worker.Task) error
	Cancel(projectID uuid.UUID) bool
}

// Syncer is C6, invoked directly for a manual re-sync (§4.8).
type Syncer interface {
	Sync(ctx context.Context, projectID uuid.UUID) error
}

// API wires together every port the control surface needs.
type API struct {
	Projects    ProjectStore
	Tasks       TaskStore
	Clips       ClipStore
	Collections CollectionStore
	Content     ContentStore
	Pool        Pool
	Syncer      Syncer
	Gateway     http.Handler

	APIToken           string
	RateLimitPerMinute int
}

// Router builds the chi.Router mounting every route of §6, wrapped in the
// logging/CORS/rate-limit/auth middleware stack.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(apimiddleware.LogRequest)
	r.Use(apimiddleware.AllowCORS)
	r.Use(apimiddleware.RateLimit(a.RateLimitPerMinute))

	r.Handle("/ws", a.Gateway)

	r.Group(func(protected chi.Router) {
		if a.APIToken != "" {
			protected.Use(apimiddleware.RequireBearerToken(a.APIToken))
		}

		protected.Route("/projects", func(pr chi.Router) {
			pr.Post("/", a.createProject)
			pr.Get("/", a.listProjects)
			pr.Route("/{projectID}", func(one chi.Router) {
				one.Get("/", a.getProject)
				one.Delete("/", a.deleteProject)
				one.Post("/process", a.processProject)
				one.Post("/retry", a.retryProject)
				one.Post("/cancel", a.cancelProject)
				one.Post("/sync", a.syncProject)
				one.Get("/clips", a.listClips)
				one.Get("/collections", a.listCollections)
			})
		})

		protected.Patch("/collections/{collectionID}/reorder", a.reorderCollection)
		protected.Get("/files/projects/{projectID}/clips/{clipID}", a.streamClip)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
