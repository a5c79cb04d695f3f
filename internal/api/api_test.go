package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeProjects struct {
	byID map[uuid.UUID]*domain.Project
}

func newFakeProjects() *fakeProjects { return &fakeProjects{byID: map[uuid.UUID]*domain.Project{}} }

func (f *fakeProjects) CreateProject(_ context.Context, name, description string, category domain.Category, source domain.Source, settings map[string]interface{}) (*domain.Project, error) {
	p := &domain.Project{ID: uuid.New(), Name: name, Description: description, Category: category, Source: source, Settings: settings, Status: domain.ProjectPending}
	f.byID[p.ID] = p
	return p, nil
}

func (f *fakeProjects) GetProject(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, notFoundErr("project not found")
	}
	return p, nil
}

func (f *fakeProjects) ListProjects(context.Context) ([]*domain.Project, error) {
	out := make([]*domain.Project, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProjects) DeleteProject(_ context.Context, id uuid.UUID) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeProjects) SetSyncWarning(_ context.Context, id uuid.UUID, warning string) error {
	if p, ok := f.byID[id]; ok {
		p.SyncWarning = warning
	}
	return nil
}

type fakeTasks struct{}

func (fakeTasks) CreateTask(_ context.Context, projectID uuid.UUID, kind domain.TaskKind) (*domain.Task, error) {
	return &domain.Task{ID: uuid.New(), ProjectID: projectID, Kind: kind, Status: domain.TaskPending}, nil
}

type fakeClips struct {
	byProject map[uuid.UUID][]*domain.Clip
}

func (f *fakeClips) ListClips(_ context.Context, projectID uuid.UUID) ([]*domain.Clip, error) {
	return f.byProject[projectID], nil
}

func (f *fakeClips) GetClip(_ context.Context, id uuid.UUID) (*domain.Clip, error) {
	for _, clips := range f.byProject {
		for _, c := range clips {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return nil, notFoundErr("clip not found")
}

type fakeCollections struct{}

func (fakeCollections) ListCollections(context.Context, uuid.UUID) ([]*domain.Collection, error) {
	return nil, nil
}
func (fakeCollections) ReorderClips(context.Context, uuid.UUID, []uuid.UUID) error { return nil }

type fakeContent struct{}

func (fakeContent) Save(uuid.UUID, string, io.Reader) (string, error)    { return "/data/video.mp4", nil }
func (fakeContent) Open(string) (io.ReadCloser, error)                   { return io.NopCloser(strings.NewReader("video-bytes")), nil }
func (fakeContent) Exists(string) bool                                  { return true }
func (fakeContent) DeleteProject(uuid.UUID) error                       { return nil }

type fakePool struct {
	enqueued []worker.Task
}

func (f *fakePool) Enqueue(_ context.Context, t worker.Task) error {
	f.enqueued = append(f.enqueued, t)
	return nil
}
func (f *fakePool) Cancel(uuid.UUID) bool { return true }

type fakeSyncer struct{}

func (fakeSyncer) Sync(context.Context, uuid.UUID) error { return nil }

func notFoundErr(msg string) error {
	return errkind.New(errkind.NotFound, msg, nil)
}

func newTestAPI() (*API, *fakeProjects, *fakePool) {
	projects := newFakeProjects()
	pool := &fakePool{}
	a := &API{
		Projects:           projects,
		Tasks:              fakeTasks{},
		Clips:              &fakeClips{byProject: map[uuid.UUID][]*domain.Clip{}},
		Collections:        fakeCollections{},
		Content:            fakeContent{},
		Pool:               pool,
		Syncer:             fakeSyncer{},
		Gateway:            http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
		RateLimitPerMinute: 600,
	}
	return a, projects, pool
}

func TestCreateProjectFromURLThenGet(t *testing.T) {
	a, _, _ := newTestAPI()
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(createProjectRequest{
		Name:      "demo",
		Category:  "general",
		RemoteURL: "https://example.com/video.mp4",
	})
	resp, err := http.Post(srv.URL+"/projects", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created projectResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	getResp, err := http.Get(srv.URL + "/projects/" + created.ID.String())
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestCreateProjectFromURLRejectsMissingRemoteURL(t *testing.T) {
	a, _, _ := newTestAPI()
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(createProjectRequest{Name: "demo", Category: "general"})
	resp, err := http.Post(srv.URL+"/projects", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessProjectEnqueuesTask(t *testing.T) {
	a, projects, pool := newTestAPI()
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	project, err := projects.CreateProject(context.Background(), "demo", "", domain.CategoryGeneral, domain.Source{Kind: domain.SourceLocalUpload}, nil)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/projects/"+project.ID.String()+"/process", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, pool.enqueued, 1)
	require.Equal(t, domain.StageIngest, pool.enqueued[0].StartStage)
}

func TestRequireBearerTokenRejectsUnauthenticated(t *testing.T) {
	a, _, _ := newTestAPI()
	a.APIToken = "secret"
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
