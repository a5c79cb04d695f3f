package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clipforge/highlighter/internal/content"
	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxUploadMemory = 32 << 20 // 32MiB held in memory before spilling to temp files

// createProject implements "POST /projects" (§6): either a multipart
// request carrying a video (and optional subtitle) file, or a JSON body
// naming a remote URL to download during INGEST.
func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		a.createProjectFromUpload(w, r)
		return
	}
	a.createProjectFromURL(w, r)
}

func (a *API) createProjectFromURL(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "decoding request body", err))
		return
	}
	if err := validate.Struct(req); err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, err.Error(), err))
		return
	}

	source := domain.Source{
		Kind:        domain.SourceRemoteURL,
		RemoteURL:   req.RemoteURL,
		Platform:    req.Platform,
		CookieJarID: req.CookieJarID,
	}
	project, err := a.Projects.CreateProject(r.Context(), req.Name, req.Description, domain.Category(req.Category), source, req.Settings)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (a *API) createProjectFromUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "parsing multipart form", err))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "name is required", nil))
		return
	}
	category := r.FormValue("category")
	if category == "" {
		category = string(domain.CategoryGeneral)
	}

	videoFile, _, err := r.FormFile("video")
	if err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "video file is required", err))
		return
	}
	defer videoFile.Close()

	project, err := a.Projects.CreateProject(r.Context(), name, r.FormValue("description"), domain.Category(category),
		domain.Source{Kind: domain.SourceLocalUpload}, nil)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}

	videoPath, err := a.Content.Save(project.ID, content.DirRaw+"/video.mp4", videoFile)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	project.VideoPath = videoPath

	if srtFile, _, err := r.FormFile("subtitle"); err == nil {
		defer srtFile.Close()
		subtitlePath, err := a.Content.Save(project.ID, content.DirRaw+"/subtitle.srt", srtFile)
		if err != nil {
			errkind.WriteHTTP(w, err)
			return
		}
		project.SubtitlePath = subtitlePath
	} else if err != http.ErrMissingFile {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "reading subtitle file", err))
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

// listProjects implements "GET /projects". Status filtering (§6 "filter
// status") is applied in-process rather than pushed into SQL, since the
// expected project count per deployment does not warrant a paged query
// beyond this.
func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.Projects.ListProjects(r.Context())
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}

	statusFilter := r.URL.Query().Get("status")
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		if statusFilter != "" && string(p.Status) != statusFilter {
			continue
		}
		out = append(out, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	project, err := a.Projects.GetProject(r.Context(), id)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	if err := a.Projects.DeleteProject(r.Context(), id); err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	if err := a.Content.DeleteProject(id); err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// processProject implements "POST /projects/{id}/process": create a task
// row and enqueue it on the pool starting at INGEST.
func (a *API) processProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	a.enqueueRun(w, r, id, domain.StageIngest, false)
}

// retryProject implements "POST /projects/{id}/retry": resume from the
// project's last failed stage, or INGEST if the raw source is missing
// (§6 "Retry from last failed stage (or from DOWNLOADING if raw/ missing)").
func (a *API) retryProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	project, err := a.Projects.GetProject(r.Context(), id)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}

	stage := domain.StageIngest
	if project.Error != nil && project.Error.Stage != "" && project.Error.Stage != domain.StageError {
		stage = project.Error.Stage
	}
	if project.VideoPath == "" || !a.Content.Exists(project.VideoPath) {
		stage = domain.StageIngest
	}
	a.enqueueRun(w, r, id, stage, true)
}

func (a *API) enqueueRun(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, stage domain.Stage, resume bool) {
	task, err := a.Tasks.CreateTask(r.Context(), projectID, domain.TaskProcess)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	priority := worker.PriorityProcessing
	if stage == domain.StageExport {
		priority = worker.PriorityExport
	}
	if err := a.Pool.Enqueue(r.Context(), worker.Task{
		ID:         task.ID,
		ProjectID:  projectID,
		Kind:       domain.TaskProcess,
		Priority:   priority,
		StartStage: stage,
		Resume:     resume,
	}); err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID.String()})
}

// cancelProject implements "POST /projects/{id}/cancel": signal the pool's
// in-flight run for this project, a no-op if nothing is running (§4.4.5).
func (a *API) cancelProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	cancelled := a.Pool.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// syncProject implements the manual re-sync operation of §4.8 ("sync data
// for a project"), running C6 outside of a full pipeline pass.
func (a *API) syncProject(w http.ResponseWriter, r *http.Request) {
	id, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	if err := a.Syncer.Sync(r.Context(), id); err != nil {
		if warnErr := a.Projects.SetSyncWarning(r.Context(), id, err.Error()); warnErr != nil {
			errkind.WriteHTTP(w, warnErr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"sync_warning": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseProjectID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		return uuid.Nil, errkind.New(errkind.InvalidArgument, "invalid project id", err)
	}
	return id, nil
}
