package api

import (
	"io"
	"net/http"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// streamClip implements "GET /files/projects/{id}/clips/{cid}" (§6): stream
// a clip's rendered media file from the content store.
func (a *API) streamClip(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	clipID, err := uuid.Parse(chi.URLParam(r, "clipID"))
	if err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "invalid clip id", err))
		return
	}

	clip, err := a.Clips.GetClip(r.Context(), clipID)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	if clip.ProjectID != projectID {
		errkind.WriteHTTP(w, errkind.New(errkind.NotFound, "clip does not belong to project", nil))
		return
	}
	if clip.ArtifactPath == "" {
		errkind.WriteHTTP(w, errkind.New(errkind.NotFound, "clip has no rendered artifact", nil))
		return
	}

	f, err := a.Content.Open(clip.ArtifactPath)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	if _, err := io.Copy(w, f); err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.Internal, "streaming clip file", err))
	}
}
