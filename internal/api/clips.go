package api

import (
	"net/http"

	"github.com/clipforge/highlighter/internal/errkind"
)

// listClips implements "GET /projects/{id}/clips" (§6).
func (a *API) listClips(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	clips, err := a.Clips.ListClips(r.Context(), projectID)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	out := make([]clipResponse, 0, len(clips))
	for _, c := range clips {
		out = append(out, toClipResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}
