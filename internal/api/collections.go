package api

import (
	"encoding/json"
	"net/http"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// listCollections implements "GET /projects/{id}/collections" (§6).
func (a *API) listCollections(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseProjectID(r)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	collections, err := a.Collections.ListCollections(r.Context(), projectID)
	if err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	out := make([]collectionResponse, 0, len(collections))
	for _, c := range collections {
		out = append(out, toCollectionResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// reorderCollection implements "PATCH /collections/{id}/reorder": the body
// is a full permutation of the collection's existing clip ids (§6, §8
// "reorder preserves the multiset of clip ids").
func (a *API) reorderCollection(w http.ResponseWriter, r *http.Request) {
	collectionID, err := uuid.Parse(chi.URLParam(r, "collectionID"))
	if err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "invalid collection id", err))
		return
	}

	var req reorderCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "decoding request body", err))
		return
	}
	if err := validate.Struct(req); err != nil {
		errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, err.Error(), err))
		return
	}

	newOrder := make([]uuid.UUID, 0, len(req.ClipIDs))
	for _, raw := range req.ClipIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			errkind.WriteHTTP(w, errkind.New(errkind.InvalidArgument, "invalid clip id in reorder body", err))
			return
		}
		newOrder = append(newOrder, id)
	}

	if err := a.Collections.ReorderClips(r.Context(), collectionID, newOrder); err != nil {
		errkind.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
