// Package datasync implements C6: reconciling the two JSON artifacts EXPORT
// writes (clips_metadata.json, collections_metadata.json) into the
// metadata store, translating each stage's natural original_id into a
// generated uuid clip id. It implements pipeline.DataSyncer.
//
// The idempotent delete-then-reinsert shape is grounded in the teacher's
// Jobs cache discipline (cache/cache.go's Store/Remove pair is always safe
// to call twice), generalized here from an in-memory cache entry to a
// Postgres table per project.
package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/google/uuid"
)

// clipArtifact mirrors metadata/clips_metadata.json's entry shape (§4.6).
type clipArtifact struct {
	OriginalID   string                 `json:"original_id"`
	Title        string                 `json:"title"`
	Score        float64                `json:"score"`
	StartTime    float64                `json:"start_time"`
	EndTime      float64                `json:"end_time"`
	Metadata     map[string]interface{} `json:"metadata"`
	ArtifactPath string                 `json:"artifact_path"`
}

// collectionArtifact mirrors metadata/collections_metadata.json's entry
// shape, referencing clips by their original_id.
type collectionArtifact struct {
	OriginalID  string   `json:"original_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ClipIDs     []string `json:"clip_ids"`
	ExportPath  string   `json:"export_path,omitempty"`
}

// ClipWriter and CollectionWriter are the narrow store slices Sync needs,
// each an idempotent whole-project replace.
type ClipWriter interface {
	ReplaceAll(ctx context.Context, projectID uuid.UUID, clips []*domain.Clip) error
}

type CollectionWriter interface {
	ReplaceAll(ctx context.Context, projectID uuid.UUID, collections []*domain.Collection) error
}

// Syncer implements pipeline.DataSyncer.
type Syncer struct {
	content     readOpener
	clips       ClipWriter
	collections CollectionWriter
}

// readOpener is satisfied by internal/content.Store.
type readOpener interface {
	PathFor(projectID uuid.UUID, relPath string) string
	Open(absPath string) (io.ReadCloser, error)
}

// NewSyncer builds a Syncer. content must be an internal/content.Store (or
// anything satisfying the same Open/PathFor signatures).
func NewSyncer(content readOpener, clips ClipWriter, collections CollectionWriter) *Syncer {
	return &Syncer{content: content, clips: clips, collections: collections}
}

// Sync reads both metadata JSON files for projectID and reconciles them
// into the store in a single logical operation per file, translating
// original_id -> a freshly generated clip uuid so collections can reference
// their member clips by the store's real id (§4.6).
func (s *Syncer) Sync(ctx context.Context, projectID uuid.UUID) error {
	clipArtifacts, err := readJSONArtifact[[]clipArtifact](s.content, projectID, "metadata/clips_metadata.json")
	if err != nil {
		metrics.Metrics.DataSyncRuns.WithLabelValues("error").Inc()
		return err
	}
	collectionArtifacts, err := readJSONArtifact[[]collectionArtifact](s.content, projectID, "metadata/collections_metadata.json")
	if err != nil {
		metrics.Metrics.DataSyncRuns.WithLabelValues("error").Inc()
		return err
	}

	idByOriginal := make(map[string]uuid.UUID, len(clipArtifacts))
	clips := make([]*domain.Clip, 0, len(clipArtifacts))
	for _, a := range clipArtifacts {
		id := uuid.New()
		idByOriginal[a.OriginalID] = id

		// Stamp the artifact's natural id into the row's own metadata (§4.6
		// step 2) so a Clip can be traced back to its artifact after the id
		// is replaced by the generated uuid above (§3's 1:1 id mapping).
		metadata := make(map[string]interface{}, len(a.Metadata)+1)
		for k, v := range a.Metadata {
			metadata[k] = v
		}
		metadata["original_id"] = a.OriginalID

		clips = append(clips, &domain.Clip{
			ID:           id,
			ProjectID:    projectID,
			Title:        a.Title,
			Score:        a.Score,
			StartTime:    a.StartTime,
			EndTime:      a.EndTime,
			Metadata:     metadata,
			ArtifactPath: a.ArtifactPath,
		})
	}

	collections := make([]*domain.Collection, 0, len(collectionArtifacts))
	for _, a := range collectionArtifacts {
		memberIDs := make([]uuid.UUID, 0, len(a.ClipIDs))
		for _, originalID := range a.ClipIDs {
			if id, ok := idByOriginal[originalID]; ok {
				memberIDs = append(memberIDs, id)
			}
		}
		status := domain.CollectionCreated
		if a.ExportPath != "" {
			status = domain.CollectionExported
		}
		collections = append(collections, &domain.Collection{
			ID:          uuid.New(),
			ProjectID:   projectID,
			Title:       a.Title,
			Description: a.Description,
			ClipIDs:     memberIDs,
			Status:      status,
			ExportPath:  a.ExportPath,
		})
	}

	if err := s.clips.ReplaceAll(ctx, projectID, clips); err != nil {
		metrics.Metrics.DataSyncRuns.WithLabelValues("error").Inc()
		return err
	}
	metrics.Metrics.DataSyncRowsOut.WithLabelValues("clips").Add(float64(len(clips)))

	if err := s.collections.ReplaceAll(ctx, projectID, collections); err != nil {
		metrics.Metrics.DataSyncRuns.WithLabelValues("error").Inc()
		return err
	}
	metrics.Metrics.DataSyncRowsOut.WithLabelValues("collections").Add(float64(len(collections)))

	metrics.Metrics.DataSyncRuns.WithLabelValues("success").Inc()
	return nil
}

func readJSONArtifact[T any](content readOpener, projectID uuid.UUID, relPath string) (T, error) {
	var out T
	abs := content.PathFor(projectID, relPath)
	r, err := content.Open(abs)
	if err != nil {
		return out, errkind.New(errkind.Unrecoverable, fmt.Sprintf("reading %s for data sync", relPath), err)
	}
	defer r.Close()

	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, errkind.New(errkind.Internal, "decoding "+relPath, err)
	}
	return out, nil
}
