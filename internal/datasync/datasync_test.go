package datasync

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeContent struct {
	files map[string]string
}

func (f *fakeContent) PathFor(projectID uuid.UUID, relPath string) string {
	return projectID.String() + "/" + relPath
}

func (f *fakeContent) Open(absPath string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.files[absPath])), nil
}

type fakeClipWriter struct {
	saved []*domain.Clip
}

func (w *fakeClipWriter) ReplaceAll(ctx context.Context, projectID uuid.UUID, clips []*domain.Clip) error {
	w.saved = clips
	return nil
}

type fakeCollectionWriter struct {
	saved []*domain.Collection
}

func (w *fakeCollectionWriter) ReplaceAll(ctx context.Context, projectID uuid.UUID, collections []*domain.Collection) error {
	w.saved = collections
	return nil
}

func TestSyncTranslatesOriginalIDsIntoGeneratedClipIDs(t *testing.T) {
	projectID := uuid.New()
	content := &fakeContent{files: map[string]string{
		projectID.String() + "/metadata/clips_metadata.json": `[
			{"original_id": "clip-000", "title": "intro", "score": 0.9, "start_time": 0, "end_time": 5, "artifact_path": "/out/clip-000.mp4"},
			{"original_id": "clip-001", "title": "climax", "score": 0.95, "start_time": 10, "end_time": 20, "artifact_path": "/out/clip-001.mp4"}
		]`,
		projectID.String() + "/metadata/collections_metadata.json": `[
			{"original_id": "collection-000", "title": "Best of", "clip_ids": ["clip-000", "clip-001"]}
		]`,
	}}
	clipWriter := &fakeClipWriter{}
	collectionWriter := &fakeCollectionWriter{}
	syncer := NewSyncer(content, clipWriter, collectionWriter)

	require.NoError(t, syncer.Sync(context.Background(), projectID))

	require.Len(t, clipWriter.saved, 2)
	require.Len(t, collectionWriter.saved, 1)
	require.Len(t, collectionWriter.saved[0].ClipIDs, 2, "collection must reference both translated clip ids")

	idSet := map[uuid.UUID]bool{clipWriter.saved[0].ID: true, clipWriter.saved[1].ID: true}
	for _, id := range collectionWriter.saved[0].ClipIDs {
		require.True(t, idSet[id], "collection clip id %s must be one of the generated clip ids", id)
	}
}

func TestSyncStoresOriginalIDInClipMetadata(t *testing.T) {
	projectID := uuid.New()
	content := &fakeContent{files: map[string]string{
		projectID.String() + "/metadata/clips_metadata.json": `[
			{"original_id": "clip-000", "title": "intro", "metadata": {"speaker": "alice"}}
		]`,
		projectID.String() + "/metadata/collections_metadata.json": `[]`,
	}}
	clipWriter := &fakeClipWriter{}
	collectionWriter := &fakeCollectionWriter{}
	syncer := NewSyncer(content, clipWriter, collectionWriter)

	require.NoError(t, syncer.Sync(context.Background(), projectID))

	require.Len(t, clipWriter.saved, 1)
	clip := clipWriter.saved[0]
	require.Equal(t, "clip-000", clip.Metadata["original_id"], "the artifact's natural id must be recoverable from the stored clip's metadata")
	require.Equal(t, "alice", clip.Metadata["speaker"], "merging original_id must not drop the artifact's own metadata")
}

func TestSyncDropsUnknownClipReferences(t *testing.T) {
	projectID := uuid.New()
	content := &fakeContent{files: map[string]string{
		projectID.String() + "/metadata/clips_metadata.json":       `[{"original_id": "clip-000", "title": "intro"}]`,
		projectID.String() + "/metadata/collections_metadata.json": `[{"original_id": "collection-000", "title": "x", "clip_ids": ["clip-000", "clip-999"]}]`,
	}}
	clipWriter := &fakeClipWriter{}
	collectionWriter := &fakeCollectionWriter{}
	syncer := NewSyncer(content, clipWriter, collectionWriter)

	require.NoError(t, syncer.Sync(context.Background(), projectID))
	require.Len(t, collectionWriter.saved[0].ClipIDs, 1, "a reference to a clip id absent from clips_metadata.json must be dropped, not zero-valued")
}
