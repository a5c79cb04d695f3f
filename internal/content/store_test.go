package content

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveThenOpenRoundTrips(t *testing.T) {
	s := newTestStore(t)
	projectID := uuid.New()

	path, err := s.Save(projectID, "raw/source.mp4", strings.NewReader("fake video bytes"))
	require.NoError(t, err)
	require.Equal(t, s.PathFor(projectID, "raw/source.mp4"), path)
	require.True(t, s.Exists(path))

	r, err := s.Open(path)
	require.NoError(t, err)
	defer r.Close()
}

func TestOpenMissingFileReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Open(s.PathFor(uuid.New(), "raw/missing.mp4"))
	require.Error(t, err)
	require.Equal(t, errkind.NotFound, errkind.KindOf(err))
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	s := newTestStore(t)
	projectID := uuid.New()
	_, err := s.Save(projectID, "processing/chunks.json", strings.NewReader("{}"))
	require.NoError(t, err)

	entries, err := os.ReadDir(s.tempDir())
	require.NoError(t, err)
	require.Empty(t, entries, "Save must rename out of data/temp, not leave the staged file behind")
}

func TestProjectSizeSumsWrittenFiles(t *testing.T) {
	s := newTestStore(t)
	projectID := uuid.New()
	_, err := s.Save(projectID, "raw/source.mp4", strings.NewReader("0123456789"))
	require.NoError(t, err)
	_, err = s.Save(projectID, "metadata/clips_metadata.json", strings.NewReader("{}"))
	require.NoError(t, err)

	size, err := s.ProjectSize(projectID)
	require.NoError(t, err)
	require.Equal(t, int64(12), size)
}

func TestDeleteProjectRemovesTree(t *testing.T) {
	s := newTestStore(t)
	projectID := uuid.New()
	path, err := s.Save(projectID, "raw/source.mp4", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteProject(projectID))
	require.False(t, s.Exists(path))
}

func TestCleanupTempSucceedsOnEmptyTempDir(t *testing.T) {
	s := newTestStore(t)
	// Save always cleans up after itself, so the temp dir starts empty here;
	// this only exercises the sweep path with a 1ms age and checks it
	// returns no error.
	require.NoError(t, s.CleanupTemp(time.Millisecond))
}
