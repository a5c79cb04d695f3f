package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeContent is a minimal in-memory ContentStore double, grounded on the
// teacher's in-memory test doubles for its clients package.
type fakeContent struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeContent() *fakeContent { return &fakeContent{files: map[string][]byte{}} }

func (f *fakeContent) key(projectID uuid.UUID, relPath string) string {
	return projectID.String() + "/" + relPath
}

func (f *fakeContent) Save(projectID uuid.UUID, relPath string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(projectID, relPath)
	f.files[k] = b
	return k, nil
}

func (f *fakeContent) Open(absPath string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[absPath]
	if !ok {
		return nil, fmt.Errorf("not found: %s", absPath)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeContent) Exists(absPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[absPath]
	return ok
}

func (f *fakeContent) PathFor(projectID uuid.UUID, relPath string) string {
	return f.key(projectID, relPath)
}

// fakeStore is a minimal ProjectStore double tracking a single project.
type fakeStore struct {
	mu      sync.Mutex
	project *domain.Project
	errRec  *domain.ErrorRecord
}

func (s *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.project
	return &cp, nil
}

func (s *fakeStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from, to domain.ProjectStatus, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.Status = to
	return nil
}

func (s *fakeStore) SetStageProgress(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project.CurrentStage = stage
	s.project.Progress = progress
	return nil
}

func (s *fakeStore) SetError(ctx context.Context, id uuid.UUID, rec domain.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errRec = &rec
	return nil
}

func (s *fakeStore) SetSyncWarning(ctx context.Context, id uuid.UUID, warning string) error {
	return nil
}

// fakeProgress records every published event.
type fakeProgress struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (f *fakeProgress) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// fakeLLM always succeeds, returning zero-value structured output.
type fakeLLM struct{}

func (fakeLLM) Call(ctx context.Context, op LLMOperation, input interface{}, out interface{}) error {
	switch v := out.(type) {
	case *[]outlinePoint:
		*v = []outlinePoint{{Topic: "intro", Summary: "point one"}}
	case *[]topicInterval:
		*v = []topicInterval{{StartTime: 0, EndTime: 5, Topic: "intro", ChunkIdx: 0}}
	case *struct {
		Score  float64 `json:"score"`
		Reason string  `json:"reasons"`
	}:
		v.Score = 0.9
		v.Reason = "engaging moment"
	case *string:
		*v = "Great Title"
	case *[]clusterEntry:
		*v = []clusterEntry{{Title: "Best Moments", Intervals: []int{0}}}
	}
	return nil
}

type fakeCutter struct{}

func (fakeCutter) Cut(ctx context.Context, sourcePath string, startSec, endSec float64, dstPath string) error {
	return nil
}
func (fakeCutter) Concat(ctx context.Context, clipPaths []string, dstPath string) error { return nil }

func newTestOrchestrator(t *testing.T, store *fakeStore, content *fakeContent, progress *fakeProgress) *Orchestrator {
	t.Helper()
	timeouts := map[domain.Stage]time.Duration{}
	for _, s := range domain.Stages {
		timeouts[s] = 5 * time.Second
	}
	caps := Capabilities{LLM: fakeLLM{}, Cutter: fakeCutter{}}
	return NewOrchestrator(store, content, progress, caps, nil, timeouts)
}

func TestRunFailsWhenIngestArtifactMissing(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStore{project: &domain.Project{ID: projectID, Status: domain.ProjectProcessing, VideoPath: "video.mp4"}}
	content := newFakeContent()
	progress := &fakeProgress{}
	o := newTestOrchestrator(t, store, content, progress)

	err := o.Run(context.Background(), projectID, RunOptions{})
	require.Error(t, err)
	require.Equal(t, domain.ProjectFailed, store.project.Status)
	require.NotNil(t, store.errRec)
	require.Equal(t, domain.StageIngest, store.errRec.Stage)
}

func TestRunHappyPathReachesDoneAndCompletes(t *testing.T) {
	projectID := uuid.New()
	content := newFakeContent()
	_, err := content.Save(projectID, "raw/video.mp4", bytes.NewReader([]byte("fake video bytes")))
	require.NoError(t, err)
	_, err = content.Save(projectID, "raw/subtitle.srt", bytes.NewReader([]byte(sampleSRT)))
	require.NoError(t, err)

	store := &fakeStore{project: &domain.Project{ID: projectID, Status: domain.ProjectProcessing, VideoPath: "video.mp4"}}
	progress := &fakeProgress{}
	o := newTestOrchestrator(t, store, content, progress)

	err = o.Run(context.Background(), projectID, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, domain.ProjectCompleted, store.project.Status)
	require.True(t, content.Exists(content.PathFor(projectID, "metadata/clips_metadata.json")))
	require.True(t, content.Exists(content.PathFor(projectID, "metadata/collections_metadata.json")))

	require.NotEmpty(t, progress.events)
	last := progress.events[len(progress.events)-1]
	require.Equal(t, "completed", last.Message)
}

func TestCancelAfterTerminalIsNoOp(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStore{project: &domain.Project{ID: projectID, Status: domain.ProjectCompleted}}
	o := newTestOrchestrator(t, store, newFakeContent(), &fakeProgress{})

	require.False(t, o.Cancel(projectID), "no run in flight, so Cancel must be a no-op returning false")
}

func TestRunRefusesConcurrentRunForSameProject(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStore{project: &domain.Project{ID: projectID, Status: domain.ProjectProcessing}}
	o := newTestOrchestrator(t, store, newFakeContent(), &fakeProgress{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := o.beginRun(ctx, projectID)
	require.NoError(t, err)

	_, _, err = o.beginRun(ctx, projectID)
	require.Error(t, err, "a second concurrent run for the same project must be refused as Busy")
}
