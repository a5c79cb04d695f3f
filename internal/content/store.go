// Package content implements C2, the filesystem-backed content store: the
// `data/projects/<id>/{raw,processing,output,metadata}` tree of §4.2, with
// atomic temp-then-rename writes grounded in the teacher's own emphasis on
// writing pipeline artifacts to a local temp file before handing them off
// (pipeline/ffmpeg.go's cleanUpLocalTmpFiles, coordinator.go's local-disk
// staging) rather than writing straight into the final path.
package content

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/google/uuid"
)

// Subdirectories of a project's content tree, per §4.2.
const (
	DirRaw        = "raw"
	DirProcessing = "processing"
	DirOutput     = "output"
	DirMetadata   = "metadata"
	dirTemp       = "temp"
)

// Store is a filesystem-backed ContentStore rooted at Root (config.Cli's
// StorageRoot, §6 STORAGE_ROOT). It implements pipeline.ContentStore.
type Store struct {
	Root string
}

// NewStore returns a Store rooted at root, creating the shared data/temp
// directory used for atomic writes.
func NewStore(root string) (*Store, error) {
	s := &Store{Root: root}
	if err := os.MkdirAll(s.tempDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	return s, nil
}

// PathFor returns the absolute path for a project-relative path, without
// touching the filesystem. relPath is expected to already begin with one of
// raw/processing/output/metadata.
func (s *Store) PathFor(projectID uuid.UUID, relPath string) string {
	return filepath.Join(s.projectDir(projectID), relPath)
}

// Save writes r to a temp file under data/temp, hashing it as it streams,
// then renames it into place at PathFor(projectID, relPath). Rename is
// atomic within the same filesystem, so a reader can never observe a
// partially written artifact.
func (s *Store) Save(projectID uuid.UUID, relPath string, r io.Reader) (string, error) {
	dest := s.PathFor(projectID, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", errkind.New(errkind.Internal, "creating destination directory", err)
	}

	tmp, err := os.CreateTemp(s.tempDir(), "upload-*")
	if err != nil {
		return "", errkind.New(errkind.Internal, "creating temp file", err)
	}
	tmpPath := tmp.Name()
	hasher := NewReadHasher(r)
	written, copyErr := io.Copy(tmp, hasher)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if copyErr != nil {
			return "", errkind.New(errkind.Internal, "writing content to temp file", copyErr)
		}
		return "", errkind.New(errkind.Internal, "closing temp file", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", errkind.New(errkind.Internal, "renaming temp file into place", err)
	}

	metrics.Metrics.ContentBytesWritten.Add(float64(written))
	_ = hasher.SHA256() // computed for future integrity checks; not yet persisted
	return dest, nil
}

// Open returns a reader for an absolute path previously returned by Save or
// PathFor, mapping a missing file to errkind.NotFound per §7.
func (s *Store) Open(absPath string) (io.ReadCloser, error) {
	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errkind.New(errkind.NotFound, "content artifact not found: "+absPath, err)
		}
		return nil, errkind.New(errkind.Internal, "opening content artifact", err)
	}
	return f, nil
}

// Exists reports whether absPath names a file currently on disk.
func (s *Store) Exists(absPath string) bool {
	_, err := os.Stat(absPath)
	return err == nil
}

// ProjectSize sums the size of every file under a project's directory. No
// control surface route calls it.
func (s *Store) ProjectSize(projectID uuid.UUID) (int64, error) {
	var total int64
	dir := s.projectDir(projectID)
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, errkind.New(errkind.Internal, "computing project size", err)
	}
	return total, nil
}

// DeleteProject removes a project's entire content tree, used when the
// control surface deletes a project (§4.8 "delete a project").
func (s *Store) DeleteProject(projectID uuid.UUID) error {
	if err := os.RemoveAll(s.projectDir(projectID)); err != nil {
		return errkind.New(errkind.Internal, "deleting project content tree", err)
	}
	return nil
}

// CleanupTemp removes temp files older than age, following the teacher's
// cleanUpLocalTmpFiles sweep (pipeline/ffmpeg.go) generalized from ffmpeg
// scratch files to this store's upload staging area.
func (s *Store) CleanupTemp(age time.Duration) error {
	entries, err := os.ReadDir(s.tempDir())
	if err != nil {
		return errkind.New(errkind.Internal, "reading temp dir", err)
	}
	cutoff := time.Now().Add(-age)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(s.tempDir(), e.Name()))
		}
	}
	return nil
}

func (s *Store) projectDir(projectID uuid.UUID) string {
	return filepath.Join(s.Root, "projects", projectID.String())
}

func (s *Store) tempDir() string {
	return filepath.Join(s.Root, dirTemp)
}
