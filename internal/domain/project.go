// Package domain holds the durable entities of §3: projects, tasks, clips
// and collections, plus the wire-level progress event and the six-stage
// pipeline enumeration.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the top-level state of a Project, per the §4.4.4 diagram.
type ProjectStatus string

const (
	ProjectPending     ProjectStatus = "PENDING"
	ProjectDownloading ProjectStatus = "DOWNLOADING"
	ProjectProcessing  ProjectStatus = "PROCESSING"
	ProjectCompleted   ProjectStatus = "COMPLETED"
	ProjectFailed      ProjectStatus = "FAILED"
	ProjectCancelled   ProjectStatus = "CANCELLED"
)

// IsTerminal reports whether status can never transition again without a
// Retry.
func (s ProjectStatus) IsTerminal() bool {
	switch s {
	case ProjectCompleted, ProjectCancelled, ProjectFailed:
		return true
	default:
		return false
	}
}

// Category is a fixed enumeration tag attached to a project.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryGaming    Category = "gaming"
	CategoryEducation Category = "education"
	CategoryPodcast   Category = "podcast"
	CategoryInterview Category = "interview"
)

// SourceKind distinguishes a locally uploaded file from a remote URL.
type SourceKind string

const (
	SourceLocalUpload SourceKind = "local_upload"
	SourceRemoteURL    SourceKind = "remote_url"
)

// Source describes where the video to ingest comes from.
type Source struct {
	Kind        SourceKind `json:"kind"`
	RemoteURL   string     `json:"remote_url,omitempty"`
	Platform    string     `json:"platform,omitempty"`
	CookieJarID string     `json:"cookie_jar_id,omitempty"`
}

// ErrorRecord is the safe, human-readable error surface carried on a Project
// row, per §7 "User-visible surface".
type ErrorRecord struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// Project is the top-level unit of work (§3).
type Project struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description,omitempty"`
	Category      Category               `json:"category"`
	Source        Source                 `json:"source"`
	Status        ProjectStatus          `json:"status"`
	CurrentStage  Stage                  `json:"current_stage"`
	Progress      int                    `json:"progress"`
	Error         *ErrorRecord           `json:"error,omitempty"`
	SyncWarning   string                 `json:"sync_warning,omitempty"`
	VideoPath     string                 `json:"video_path,omitempty"`
	SubtitlePath  string                 `json:"subtitle_path,omitempty"`
	VideoDuration float64                `json:"video_duration_seconds"`
	Settings      map[string]interface{} `json:"settings,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// TaskKind is the type of unit of work a Task represents.
type TaskKind string

const (
	TaskProcess  TaskKind = "PROCESS"
	TaskDownload TaskKind = "DOWNLOAD"
	TaskExport   TaskKind = "EXPORT"
)

// TaskStatus is the lifecycle of a single Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
	TaskCancelled TaskStatus = "CANCELLED"
)

// Task belongs to exactly one Project (§3).
type Task struct {
	ID            uuid.UUID  `json:"id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	Kind          TaskKind   `json:"kind"`
	Status        TaskStatus `json:"status"`
	Progress      int        `json:"progress"`
	CurrentStep   string     `json:"current_step,omitempty"`
	WorkerID      string     `json:"worker_id,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Clip is a contiguous highlight interval (§3, GLOSSARY).
type Clip struct {
	ID           uuid.UUID              `json:"id"`
	ProjectID    uuid.UUID              `json:"project_id"`
	Title        string                 `json:"title"`
	Score        float64                `json:"score"`
	StartTime    float64                `json:"start_time"`
	EndTime      float64                `json:"end_time"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	ArtifactPath string                 `json:"artifact_path,omitempty"`
}

// Duration is the derived clip length in seconds.
func (c Clip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// CollectionStatus tracks whether a Collection has been exported.
type CollectionStatus string

const (
	CollectionCreated  CollectionStatus = "CREATED"
	CollectionExported CollectionStatus = "EXPORTED"
)

// Collection is an ordered, user-editable grouping of Clips (§3, GLOSSARY).
type Collection struct {
	ID          uuid.UUID        `json:"id"`
	ProjectID   uuid.UUID        `json:"project_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	ClipIDs     []uuid.UUID      `json:"clip_ids"`
	Status      CollectionStatus `json:"status"`
	ExportPath  string           `json:"export_path,omitempty"`
}
