package api

import (
	"time"

	"github.com/clipforge/highlighter/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// createProjectRequest is the JSON body for creating a project from a
// remote URL (§6 "Create project from ... JSON spec"). A multipart request
// instead populates Source from the form fields directly.
type createProjectRequest struct {
	Name        string                 `json:"name" validate:"required"`
	Description string                 `json:"description"`
	Category    string                 `json:"category" validate:"required"`
	RemoteURL   string                 `json:"remote_url" validate:"required,url"`
	Platform    string                 `json:"platform"`
	CookieJarID string                 `json:"cookie_jar_id"`
	Settings    map[string]interface{} `json:"settings"`
}

type reorderCollectionRequest struct {
	ClipIDs []string `json:"clip_ids" validate:"required,min=1,dive,uuid"`
}

// projectResponse mirrors domain.Project; a dedicated type keeps the wire
// shape independent of storage-layer field additions.
type projectResponse struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Category      string       `json:"category"`
	Status        string       `json:"status"`
	CurrentStage  string       `json:"current_stage"`
	Progress      int          `json:"progress"`
	Error         *errorDTO    `json:"error,omitempty"`
	SyncWarning   string       `json:"sync_warning,omitempty"`
	VideoDuration float64      `json:"video_duration_seconds"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type errorDTO struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func toProjectResponse(p *domain.Project) projectResponse {
	resp := projectResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      string(p.Category),
		Status:        string(p.Status),
		CurrentStage:  string(p.CurrentStage),
		Progress:      p.Progress,
		SyncWarning:   p.SyncWarning,
		VideoDuration: p.VideoDuration,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Error != nil {
		resp.Error = &errorDTO{Stage: string(p.Error.Stage), Message: p.Error.Message}
	}
	return resp
}

type clipResponse struct {
	ID           uuid.UUID              `json:"id"`
	Title        string                 `json:"title"`
	Score        float64                `json:"score"`
	StartTime    float64                `json:"start_time"`
	EndTime      float64                `json:"end_time"`
	DurationSec  float64                `json:"duration_seconds"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

func toClipResponse(c *domain.Clip) clipResponse {
	return clipResponse{
		ID:          c.ID,
		Title:       c.Title,
		Score:       c.Score,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		DurationSec: c.Duration(),
		Metadata:    c.Metadata,
	}
}

type collectionResponse struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	ClipIDs     []uuid.UUID `json:"clip_ids"`
	Status      string      `json:"status"`
}

func toCollectionResponse(c *domain.Collection) collectionResponse {
	return collectionResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		ClipIDs:     c.ClipIDs,
		Status:      string(c.Status),
	}
}
