package domain

import "github.com/google/uuid"

// Stage is the sum type called for in §9 ("deep inheritance... model as a
// small sum type plus a handler table") standing in for the six named
// pipeline stages of §4.4.
type Stage string

const (
	StageIngest   Stage = "INGEST"
	StageSubtitle Stage = "SUBTITLE"
	StageAnalyze  Stage = "ANALYZE"
	StageHighlight Stage = "HIGHLIGHT"
	StageExport   Stage = "EXPORT"
	StageDone     Stage = "DONE"
	// StageError is only ever used on the wire (ProgressEvent.Stage), never
	// stored as Project.CurrentStage.
	StageError Stage = "ERROR"
)

// Stages is the fixed execution order of §4.4.
var Stages = []Stage{StageIngest, StageSubtitle, StageAnalyze, StageHighlight, StageExport, StageDone}

// Weight is the fixed percentage of total project progress each stage
// contributes, per §4.4.3.
var Weight = map[Stage]int{
	StageIngest:    10,
	StageSubtitle:  15,
	StageAnalyze:   20,
	StageHighlight: 25,
	StageExport:    20,
	StageDone:      10,
}

// Index returns the 0-based position of a stage in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// PriorWeight sums the weights of every stage strictly before s.
func PriorWeight(s Stage) int {
	total := 0
	for _, st := range Stages {
		if st == s {
			break
		}
		total += Weight[st]
	}
	return total
}

// ProgressEvent is the wire-level progress update of §3 "ProgressEvent".
type ProgressEvent struct {
	ProjectID   uuid.UUID `json:"project_id"`
	Stage       Stage  `json:"stage"`
	Percent     int    `json:"percent"`
	Message     string `json:"message,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`
	Snapshot    bool   `json:"snapshot,omitempty"`
}
