package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/log"
)

// missingArtifact builds the precondition-failure error of §4.4.2. The
// taxonomy of §7 has no dedicated "MissingArtifact" kind; a missing
// precondition artifact is one of the three conditions §7 lists under
// Unrecoverable ("pre-condition artifact missing"), so it is tagged that way
// here and in every stage below.
func missingArtifact(stage, path string) error {
	return errkind.New(errkind.Unrecoverable, fmt.Sprintf("missing precondition artifact for stage %s: %s", stage, path), nil)
}

func writeJSON(rc *RunContext, relPath string, v interface{}) (string, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", errkind.New(errkind.Internal, "encoding artifact "+relPath, err)
	}
	return rc.Content.Save(rc.ProjectID, relPath, buf)
}

func readJSON(rc *RunContext, absPath string, v interface{}) error {
	r, err := rc.Content.Open(absPath)
	if err != nil {
		return errkind.New(errkind.Unrecoverable, "reading artifact "+absPath, err)
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errkind.New(errkind.Unrecoverable, "decoding artifact "+absPath, err)
	}
	return nil
}

// runIngest materialises raw/video.* and raw/subtitle.srt (§4.4 table row
// INGEST). For a local upload the file is expected to already be in place
// (the control surface writes it directly via the content store before
// enqueuing); for a remote source it is fetched through the opaque
// Downloader capability.
func (o *Orchestrator) runIngest(rc *RunContext) (Summary, error) {
	ext := videoExt(rc.Project.VideoPath)
	videoRel := "raw/video" + ext
	videoAbs := rc.Content.PathFor(rc.ProjectID, videoRel)

	if rc.Project.Source.Kind == "remote_url" {
		if rc.Caps.Downloader == nil {
			return Summary{}, errkind.New(errkind.Internal, "no downloader capability configured", nil)
		}
		buf := &bytes.Buffer{}
		if err := rc.Caps.Downloader.Download(rc.Ctx, rc.Project.Source.RemoteURL, rc.Project.Source.Platform, buf); err != nil {
			return Summary{}, err
		}
		abs, err := rc.Content.Save(rc.ProjectID, videoRel, buf)
		if err != nil {
			return Summary{}, errkind.New(errkind.Internal, "saving downloaded video", err)
		}
		videoAbs = abs
	} else if !rc.Content.Exists(videoAbs) {
		return Summary{}, missingArtifact("INGEST", videoRel)
	}

	subtitleRel := "raw/subtitle.srt"
	subtitleAbs := rc.Content.PathFor(rc.ProjectID, subtitleRel)
	if !rc.Content.Exists(subtitleAbs) {
		if rc.Caps.Transcriber == nil {
			return Summary{}, errkind.New(errkind.Internal, "no transcriber capability configured for subtitle synthesis", nil)
		}
		buf := &bytes.Buffer{}
		if err := rc.Caps.Transcriber.Transcribe(rc.Ctx, videoAbs, buf); err != nil {
			return Summary{}, err
		}
		if _, err := rc.Content.Save(rc.ProjectID, subtitleRel, buf); err != nil {
			return Summary{}, errkind.New(errkind.Internal, "saving synthesised subtitle", err)
		}
	}

	return Summary{Counts: map[string]int{"video_bytes": 0}}, nil
}

func videoExt(path string) string {
	if path == "" {
		return ".mp4"
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ".mp4"
}

// subtitleChunk is one LLM-sized window of aligned subtitle text.
type subtitleChunk struct {
	Index     int     `json:"index"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// runSubtitle parses raw/subtitle.srt into time-indexed chunks for the LLM
// stages (§4.4 table row SUBTITLE).
func (o *Orchestrator) runSubtitle(rc *RunContext) (Summary, error) {
	srtAbs := rc.Content.PathFor(rc.ProjectID, "raw/subtitle.srt")
	if !rc.Content.Exists(srtAbs) {
		return Summary{}, missingArtifact("SUBTITLE", "raw/subtitle.srt")
	}
	r, err := rc.Content.Open(srtAbs)
	if err != nil {
		return Summary{}, errkind.New(errkind.Unrecoverable, "opening subtitle file", err)
	}
	defer r.Close()

	cues, err := parseSRT(r)
	if err != nil {
		return Summary{}, errkind.New(errkind.Unrecoverable, "parsing subtitle file", err)
	}
	chunks := chunkCues(cues, 45.0)

	if _, err := writeJSON(rc, "processing/subtitle_chunks.json", chunks); err != nil {
		return Summary{}, err
	}
	return Summary{Counts: map[string]int{"chunks": len(chunks)}}, nil
}

// topicInterval is one candidate highlight window produced by ANALYZE.
type topicInterval struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Topic     string  `json:"topic"`
	ChunkIdx  int     `json:"chunk_index"`
}

// outlinePoint is one element of the outline LLM operation's response.
type outlinePoint struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}

type outlineEntry struct {
	ChunkIdx int            `json:"chunk_index"`
	Points   []outlinePoint `json:"points"`
}

// runAnalyze calls the outline and timeline LLM operations over every
// subtitle chunk (§4.4 table row ANALYZE), writing step1_outline.json and
// step2_timeline.json.
func (o *Orchestrator) runAnalyze(rc *RunContext) (Summary, error) {
	chunksAbs := rc.Content.PathFor(rc.ProjectID, "processing/subtitle_chunks.json")
	if !rc.Content.Exists(chunksAbs) {
		return Summary{}, missingArtifact("ANALYZE", "processing/subtitle_chunks.json")
	}
	var chunks []subtitleChunk
	if err := readJSON(rc, chunksAbs, &chunks); err != nil {
		return Summary{}, err
	}

	outlines := make([]outlineEntry, 0, len(chunks))
	for _, c := range chunks {
		var out outlineEntry
		out.ChunkIdx = c.Index
		if err := rc.Caps.LLM.Call(rc.Ctx, LLMOutline, c, &out.Points); err != nil {
			return Summary{}, err
		}
		outlines = append(outlines, out)
	}
	if _, err := writeJSON(rc, "processing/step1_outline.json", outlines); err != nil {
		return Summary{}, err
	}

	var timeline []topicInterval
	if err := rc.Caps.LLM.Call(rc.Ctx, LLMTimeline, outlines, &timeline); err != nil {
		return Summary{}, err
	}
	if _, err := writeJSON(rc, "processing/step2_timeline.json", timeline); err != nil {
		return Summary{}, err
	}

	return Summary{Counts: map[string]int{"outlines": len(outlines), "intervals": len(timeline)}}, nil
}

type scoredInterval struct {
	topicInterval
	Score           float64 `json:"score"`
	RecommendReason string  `json:"recommend_reason"`
	Title           string  `json:"title,omitempty"`
}

type clusterEntry struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Intervals   []int  `json:"interval_indexes"`
}

// runHighlight scores every candidate interval, titles the selected ones,
// and clusters them into collections (§4.4 table row HIGHLIGHT), writing
// step3_scoring.json, step4_title.json, step5_clustering.json.
func (o *Orchestrator) runHighlight(rc *RunContext) (Summary, error) {
	timelineAbs := rc.Content.PathFor(rc.ProjectID, "processing/step2_timeline.json")
	if !rc.Content.Exists(timelineAbs) {
		return Summary{}, missingArtifact("HIGHLIGHT", "processing/step2_timeline.json")
	}
	var timeline []topicInterval
	if err := readJSON(rc, timelineAbs, &timeline); err != nil {
		return Summary{}, err
	}

	scored := make([]scoredInterval, 0, len(timeline))
	for _, t := range timeline {
		var s struct {
			Score  float64 `json:"score"`
			Reason string  `json:"reasons"`
		}
		if err := rc.Caps.LLM.Call(rc.Ctx, LLMScoring, t, &s); err != nil {
			return Summary{}, err
		}
		scored = append(scored, scoredInterval{topicInterval: t, Score: clampUnit(s.Score), RecommendReason: s.Reason})
	}
	if _, err := writeJSON(rc, "processing/step3_scoring.json", scored); err != nil {
		return Summary{}, err
	}

	selected := selectHighlights(scored, rc.Project.Settings)
	for i := range selected {
		var title string
		if err := rc.Caps.LLM.Call(rc.Ctx, LLMTitle, selected[i], &title); err != nil {
			return Summary{}, err
		}
		selected[i].Title = title
	}
	if _, err := writeJSON(rc, "processing/step4_title.json", selected); err != nil {
		return Summary{}, err
	}

	var clusters []clusterEntry
	if err := rc.Caps.LLM.Call(rc.Ctx, LLMClustering, selected, &clusters); err != nil {
		return Summary{}, err
	}
	if _, err := writeJSON(rc, "processing/step5_clustering.json", clusters); err != nil {
		return Summary{}, err
	}

	return Summary{Counts: map[string]int{"scored": len(scored), "selected": len(selected), "collections": len(clusters)}}, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// selectHighlights picks the intervals that will become Clips: above a
// minimum score, which defaults to 0.5 but can be overridden per project
// via settings["min_score"].
func selectHighlights(scored []scoredInterval, settings map[string]interface{}) []scoredInterval {
	threshold := 0.5
	if v, ok := settings["min_score"].(float64); ok {
		threshold = v
	}
	out := make([]scoredInterval, 0, len(scored))
	for _, s := range scored {
		if s.Score >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// clipArtifact mirrors the on-disk shape of one metadata/clips_metadata.json
// entry (§4.6): a natural id plus the fields a Clip row needs.
type clipArtifact struct {
	OriginalID   string                 `json:"original_id"`
	Title        string                 `json:"title"`
	Score        float64                `json:"score"`
	StartTime    float64                `json:"start_time"`
	EndTime      float64                `json:"end_time"`
	Metadata     map[string]interface{} `json:"metadata"`
	ArtifactPath string                 `json:"artifact_path"`
}

type collectionArtifact struct {
	OriginalID  string   `json:"original_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ClipIDs     []string `json:"clip_ids"`
	ExportPath  string   `json:"export_path,omitempty"`
}

// runExport cuts each selected interval and concatenates each collection
// (§4.4 table row EXPORT), invoking the opaque Cutter capability.
func (o *Orchestrator) runExport(rc *RunContext) (Summary, error) {
	titledAbs := rc.Content.PathFor(rc.ProjectID, "processing/step4_title.json")
	clusterAbs := rc.Content.PathFor(rc.ProjectID, "processing/step5_clustering.json")
	if !rc.Content.Exists(titledAbs) {
		return Summary{}, missingArtifact("EXPORT", "processing/step4_title.json")
	}
	if !rc.Content.Exists(clusterAbs) {
		return Summary{}, missingArtifact("EXPORT", "processing/step5_clustering.json")
	}

	var selected []scoredInterval
	if err := readJSON(rc, titledAbs, &selected); err != nil {
		return Summary{}, err
	}
	var clusters []clusterEntry
	if err := readJSON(rc, clusterAbs, &clusters); err != nil {
		return Summary{}, err
	}

	videoAbs := rc.Content.PathFor(rc.ProjectID, "raw/video"+videoExt(rc.Project.VideoPath))
	if !rc.Content.Exists(videoAbs) {
		return Summary{}, missingArtifact("EXPORT", "raw/video.*")
	}

	clipArtifacts := make([]clipArtifact, 0, len(selected))
	clipPaths := make([]string, 0, len(selected))
	for i, s := range selected {
		naturalID := fmt.Sprintf("clip-%03d", i)
		rel := path.Join("output", "clips", naturalID+".mp4")
		abs := rc.Content.PathFor(rc.ProjectID, rel)
		if err := rc.Caps.Cutter.Cut(rc.Ctx, videoAbs, s.StartTime, s.EndTime, abs); err != nil {
			return Summary{}, errkind.New(errkind.Unrecoverable, "cutting clip "+naturalID, err)
		}
		clipPaths = append(clipPaths, abs)
		clipArtifacts = append(clipArtifacts, clipArtifact{
			OriginalID: naturalID,
			Title:      s.Title,
			Score:      s.Score,
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Metadata: map[string]interface{}{
				"recommend_reason": s.RecommendReason,
				"topic":            s.Topic,
				"chunk_index":      s.ChunkIdx,
			},
			ArtifactPath: abs,
		})
	}

	collectionArtifacts := make([]collectionArtifact, 0, len(clusters))
	for i, c := range clusters {
		naturalID := fmt.Sprintf("collection-%03d", i)
		members := make([]string, 0, len(c.Intervals))
		memberPaths := make([]string, 0, len(c.Intervals))
		for _, idx := range c.Intervals {
			if idx < 0 || idx >= len(clipArtifacts) {
				continue
			}
			members = append(members, clipArtifacts[idx].OriginalID)
			memberPaths = append(memberPaths, clipArtifacts[idx].ArtifactPath)
		}
		rel := path.Join("output", "collections", naturalID+".mp4")
		abs := rc.Content.PathFor(rc.ProjectID, rel)
		if len(memberPaths) > 0 {
			if err := rc.Caps.Cutter.Concat(rc.Ctx, memberPaths, abs); err != nil {
				return Summary{}, errkind.New(errkind.Unrecoverable, "concatenating collection "+naturalID, err)
			}
		}
		collectionArtifacts = append(collectionArtifacts, collectionArtifact{
			OriginalID:  naturalID,
			Title:       c.Title,
			Description: c.Description,
			ClipIDs:     members,
			ExportPath:  abs,
		})
	}

	if _, err := writeJSON(rc, "metadata/clips_metadata.json", clipArtifacts); err != nil {
		return Summary{}, err
	}
	if _, err := writeJSON(rc, "metadata/collections_metadata.json", collectionArtifacts); err != nil {
		return Summary{}, err
	}

	return Summary{Counts: map[string]int{"clips": len(clipArtifacts), "collections": len(collectionArtifacts)}}, nil
}

// runDone finalises the project (§4.4 table row DONE): both metadata files
// must already exist (written by EXPORT); data-sync (C6) reconciles them
// into the store once the orchestrator reaches complete(), after Run
// returns from the stage loop.
func (o *Orchestrator) runDone(rc *RunContext) (Summary, error) {
	clipsAbs := rc.Content.PathFor(rc.ProjectID, "metadata/clips_metadata.json")
	collectionsAbs := rc.Content.PathFor(rc.ProjectID, "metadata/collections_metadata.json")
	if !rc.Content.Exists(clipsAbs) {
		return Summary{}, missingArtifact("DONE", "metadata/clips_metadata.json")
	}
	if !rc.Content.Exists(collectionsAbs) {
		return Summary{}, missingArtifact("DONE", "metadata/collections_metadata.json")
	}
	log.Log(rc.ProjectID.String(), "pipeline reached DONE, finalising")
	return Summary{}, nil
}
