package pipeline

import (
	"context"
	"io"
)

// LLMOperation names the opaque prompt family passed to the LLM capability,
// one per §4.4 call site. The orchestrator never inspects prompt contents;
// it only routes to the right operation and prompt template.
type LLMOperation string

const (
	LLMOutline    LLMOperation = "outline"
	LLMTimeline   LLMOperation = "timeline"
	LLMScoring    LLMOperation = "scoring"
	LLMTitle      LLMOperation = "title"
	LLMClustering LLMOperation = "clustering"
)

// LLMClient is the opaque LLM capability of §4.4: a single structured
// request/response call per operation, with its own retry/backoff and
// schema-repair built in (internal/capability). The orchestrator treats it
// as a pure function from (operation, input) to parsed JSON.
type LLMClient interface {
	Call(ctx context.Context, op LLMOperation, input interface{}, out interface{}) error
}

// Downloader materialises a remote source into a local file during INGEST.
type Downloader interface {
	Download(ctx context.Context, remoteURL, platform string, dst io.Writer) error
}

// Transcriber synthesizes an SRT when the project has no user-provided
// subtitle file, via the same opaque-capability boundary as the LLM client.
type Transcriber interface {
	Transcribe(ctx context.Context, videoPath string, dst io.Writer) error
}

// Cutter is the opaque cutting capability of EXPORT: produce one clip file
// from a source video and a time range, or concatenate clips into a
// collection file. Non-zero exit from the underlying subprocess surfaces as
// errkind.Unrecoverable per §4.4.6.
type Cutter interface {
	Cut(ctx context.Context, sourcePath string, startSec, endSec float64, dstPath string) error
	Concat(ctx context.Context, clipPaths []string, dstPath string) error
}

// Capabilities bundles the four opaque external dependencies a stage may
// need; not every stage uses every capability.
type Capabilities struct {
	LLM         LLMClient
	Downloader  Downloader
	Transcriber Transcriber
	Cutter      Cutter
}
