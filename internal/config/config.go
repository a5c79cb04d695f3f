// Package config holds process-wide configuration: the flag/env surface of
// §6 "Environment", and the Clock indirection the teacher uses throughout
// (config.Clock) so tests can fix time.
package config

import "time"

// Version is set at build time via -ldflags, following the teacher's
// config.Version convention.
var Version = "dev"

// Clock is a substitutable time source (tests can set
// FixedTimestampGenerator). No package reads it; the pipeline and worker
// call time.Now() directly.
var Clock TimestampGenerator = RealTimestampGenerator{}

// Defaults mirror §6's enumerated environment variables.
const (
	DefaultStorageRoot                = "./data"
	DefaultWorkerConcurrency          = 0 // 0 means "use runtime.NumCPU()"
	DefaultLogLevel                   = "INFO"
	DefaultStuckTaskThresholdMinutes  = 360
	DefaultSnapshotTTLSeconds         = 86400
	DefaultJanitorInterval            = 24 * time.Hour
	DefaultTaskRetentionDays          = 30
)

// Stage timeouts, §5 "Cancellation and timeouts".
var StageTimeouts = map[string]time.Duration{
	"INGEST":    30 * time.Minute,
	"SUBTITLE":  10 * time.Minute,
	"ANALYZE":   20 * time.Minute,
	"HIGHLIGHT": 20 * time.Minute,
	"EXPORT":    30 * time.Minute,
	"DONE":      1 * time.Minute,
}

// Cli is the full flag/env surface shared by the worker and API processes,
// generalizing the teacher's config.Cli struct (config/cli.go) to this
// system's environment variables (§6).
type Cli struct {
	StorageRoot              string
	BrokerURL                string
	DBURL                    string
	WorkerConcurrency        int
	LLMProvider              string
	LLMAPIKey                string
	LLMEndpoint              string
	TranscriberEndpoint      string
	FFmpegBinary             string
	LogLevel                 string
	StuckTaskThresholdMinutes int
	SnapshotTTLSeconds       int
	HTTPAddr                 string
	APIToken                 string
	RateLimitPerMinute       int
	JanitorIntervalMinutes   int
	TaskRetentionDays        int
	Mode                     string
}
