package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/peterbourgon/ff/v3"
	"github.com/spf13/viper"
)

// Parse builds a Cli from flags/env/an optional YAML file, following the
// teacher's ff.Parse wiring in main.go but adding a viper-backed file layer
// (grounded in ThirdCoastInteractive-Rewind's internal/config) so operators
// can check a config file into their deploy repo instead of a long flag list.
func Parse(name string, args []string) (Cli, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cli := Cli{}

	fs.StringVar(&cli.StorageRoot, "storage-root", DefaultStorageRoot, "absolute path to the content store root")
	fs.StringVar(&cli.BrokerURL, "broker-url", "redis://127.0.0.1:6379/0", "URL of the pub/sub + queue broker")
	fs.StringVar(&cli.DBURL, "db-url", "", "connection string for the metadata store")
	fs.IntVar(&cli.WorkerConcurrency, "worker-concurrency", DefaultWorkerConcurrency, "number of pool workers; 0 uses the number of CPUs")
	fs.StringVar(&cli.LLMProvider, "llm-provider", "", "opaque LLM provider identifier")
	fs.StringVar(&cli.LLMAPIKey, "llm-api-key", "", "opaque LLM API key")
	fs.StringVar(&cli.LLMEndpoint, "llm-endpoint", "", "URL of the opaque LLM capability endpoint")
	fs.StringVar(&cli.TranscriberEndpoint, "transcriber-endpoint", "", "URL of the opaque transcription capability endpoint")
	fs.StringVar(&cli.FFmpegBinary, "ffmpeg-binary", "ffmpeg", "path to the ffmpeg binary used by the cutting capability")
	fs.StringVar(&cli.LogLevel, "log-level", DefaultLogLevel, "DEBUG, INFO, WARN, or ERROR")
	fs.IntVar(&cli.StuckTaskThresholdMinutes, "stuck-task-threshold-minutes", DefaultStuckTaskThresholdMinutes, "age at which a RUNNING task is considered orphaned")
	fs.IntVar(&cli.SnapshotTTLSeconds, "snapshot-ttl-seconds", DefaultSnapshotTTLSeconds, "progress snapshot TTL")
	fs.StringVar(&cli.HTTPAddr, "http-addr", "0.0.0.0:8080", "address the control surface / gateway binds to")
	fs.StringVar(&cli.APIToken, "api-token", "", "bearer token required on /api/v1 requests")
	fs.IntVar(&cli.RateLimitPerMinute, "rate-limit-per-minute", 600, "per-client request rate limit enforced by the control surface")
	fs.IntVar(&cli.JanitorIntervalMinutes, "janitor-interval-minutes", int(DefaultJanitorInterval.Minutes()), "how often the janitor sweeps for stuck tasks and expired task rows")
	fs.IntVar(&cli.TaskRetentionDays, "task-retention-days", DefaultTaskRetentionDays, "how long finished task rows are kept before the janitor deletes them")
	fs.StringVar(&cli.Mode, "mode", "all", "Mode to run highlighter-api in. Options: all, api-only (no embedded worker pool)")

	configFile := fs.String("config-file", "", "optional YAML config file (see internal/config.loadFile)")

	if err := ff.Parse(fs, args, ff.WithEnvVarNoPrefix()); err != nil {
		return cli, fmt.Errorf("parsing flags: %w", err)
	}

	if *configFile != "" {
		if err := loadFile(*configFile, &cli); err != nil {
			return cli, fmt.Errorf("loading config file: %w", err)
		}
	}

	if cli.WorkerConcurrency <= 0 {
		cli.WorkerConcurrency = runtime.NumCPU()
	}
	if env := os.Getenv("STORAGE_ROOT"); env != "" {
		cli.StorageRoot = env
	}
	return cli, nil
}

// loadFile merges a YAML config file into cli using viper, letting an
// operator override any flag default from a checked-in file rather than a
// long CLI invocation.
func loadFile(path string, cli *Cli) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cli)
}
