// Package bootstrap wires every component built under internal/ into a
// single running Stack, shared by cmd/highlighter-api and
// cmd/highlighter-worker so the two never duplicate construction logic
// (cmd/highlighterctl builds its own store and janitor). The teacher keeps
// all of this inline in one main.go (it only ships one binary); splitting it
// into a shared package is the direct generalization of that wiring to
// several entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/clipforge/highlighter/internal/capability"
	"github.com/clipforge/highlighter/internal/config"
	"github.com/clipforge/highlighter/internal/content"
	"github.com/clipforge/highlighter/internal/datasync"
	"github.com/clipforge/highlighter/internal/domain"
	"github.com/clipforge/highlighter/internal/gateway"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/clipforge/highlighter/internal/pipeline"
	"github.com/clipforge/highlighter/internal/progress"
	"github.com/clipforge/highlighter/internal/runner"
	"github.com/clipforge/highlighter/internal/store"
	"github.com/clipforge/highlighter/internal/worker"
	"github.com/redis/go-redis/v9"
)

// Stack is every long-lived component a process may need. Not every
// binary uses every field; cmd/highlighter-worker, for instance, runs only
// the pool and the janitor.
type Stack struct {
	DB          *store.DB
	Redis       *redis.Client
	Content     *content.Store
	Fabric      *progress.Fabric
	Projects    *store.ProjectRepo
	Tasks       *store.TaskRepo
	Clips       *store.ClipRepo
	Collections *store.CollectionRepo
	Syncer      *datasync.Syncer
	Janitor     *store.Janitor

	Orchestrator *pipeline.Orchestrator
	Broker       worker.Broker
	Pool         *worker.Pool
	Runner       *runner.Runner
	Hub          *gateway.Hub
}

// Build constructs every component described by cli, following the
// teacher's "construct once at the top of main, pass pointers down"
// convention rather than a DI framework.
func Build(ctx context.Context, cli config.Cli, workerID string) (*Stack, error) {
	log.SetHotLevel(cli.LogLevel)

	db, err := store.Connect(ctx, cli.DBURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to metadata store: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	contentStore, err := content.NewStore(cli.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	opts, err := redis.ParseURL(cli.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parsing broker URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	fabric := progress.NewFabric(rdb, time.Duration(cli.SnapshotTTLSeconds)*time.Second)

	projects := store.NewProjectRepo(db)
	tasks := store.NewTaskRepo(db)
	clips := store.NewClipRepo(db)
	collections := store.NewCollectionRepo(db)

	syncer := datasync.NewSyncer(contentStore, clips, collections)

	caps := pipeline.Capabilities{
		LLM:         capability.NewLLMClient(cli.LLMEndpoint, cli.LLMAPIKey, cli.LLMProvider),
		Downloader:  capability.NewDownloader(),
		Transcriber: capability.NewTranscriber(cli.TranscriberEndpoint),
		Cutter:      capability.NewFFmpegCutter(cli.FFmpegBinary),
	}

	orchestrator := pipeline.NewOrchestrator(projects, contentStore, fabric, caps, syncer, stageTimeouts())

	broker := worker.NewMemoryBroker()
	r := runner.New(orchestrator, tasks, workerID)
	pool := worker.NewPool(broker, r, cli.WorkerConcurrency)

	hub := gateway.NewHub(fabric)

	janitor := store.NewJanitor(tasks, projects,
		time.Duration(cli.StuckTaskThresholdMinutes)*time.Minute,
		time.Duration(cli.TaskRetentionDays)*24*time.Hour)

	return &Stack{
		DB:           db,
		Redis:        rdb,
		Content:      contentStore,
		Fabric:       fabric,
		Projects:     projects,
		Tasks:        tasks,
		Clips:        clips,
		Collections:  collections,
		Syncer:       syncer,
		Janitor:      janitor,
		Orchestrator: orchestrator,
		Broker:       broker,
		Pool:         pool,
		Runner:       r,
		Hub:          hub,
	}, nil
}

// Close releases every resource that needs an explicit shutdown.
func (s *Stack) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}

// stageTimeouts converts config.StageTimeouts (keyed by the raw stage name
// used in §6's environment variable table) into the domain.Stage-keyed map
// pipeline.NewOrchestrator expects.
func stageTimeouts() map[domain.Stage]time.Duration {
	out := make(map[domain.Stage]time.Duration, len(domain.Stages))
	for _, stage := range domain.Stages {
		if d, ok := config.StageTimeouts[string(stage)]; ok {
			out[stage] = d
		}
	}
	return out
}

// RunJanitorLoop runs the janitor sweep every interval until ctx is
// cancelled, mirroring the teacher's middleware.NewShell cron-style
// background loops (main.go's mist-cleanup/pod-mon ticks) generalized from
// shelling out to a script to calling a Go method directly.
func RunJanitorLoop(ctx context.Context, j *store.Janitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				log.NoID("janitor sweep failed", "err", err.Error())
			}
		}
	}
}
