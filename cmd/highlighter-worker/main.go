// Command highlighter-worker runs the worker pool (C5) and janitor sweep
// standalone, with no HTTP surface. It shares the same bootstrap.Build
// wiring as highlighter-api; run it as a separate process once the default
// in-memory Broker (internal/worker/broker.go) is swapped for a
// network-shared one (Redis streams, SQS, etc.) — with the in-memory
// broker, a standalone worker process has no tasks to dequeue unless
// something else in the same process enqueues them, so the supported
// topology today is highlighter-api running with "-mode all" (default).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/highlighter/internal/bootstrap"
	"github.com/clipforge/highlighter/internal/config"
	"github.com/clipforge/highlighter/internal/log"
)

func main() {
	cli, err := config.Parse("highlighter-worker", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-worker", hostname)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cli, workerID)
	if err != nil {
		log.NoID("failed to build process stack", "err", err.Error())
		os.Exit(1)
	}
	defer stack.Close()

	stack.Pool.Start(ctx)
	go bootstrap.RunJanitorLoop(ctx, stack.Janitor, time.Duration(cli.JanitorIntervalMinutes)*time.Minute)

	log.NoID("highlighter-worker running", "concurrency", cli.WorkerConcurrency)
	<-ctx.Done()

	stack.Pool.Stop()
	log.NoID("highlighter-worker shutdown complete")
}
