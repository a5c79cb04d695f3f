// Command highlighter-api serves the control surface (C8) and the
// WebSocket gateway (C7), embedding the worker pool (C5) in the same
// process by default so the in-memory broker has a consumer, mirroring
// the teacher's main.go single-binary "-mode all" default.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/highlighter/internal/api"
	"github.com/clipforge/highlighter/internal/bootstrap"
	"github.com/clipforge/highlighter/internal/config"
	"github.com/clipforge/highlighter/internal/log"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	cli, err := config.Parse("highlighter-api", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-api", hostname)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := bootstrap.Build(ctx, cli, workerID)
	if err != nil {
		log.NoID("failed to build process stack", "err", err.Error())
		os.Exit(1)
	}
	defer stack.Close()

	a := &api.API{
		Projects:           stack.Projects,
		Tasks:              stack.Tasks,
		Clips:              stack.Clips,
		Collections:        stack.Collections,
		Content:            stack.Content,
		Pool:               stack.Pool,
		Syncer:             stack.Syncer,
		Gateway:            stack.Hub,
		APIToken:           cli.APIToken,
		RateLimitPerMinute: cli.RateLimitPerMinute,
	}

	root := chi.NewRouter()
	root.Mount("/api/v1", a.Router())

	server := &http.Server{
		Addr:    cli.HTTPAddr,
		Handler: root,
	}

	group, gctx := errgroup.WithContext(ctx)

	if cli.Mode != "api-only" {
		stack.Pool.Start(gctx)
		group.Go(func() error {
			bootstrap.RunJanitorLoop(gctx, stack.Janitor, time.Duration(cli.JanitorIntervalMinutes)*time.Minute)
			return nil
		})
	}

	group.Go(func() error {
		log.NoID("highlighter-api listening", "addr", cli.HTTPAddr, "mode", cli.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.NoID("highlighter-api shut down with error", "err", err.Error())
		os.Exit(1)
	}
	if cli.Mode != "api-only" {
		stack.Pool.Stop()
	}
	log.NoID("highlighter-api shutdown complete")
}
