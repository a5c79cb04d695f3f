// Command highlighterctl is the operator CLI: one-shot administrative
// subcommands (migrate the metadata store, run a single janitor sweep,
// print the build version) rather than a long-running process, following
// the teacher's "-version" early-exit flag convention in main.go but
// extended into a small subcommand dispatcher since this repo needs more
// than one one-shot operation.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/clipforge/highlighter/internal/config"
	"github.com/clipforge/highlighter/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "version":
		fmt.Println(config.Version)
	case "migrate":
		runMigrate(args)
	case "janitor":
		runJanitor(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: highlighterctl <version|migrate|janitor> [flags]")
}

func runMigrate(args []string) {
	cli, err := config.Parse("highlighterctl migrate", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := store.Connect(ctx, cli.DBURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connecting to metadata store:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "running migrations:", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}

func runJanitor(args []string) {
	cli, err := config.Parse("highlighterctl janitor", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := store.Connect(ctx, cli.DBURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connecting to metadata store:", err)
		os.Exit(1)
	}
	defer db.Close()

	tasks := store.NewTaskRepo(db)
	projects := store.NewProjectRepo(db)
	j := store.NewJanitor(tasks, projects,
		time.Duration(cli.StuckTaskThresholdMinutes)*time.Minute,
		time.Duration(cli.TaskRetentionDays)*24*time.Hour)

	if err := j.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "janitor sweep failed:", err)
		os.Exit(1)
	}
	fmt.Println("janitor sweep complete")
}
