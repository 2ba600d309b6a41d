package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dataset-manager/internal/database"
	"dataset-manager/internal/task"
)

const defaultDatabaseDir = "/database"

func main() {
	var (
		configID    = flag.String("config", "", "Model config id to annotate with (required)")
		datasetPath = flag.String("dataset", "", "Path to the dataset directory (required)")
		quiet       = flag.Bool("quiet", false, "Suppress per-file progress output")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *configID == "" || *datasetPath == "" {
		printUsage()
		os.Exit(2)
	}

	os.Exit(run(*configID, *datasetPath, *quiet))
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Dataset Manager Batch Annotation")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: annotate -config <id> -dataset <path> [-quiet]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Runs one annotation task to completion and exits non-zero on failure.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintf(os.Stderr, "  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func run(configID, datasetPath string, quiet bool) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}

	db, err := database.New(ctx, filepath.Join(databaseDir, "datasets.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	runner := task.NewRunner(db, nil)
	events, unsubscribe := runner.Subscribe()
	defer unsubscribe()

	id, err := runner.Start(datasetPath, configID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to start task: %v\n", err)
		return 1
	}
	fmt.Printf("Task %s started\n", id)

	// Forward the first interrupt as a cancel request; the task drains
	// in-flight work and finishes as cancelled.
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling task...")
		if err := runner.Cancel(id); err != nil {
			cancel()
		}
	}()

	final := waitForTask(ctx, runner, events, id, quiet)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	runner.Shutdown(shutdownCtx)

	return report(final)
}

func waitForTask(ctx context.Context, runner *task.Runner, events <-chan task.Event, id string, quiet bool) task.Snapshot {
	for {
		select {
		case <-ctx.Done():
			snap, _ := runner.Get(id)
			return snap
		case ev, ok := <-events:
			if !ok {
				snap, _ := runner.Get(id)
				return snap
			}
			if ev.ID != id {
				continue
			}
			if !quiet && ev.Status == task.StatusRunning {
				fmt.Printf("\rProcessed %d/%d", ev.Processed, ev.Total)
			}
			if ev.Status.Terminal() {
				if !quiet {
					fmt.Println()
				}
				return ev.Snapshot
			}
		}
	}
}

func report(snap task.Snapshot) int {
	fmt.Printf("Task %s: %s (%d/%d files)\n", snap.ID, snap.Status, snap.Processed, snap.Total)

	for path, msg := range snap.FileErrors {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", path, msg)
	}
	if snap.Error != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", snap.Error)
	}

	switch snap.Status {
	case task.StatusCompleted:
		return 0
	case task.StatusCompletedWithErrors:
		return 3
	default:
		return 1
	}
}
