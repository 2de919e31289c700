// Package cli implements the command-line entry points that run outside
// the HTTP server.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dineops/customer-sync/internal/config"
	"github.com/dineops/customer-sync/internal/registry"
	"github.com/dineops/customer-sync/internal/syncer"
)

// SyncCommand runs one full customer sync from the command line and
// blocks until it finishes.
type SyncCommand struct {
	SourceDSN    string
	AnalyticsDSN string
	PageSize     int
	Timeout      time.Duration
	Verbose      bool
}

// NewSyncCommand creates a new SyncCommand
func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

// ParseFlags parses command line flags
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.StringVar(&cmd.SourceDSN, "source", config.DefaultSourceDSN, "Path to the source orders database")
	fs.StringVar(&cmd.AnalyticsDSN, "analytics", config.DefaultAnalyticsDSN, "Path to the destination analytics database")
	fs.IntVar(&cmd.PageSize, "page-size", 500, "Number of customers extracted per page")
	fs.DurationVar(&cmd.Timeout, "timeout", 30*time.Minute, "Abort the sync after this long")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print progress while syncing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run one full customer sync and exit.\n\n")
		fmt.Fprintf(os.Stderr, "This command:\n")
		fmt.Fprintf(os.Stderr, "  1. Aggregates paid orders per customer from the source database\n")
		fmt.Fprintf(os.Stderr, "  2. Computes RFM scores, segments and lifetime value\n")
		fmt.Fprintf(os.Stderr, "  3. Upserts customer profiles into the analytics database\n")
		fmt.Fprintf(os.Stderr, "  4. Rebuilds time-slot, category-preference and suggestion tables\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sync\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -source /data/orders.db -analytics /data/analytics.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -page-size 1000 -verbose\n", os.Args[0])
	}

	return fs.Parse(args)
}

// Run executes the sync command
func (cmd *SyncCommand) Run() error {
	store := registry.NewInMemory()
	engine := syncer.NewEngine(syncer.Options{
		SourceDSN:    cmd.SourceDSN,
		AnalyticsDSN: cmd.AnalyticsDSN,
		PageSize:     cmd.PageSize,
	}, store)

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	task := store.Create()

	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx, task.TaskID)
	}()

	if cmd.Verbose {
		cmd.reportProgress(store, task.TaskID, done)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	final, err := store.Get(task.TaskID)
	if err != nil {
		return err
	}
	fmt.Printf("Sync completed: %d customers in task %s\n", final.ProcessedRecords, final.TaskID)
	return nil
}

// reportProgress polls the task until the run signals completion, then
// re-arms the done channel for the caller.
func (cmd *SyncCommand) reportProgress(store registry.TaskStore, taskID string, done chan error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastStep := ""
	for {
		select {
		case err := <-done:
			done <- err
			return
		case <-ticker.C:
			task, getErr := store.Get(taskID)
			if getErr != nil {
				continue
			}
			if task.CurrentStep != lastStep {
				fmt.Printf("[%3d%%] %s\n", task.Progress, task.CurrentStep)
				lastStep = task.CurrentStep
			}
		}
	}
}
