package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/entrypoint"
)

// SyncOnceCommand runs sync jobs to completion without starting the server.
type SyncOnceCommand struct {
	base
	Entity  string
	Timeout time.Duration
}

func NewSyncOnceCommand() *SyncOnceCommand {
	return &SyncOnceCommand{base: newBase()}
}

func (cmd *SyncOnceCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync-once", flag.ContinueOnError)

	fs.StringVar(&cmd.Entity, "entity", entities.SyncTargetFull, "What to sync: product, invoice or full")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")
	fs.DurationVar(&cmd.Timeout, "timeout", time.Hour, "Give up and stop the jobs after this long")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync-once [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Synchronize local records with the tax authority and print a summary.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sync-once\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync-once -entity invoice -timeout 10m\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := entities.ParseSyncEntityType(cmd.Entity); err != nil && cmd.Entity != entities.SyncTargetFull {
		fs.Usage()
		return fmt.Errorf("invalid -entity %q", cmd.Entity)
	}
	if cmd.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (cmd *SyncOnceCommand) Run() error {
	app, err := cmd.openApp()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing application: %v\n", err)
		}
	}()

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cmd.Timeout)
	defer cancel()

	return cmd.run(ctx, app)
}

func (cmd *SyncOnceCommand) run(ctx context.Context, app *entrypoint.App) error {
	jobs, err := app.Scheduler.Start(ctx, cmd.Entity)
	if err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}

	finished := make([]entities.SyncJob, 0, len(jobs))
	for _, job := range jobs {
		final, err := app.Scheduler.Wait(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", job.Name, err)
		}
		finished = append(finished, final)
	}

	cmd.printSummary(finished)

	for _, job := range finished {
		if job.Status == entities.SyncJobFailed {
			return fmt.Errorf("%s failed: %s", job.Name, job.ErrorMessage)
		}
	}
	return nil
}

func (cmd *SyncOnceCommand) printSummary(jobs []entities.SyncJob) {
	fmt.Fprintf(cmd.out, "\n=== Sync Results ===\n")
	w := tabwriter.NewWriter(cmd.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tSTATUS\tPROCESSED\tSYNCED\tFAILED\tDURATION")
	for _, job := range jobs {
		duration := "-"
		if job.EndTime != nil {
			duration = job.EndTime.Sub(job.StartTime).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			job.EntityType, job.Status, job.RecordsProcessed, job.RecordsTotal,
			job.RecordsSucceeded, job.RecordsFailed, duration)
	}
	_ = w.Flush()
}
