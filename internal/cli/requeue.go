package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mrlokans/taxsync/internal/audit"
	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/entrypoint"
)

// RequeueCommand moves failed records back to pending so the next sync retries them.
type RequeueCommand struct {
	base
	Entity string
	IDs    []uint
}

func NewRequeueCommand() *RequeueCommand {
	return &RequeueCommand{base: newBase()}
}

func (cmd *RequeueCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("requeue", flag.ContinueOnError)

	var ids string
	fs.StringVar(&cmd.Entity, "entity", "", "Entity type to requeue: product or invoice (required)")
	fs.StringVar(&ids, "ids", "", "Comma-separated record IDs (default: every failed record)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (default: DATABASE_PATH)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s requeue [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reset failed records to pending.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s requeue -entity product\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s requeue -entity invoice -ids 12,15\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := entities.ParseSyncEntityType(cmd.Entity); err != nil {
		fs.Usage()
		return fmt.Errorf("entity is required: %w", err)
	}

	parsed, err := parseIDs(ids)
	if err != nil {
		return err
	}
	cmd.IDs = parsed
	return nil
}

func parseIDs(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (cmd *RequeueCommand) Run() error {
	app, err := cmd.openApp()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing application: %v\n", err)
		}
	}()

	ctx, stop := signalContext()
	defer stop()
	return cmd.run(ctx, app)
}

func (cmd *RequeueCommand) run(ctx context.Context, app *entrypoint.App) error {
	entityType, err := entities.ParseSyncEntityType(cmd.Entity)
	if err != nil {
		return err
	}
	a, ok := app.Adapters[entityType]
	if !ok {
		return fmt.Errorf("no adapter registered for %s", entityType)
	}

	count, err := a.Requeue(ctx, cmd.IDs)
	app.Audit.LogRequeue(audit.Actor{IPAddress: "cli"}, entityType, len(cmd.IDs), count, err)
	if err != nil {
		return fmt.Errorf("failed to requeue %s records: %w", entityType, err)
	}

	fmt.Fprintf(cmd.out, "Requeued %d %s record(s)\n", count, entityType)
	return nil
}
