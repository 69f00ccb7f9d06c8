// Package cli implements the one-shot maintenance commands run from main.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/config"
	"github.com/mrlokans/taxsync/internal/entrypoint"
)

// base carries the flags and wiring shared by every command.
type base struct {
	DatabasePath string
	Verbose      bool

	out  io.Writer
	opts []entrypoint.AppOption
}

func newBase() base {
	return base{out: os.Stdout}
}

// openApp loads configuration, applies flag overrides and wires the application.
func (b *base) openApp() (*entrypoint.App, error) {
	cfg := config.NewConfig()
	if b.DatabasePath != "" {
		cfg.Database.Path = b.DatabasePath
	}
	if b.Verbose {
		cfg.Logging.Level = "debug"
	} else {
		cfg.Logging.Level = "warn"
	}

	logger, err := entrypoint.NewLogger(cfg.Logging)
	if err != nil {
		logger = zap.NewNop().Sugar()
	}
	return entrypoint.NewApp(cfg, logger, b.opts...)
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
