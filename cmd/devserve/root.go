package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/devserve/internal/app"
	"github.com/Tyrowin/devserve/internal/config"
	"github.com/Tyrowin/devserve/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserve",
		Short: "Static file server with live reload",
		Long: `devserve serves a directory over HTTP, injects a live-reload client into
HTML pages and tells connected browsers to reload when .html, .css or .js
files change. The reload channel listens on port+1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logg.Sync() }()
	zap.ReplaceGlobals(logg)

	if err := app.CheckCapabilities(app.Capabilities(cfg)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, logg).Run(ctx); err != nil {
		return err
	}
	logg.Info("Server stopped")
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"})
		if logErr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fields := []zap.Field{zap.Error(err)}
		switch {
		case errors.Is(err, config.ErrInvalidPort), errors.Is(err, config.ErrInvalidRoot):
			fields = append(fields, zap.String("hint", "run devserve --help for usage"))
		case errors.Is(err, app.ErrCapabilityMissing):
			fields = append(fields, zap.String("hint", "start with --no-reload to skip live reload"))
		}
		l.Error("devserve failed", fields...)
		_ = l.Sync()
		os.Exit(1)
	}
}
