package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veloxcase/cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the preview, analysis, sync and folder operations as a JSON API.

Set server.token to require "Authorization: Bearer <token>" on /api routes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireJira(); err != nil {
		return err
	}
	if err := cfg.RequireTestmo(); err != nil {
		return err
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx)
	defer a.Close()

	var history server.History
	if a.db != nil {
		history = a.db
	}
	if cfg.Server.Token == "" {
		logger.Warn("server.token is not set; the API is unauthenticated")
	}

	srv := server.New(a.orch, a.registry, history, server.Config{
		Token:    cfg.Server.Token,
		Settings: cfg.Analysis,
		MaxTasks: cfg.MaxTasks,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
