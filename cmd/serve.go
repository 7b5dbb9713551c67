package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/serisow/lesocle-kb/config"
	"github.com/serisow/lesocle-kb/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the knowledge base HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed", slog.String("error", err.Error()))
		return fmt.Errorf("startup failed: %w", err)
	}
	defer app.Close()

	r := server.SetupRoutes(server.Services{
		KnowledgeBase:  app.manager,
		Ingester:       app.processor,
		Answerer:       app.pipeline,
		MaxUploadBytes: cfg.MaxUploadBytes,
		IngestTimeout:  cfg.IngestTimeout,
	}, logger)
	n := server.SetupNegroni(r)

	serverCfg := server.Config{
		Domains:         cfg.Domains,
		CertCacheDir:    cfg.CertCacheDir,
		HTTPPort:        cfg.HTTPPort,
		IdleTimeout:     time.Minute,
		ReadTimeout:     time.Minute,
		WriteTimeout:    writeTimeout(cfg),
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	logger.Info("Starting server",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.HTTPPort))

	if cfg.Environment == "production" {
		err = server.ServeProduction(ctx, n, serverCfg)
	} else {
		err = server.ServeDevelopment(ctx, server.NewDevelopmentServer(n, serverCfg), serverCfg.ShutdownTimeout)
	}
	if err != nil {
		logger.Error("Server stopped", slog.String("error", err.Error()))
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// writeTimeout lets the slowest route answer before the connection is cut.
// A query waits on at most two generation calls; an upload is bounded by
// IngestTimeout inside the handler.
func writeTimeout(cfg config.Config) time.Duration {
	return max(2*cfg.RequestTimeout, cfg.IngestTimeout) + 30*time.Second
}
