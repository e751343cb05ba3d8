package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursemate/coursemate/api"
	"github.com/coursemate/coursemate/internal/config"
	"github.com/coursemate/coursemate/internal/log"
)

var serveDocsDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API.

With --docs, the directory's course documents are ingested before the
server starts accepting requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDocsDir, "docs", "", "course document directory to ingest on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if serveDocsDir != "" {
		courses, chunks, err := a.system.AddCourseDir(ctx, serveDocsDir, false)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", serveDocsDir, err)
		}
		logger.Info("startup ingestion complete", "courses", courses, "chunks", chunks)
	}

	server := api.NewServer(a.system, logger)
	return server.Run(ctx, cfg.HTTPAddr)
}

// newLogger builds the process logger. DEBUG in the environment switches on
// debug-level logging.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}
