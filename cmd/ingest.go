package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursemate/coursemate/internal/config"
)

var ingestClear bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Index a directory of course documents",
	Long: `Chunks and embeds every course document (*.json) in the directory.

Courses already present in the index are skipped. With --clear, the index
is emptied first for a full rebuild.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(args[0])
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "clear the index before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(dir string) error {
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

	courses, chunks, err := a.system.AddCourseDir(ctx, dir, ingestClear)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Indexed %d courses (%d chunks)\n", courses, chunks)
	return nil
}
