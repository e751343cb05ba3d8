package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coursemate/coursemate/internal/config"
)

var askDocsDir string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question from the command line",
	Long: `Answers one question and exits. With --docs, the directory's course
documents are ingested first; without it the index starts empty and
answers come from model knowledge alone.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askDocsDir, "docs", "", "course document directory to ingest first")
	rootCmd.AddCommand(askCmd)
}

func runAsk(question string) error {
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

	if askDocsDir != "" {
		if _, _, err := a.system.AddCourseDir(ctx, askDocsDir, false); err != nil {
			return fmt.Errorf("ingesting %s: %w", askDocsDir, err)
		}
	}

	answer, sources, _, err := a.system.Query(ctx, question, "")
	if err != nil {
		return err
	}

	fmt.Println(answer)
	if len(sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range sources {
			if src.Link != "" {
				fmt.Printf("  - %s (%s)\n", src.Text, src.Link)
			} else {
				fmt.Printf("  - %s\n", src.Text)
			}
		}
	}
	return nil
}
