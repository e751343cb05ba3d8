// Package cmd contains the CLI entry points.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coursemate",
	Short: "Course-materials assistant with semantic search",
	Long: `Coursemate answers questions about indexed course materials.

Course documents are chunked, embedded, and stored in a dual-collection
semantic index; answers are generated with retrieval-augmented Gemini
completions and attributed back to courses and lessons.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()
	return rootCmd.Execute()
}
