// Command lexrag indexes U.S. Code Title 18 and answers legal questions
// over it, interactively or through an HTTP API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexrag/lexrag/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "lexrag",
	Short:         "Legal document retrieval and question answering",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		level := slog.LevelInfo
		if cfg.LogLevel == "debug" {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		return cfg.EnsureDirectories()
	},
}

func init() {
	rootCmd.AddCommand(buildCmd, chatCmd, serveCmd)
}
