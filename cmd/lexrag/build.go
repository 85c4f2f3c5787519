package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the search index from the source document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.pipeline.BuildIndex(ctx, buildForce)
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		if stats.Skipped {
			fmt.Println("Index already built; use --force to rebuild.")
			return nil
		}

		app.retriever.RebuildSparse()

		slog.Info("build finished", "pages", stats.Pages, "chunks", stats.Chunks, "duration", stats.Duration)
		fmt.Printf("Indexed %d chunks from %d pages in %s.\n", stats.Chunks, stats.Pages, stats.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even if an index already exists")
}
