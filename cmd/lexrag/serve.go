package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexrag/lexrag/internal/chatlog"
	"github.com/lexrag/lexrag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieval and chat API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		log, err := chatlog.Open(cfg.ChatDBPath)
		if err != nil {
			return fmt.Errorf("opening chat log: %w", err)
		}
		defer log.Close()

		srv := server.New(server.Config{
			Host:      cfg.APIHost,
			Port:      cfg.APIPort,
			Logger:    slog.Default(),
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
			JWTExpiry: cfg.JWTExpiry,
		}, app.retriever, app.generator, app.processor, app.memory, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			slog.Info("received shutdown signal", "signal", sig)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
