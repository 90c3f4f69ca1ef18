package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"uploadai/internal/app"
	"uploadai/internal/server"
	"uploadai/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload backend",
	Long:  `Serve /prompts, /videos, /videos/:id/transcription and /ai/complete.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is not set")
	}

	result, err := app.BuildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := result.Close(closeCtx); err != nil {
			slog.Warn("Failed to close backend", "error", err)
		}
	}()

	fiberApp := server.New(result.Service, server.Config{
		BodyLimit:       cfg.Server.BodyLimitMB * 1024 * 1024,
		CORSOrigins:     cfg.CORSOriginList(),
		RateLimit:       cfg.RateLimitEnable,
		RateLimitMax:    cfg.Server.RateLimitMax,
		RateLimitWindow: cfg.Server.RateLimitWindow,
	})

	return server.Run(ctx, fiberApp, cfg.Server.Address)
}
