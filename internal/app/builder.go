package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"uploadai/internal/groq"
	"uploadai/internal/storage"
	"uploadai/internal/store"
	"uploadai/pkg/config"
	"uploadai/pkg/prompts"
)

type BuildResult struct {
	Service *Service
	// Close releases the database and storage clients.
	Close func(ctx context.Context) error
}

// BuildService wires the backend from configuration: MongoDB when MONGODB_URI
// is set, GCS when GCS_BUCKET is set, local fallbacks otherwise. Without
// GROQ_API_KEY transcription and completion return ErrGroqUnavailable.
func BuildService(ctx context.Context, cfg *config.Config) (*BuildResult, error) {
	p, err := loadPrompts(cfg.Prompts.Path)
	if err != nil {
		return nil, err
	}

	var groqClient *groq.Client
	if cfg.GroqAPIKey != "" {
		groqClient, err = groq.NewClient(groq.Config{
			APIKey:          cfg.GroqAPIKey,
			TranscribeModel: cfg.Groq.TranscribeModel,
			CompletionModel: cfg.Groq.CompletionModel,
			Language:        cfg.Groq.Language,
			SystemPrompt:    p.System.Completion,
		})
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("GROQ_API_KEY not set, transcription and completion are disabled")
	}

	var closers []func(context.Context) error

	var repo store.Repository
	if cfg.MongoURI != "" {
		mongoRepo, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		repo = mongoRepo
		closers = append(closers, mongoRepo.Close)
	} else {
		slog.Warn("MONGODB_URI not set, records are kept in memory")
		repo = store.NewMemory()
	}

	var blobs storage.BlobStore
	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSStorage(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, errors.Join(err, closeAll(ctx, closers))
		}
		blobs = gcs
		closers = append(closers, func(context.Context) error { return gcs.Close() })
	} else {
		slog.Debug("Using local audio storage", "dir", cfg.Storage.LocalDir)
		blobs = storage.NewLocalStorage(cfg.Storage.LocalDir)
	}

	service := NewService(ServiceOptions{
		Repository:    repo,
		Blobs:         blobs,
		Transcriber:   transcriber(groqClient),
		Completer:     completer(groqClient),
		DefaultPrompt: p.Transcription,
	})

	if !cfg.Prompts.SkipSeed {
		if _, err := service.SeedPrompts(ctx, p.Templates); err != nil {
			return nil, errors.Join(fmt.Errorf("seed prompts: %w", err), closeAll(ctx, closers))
		}
	}

	return &BuildResult{
		Service: service,
		Close:   func(ctx context.Context) error { return closeAll(ctx, closers) },
	}, nil
}

// transcriber and completer keep a nil client out of the interfaces.
func transcriber(c *groq.Client) Transcriber {
	if c == nil {
		return nil
	}
	return c
}

func completer(c *groq.Client) Completer {
	if c == nil {
		return nil
	}
	return c
}

func loadPrompts(path string) (*prompts.Prompts, error) {
	p, err := prompts.LoadFrom(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("No prompts file found, nothing to seed", "path", path)
		return &prompts.Prompts{}, nil
	}
	return p, err
}

func closeAll(ctx context.Context, closers []func(context.Context) error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i](ctx))
	}
	return errors.Join(errs...)
}
