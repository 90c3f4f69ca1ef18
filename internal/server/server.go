package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"uploadai/internal/app/model"
)

// Service is the backend the handlers delegate to.
type Service interface {
	ListPrompts(ctx context.Context) ([]model.Prompt, error)
	CreateVideo(ctx context.Context, filename string, audio io.Reader) (model.Video, error)
	CreateTranscription(ctx context.Context, id, prompt string) (string, error)
	Complete(ctx context.Context, id, template string, temperature float64) (string, error)
}

type Config struct {
	BodyLimit       int
	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration
	// RateLimit disables the limiter when false.
	RateLimit bool
}

type structValidator struct {
	validate *validator.Validate
}

func (v *structValidator) Validate(out any) error {
	return v.validate.Struct(out)
}

// New builds the fiber app with middleware and routes registered.
func New(svc Service, cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:         "upload.ai",
		BodyLimit:       cfg.BodyLimit,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     2 * time.Minute,
		StructValidator: &structValidator{validate: validator.New()},
		ErrorHandler:    errorHandler,
	})

	app.Use(requestid.New(requestid.Config{Header: "X-Request-ID"}))
	app.Use(recover.New())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))

	if cfg.RateLimit && cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
			KeyGenerator: func(c fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c fiber.Ctx) error {
				return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, try again later")
			},
			Next: func(c fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions
			},
		}))
	}

	h := &handlers{svc: svc}
	app.Get("/prompts", h.listPrompts)
	app.Post("/videos", h.createVideo)
	app.Post("/videos/:id/transcription", h.createTranscription)
	app.Post("/ai/complete", h.complete)

	return app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, app *fiber.App, addr string) error {
	slog.Info("Server listening", "address", addr)
	err := app.Listen(addr, fiber.ListenConfig{
		DisableStartupMessage: true,
		GracefulContext:       ctx,
		ShutdownTimeout:       10 * time.Second,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	attrs := []any{"method", c.Method(), "path", c.Path(), "status", code, "request_id", requestid.FromContext(c)}
	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed", append(attrs, "error", err)...)
	} else {
		slog.Debug("Request rejected", append(attrs, "error", err)...)
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
