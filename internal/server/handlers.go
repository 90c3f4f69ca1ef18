package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"uploadai/internal/app"
	"uploadai/internal/store"
	"uploadai/pkg/prompts"
)

type handlers struct {
	svc Service
}

type transcriptionRequest struct {
	Prompt string `json:"prompt" validate:"max=2000"`
}

type completeRequest struct {
	VideoID     string  `json:"videoId" validate:"required"`
	Template    string  `json:"template" validate:"required"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
}

func (h *handlers) listPrompts(c fiber.Ctx) error {
	list, err := h.svc.ListPrompts(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *handlers) createVideo(c fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file")
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = file.Close() }()

	video, err := h.svc.CreateVideo(c.Context(), header.Filename, file)
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"video": video})
}

func (h *handlers) createTranscription(c fiber.Ctx) error {
	var req transcriptionRequest
	// the prompt is optional, so an empty body is accepted
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return bindError(err)
		}
	}

	text, err := h.svc.CreateTranscription(c.Context(), c.Params("id"), req.Prompt)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"transcription": text})
}

func (h *handlers) complete(c fiber.Ctx) error {
	var req completeRequest
	if err := c.Bind().Body(&req); err != nil {
		return bindError(err)
	}

	completion, err := h.svc.Complete(c.Context(), req.VideoID, req.Template, req.Temperature)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"completion": completion})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, app.ErrInvalidID):
		return fiber.NewError(fiber.StatusBadRequest, "invalid video id")
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "video not found")
	case errors.Is(err, app.ErrUnsupportedAudio):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, app.ErrUnsupportedAudio.Error())
	case errors.Is(err, app.ErrNoTranscription):
		return fiber.NewError(fiber.StatusConflict, app.ErrNoTranscription.Error())
	case errors.Is(err, app.ErrGroqUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, app.ErrGroqUnavailable.Error())
	case errors.Is(err, prompts.ErrNoPlaceholder):
		return fiber.NewError(fiber.StatusBadRequest, prompts.ErrNoPlaceholder.Error())
	default:
		return err
	}
}

func bindError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return fiber.NewError(fiber.StatusBadRequest, "validation error: "+strings.Join(fields, ", "))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiber.NewError(fiber.StatusBadRequest, fiberErr.Message)
	}
	return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
}
