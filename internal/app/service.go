package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uploadai/internal/app/model"
	"uploadai/internal/storage"
	"uploadai/internal/store"
	"uploadai/pkg/prompts"
)

const videoPrefix = "videos/"

var (
	ErrInvalidID        = errors.New("invalid video id")
	ErrUnsupportedAudio = errors.New("only .mp3 audio is accepted")
	ErrNoTranscription  = errors.New("video has no transcription yet")
	ErrGroqUnavailable  = errors.New("transcription service is not configured")
)

type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio io.Reader, prompt string) (string, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Service implements the backend operations behind the HTTP API.
type Service struct {
	repo          store.Repository
	blobs         storage.BlobStore
	transcriber   Transcriber
	completer     Completer
	newKey        func() string
	defaultPrompt string
}

type ServiceOptions struct {
	Repository  store.Repository
	Blobs       storage.BlobStore
	Transcriber Transcriber
	Completer   Completer
	// NewKey returns the unique part of a blob key.
	NewKey func() string
	// DefaultPrompt is sent to the transcriber when a request has none.
	DefaultPrompt string
}

func NewService(opts ServiceOptions) *Service {
	newKey := opts.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Service{
		repo:          opts.Repository,
		blobs:         opts.Blobs,
		transcriber:   opts.Transcriber,
		completer:     opts.Completer,
		newKey:        newKey,
		defaultPrompt: opts.DefaultPrompt,
	}
}

// ListPrompts never returns nil so an empty store encodes as [].
func (s *Service) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	list, err := s.repo.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Prompt{}
	}
	return list, nil
}

// SeedPrompts inserts templates only when no prompt exists yet.
func (s *Service) SeedPrompts(ctx context.Context, templates []prompts.Template) (int, error) {
	n, err := s.repo.CountPrompts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 || len(templates) == 0 {
		return 0, nil
	}

	records := make([]model.Prompt, len(templates))
	for i, t := range templates {
		records[i] = model.Prompt{Title: t.Title, Template: t.Template}
	}
	if err := s.repo.InsertPrompts(ctx, records); err != nil {
		return 0, err
	}

	slog.Info("Seeded prompts", "count", len(records))
	return len(records), nil
}

// CreateVideo stores the uploaded audio under videos/<key>.mp3 and records it.
func (s *Service) CreateVideo(ctx context.Context, filename string, audio io.Reader) (model.Video, error) {
	if !hasMP3Extension(filename) {
		return model.Video{}, ErrUnsupportedAudio
	}

	br := bufio.NewReader(audio)
	if !looksLikeMP3(br) {
		return model.Video{}, fmt.Errorf("%w: content is not mpeg audio", ErrUnsupportedAudio)
	}

	key := videoPrefix + s.newKey() + ".mp3"
	if err := s.blobs.Put(ctx, key, br); err != nil {
		return model.Video{}, fmt.Errorf("store audio: %w", err)
	}

	video := model.Video{
		Name: sanitizeFileName(filename),
		Path: key,
	}
	if err := s.repo.CreateVideo(ctx, &video); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return model.Video{}, fmt.Errorf("create video: %w", err)
	}

	slog.Info("Video uploaded", "id", video.ID.Hex(), "path", key)
	return video, nil
}

// CreateTranscription transcribes the stored audio and saves the text.
func (s *Service) CreateTranscription(ctx context.Context, id, prompt string) (string, error) {
	if s.transcriber == nil {
		return "", ErrGroqUnavailable
	}
	video, err := s.video(ctx, id)
	if err != nil {
		return "", err
	}

	audio, err := s.blobs.Open(ctx, video.Path)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = audio.Close() }()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = s.defaultPrompt
	}

	slog.Debug("Transcribing video", "id", id, "path", video.Path)
	text, err := s.transcriber.Transcribe(ctx, path.Base(video.Path), audio, prompt)
	if err != nil {
		return "", fmt.Errorf("transcribe video %s: %w", id, err)
	}

	if err := s.repo.SetTranscription(ctx, video.ID, text); err != nil {
		return "", fmt.Errorf("save transcription: %w", err)
	}

	slog.Info("Transcription created", "id", id, "chars", len(text))
	return text, nil
}

// Complete fills the template with the video's transcription and asks the
// completion model for an answer.
func (s *Service) Complete(ctx context.Context, id, template string, temperature float64) (string, error) {
	if s.completer == nil {
		return "", ErrGroqUnavailable
	}
	video, err := s.video(ctx, id)
	if err != nil {
		return "", err
	}
	if video.Transcription == "" {
		return "", ErrNoTranscription
	}

	prompt, err := prompts.Render(template, video.Transcription)
	if err != nil {
		return "", err
	}

	completion, err := s.completer.Complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("complete for video %s: %w", id, err)
	}
	return completion, nil
}

// Clear deletes every video record and every stored audio object, including
// objects no record points to.
func (s *Service) Clear(ctx context.Context) (int, error) {
	videos, err := s.repo.ListVideos(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	removed := 0
	for _, v := range videos {
		if err := s.repo.DeleteVideo(ctx, v.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	keys, err := s.blobs.List(ctx, videoPrefix)
	if err != nil {
		errs = append(errs, err)
	}
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	return removed, errors.Join(errs...)
}

func (s *Service) video(ctx context.Context, id string) (model.Video, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.Video{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return s.repo.GetVideo(ctx, oid)
}
