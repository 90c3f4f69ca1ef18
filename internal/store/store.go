package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uploadai/internal/app/model"
)

var ErrNotFound = errors.New("record not found")

// Repository persists prompt templates and uploaded videos. Prompts are
// returned in insertion order.
type Repository interface {
	ListPrompts(ctx context.Context) ([]model.Prompt, error)
	CountPrompts(ctx context.Context) (int64, error)
	InsertPrompts(ctx context.Context, prompts []model.Prompt) error

	CreateVideo(ctx context.Context, video *model.Video) error
	GetVideo(ctx context.Context, id primitive.ObjectID) (model.Video, error)
	ListVideos(ctx context.Context) ([]model.Video, error)
	SetTranscription(ctx context.Context, id primitive.ObjectID, transcription string) error
	DeleteVideo(ctx context.Context, id primitive.ObjectID) error
}
