package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uploadai/internal/app/model"
)

// Memory is a Repository for tests and for running the server without MongoDB.
type Memory struct {
	mu      sync.RWMutex
	prompts []model.Prompt
	videos  []model.Video
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) ListPrompts(_ context.Context) ([]model.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prompts := make([]model.Prompt, len(m.prompts))
	copy(prompts, m.prompts)
	return prompts, nil
}

func (m *Memory) CountPrompts(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.prompts)), nil
}

func (m *Memory) InsertPrompts(_ context.Context, prompts []model.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range prompts {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		m.prompts = append(m.prompts, p)
	}
	return nil
}

func (m *Memory) CreateVideo(_ context.Context, video *model.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if video.ID.IsZero() {
		video.ID = primitive.NewObjectID()
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = m.now().UTC()
	}
	for _, v := range m.videos {
		if v.ID == video.ID {
			return fmt.Errorf("video %s already exists", video.ID.Hex())
		}
	}
	m.videos = append(m.videos, *video)
	return nil
}

func (m *Memory) GetVideo(_ context.Context, id primitive.ObjectID) (model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return model.Video{}, fmt.Errorf("video %s: %w", id.Hex(), ErrNotFound)
	}
	return m.videos[i], nil
}

func (m *Memory) ListVideos(_ context.Context) ([]model.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	videos := make([]model.Video, len(m.videos))
	copy(videos, m.videos)
	return videos, nil
}

func (m *Memory) SetTranscription(_ context.Context, id primitive.ObjectID, transcription string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("video %s: %w", id.Hex(), ErrNotFound)
	}
	m.videos[i].Transcription = transcription
	return nil
}

func (m *Memory) DeleteVideo(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("video %s: %w", id.Hex(), ErrNotFound)
	}
	m.videos = append(m.videos[:i], m.videos[i+1:]...)
	return nil
}

func (m *Memory) indexOf(id primitive.ObjectID) int {
	for i, v := range m.videos {
		if v.ID == id {
			return i
		}
	}
	return -1
}
