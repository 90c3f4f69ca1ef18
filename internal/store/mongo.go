package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uploadai/internal/app/model"
)

const (
	promptsCollection = "prompts"
	videosCollection  = "videos"
)

type Mongo struct {
	client  *mongo.Client
	prompts *mongo.Collection
	videos  *mongo.Collection
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("database connection URL is empty")
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(20).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(30 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("Connected to MongoDB", "database", database)

	db := client.Database(database)
	return &Mongo{
		client:  client,
		prompts: db.Collection(promptsCollection),
		videos:  db.Collection(videosCollection),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB client: %w", err)
	}
	return nil
}

func (m *Mongo) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	cur, err := m.prompts.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find prompts: %w", err)
	}

	prompts := make([]model.Prompt, 0)
	if err := cur.All(ctx, &prompts); err != nil {
		return nil, fmt.Errorf("failed to decode prompts: %w", err)
	}
	return prompts, nil
}

func (m *Mongo) CountPrompts(ctx context.Context) (int64, error) {
	n, err := m.prompts.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count prompts: %w", err)
	}
	return n, nil
}

func (m *Mongo) InsertPrompts(ctx context.Context, prompts []model.Prompt) error {
	if len(prompts) == 0 {
		return nil
	}

	docs := make([]any, len(prompts))
	for i, p := range prompts {
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		docs[i] = p
	}

	if _, err := m.prompts.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert prompts: %w", err)
	}
	return nil
}

func (m *Mongo) CreateVideo(ctx context.Context, video *model.Video) error {
	if video.ID.IsZero() {
		video.ID = primitive.NewObjectID()
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Now().UTC()
	}

	if _, err := m.videos.InsertOne(ctx, video); err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (m *Mongo) GetVideo(ctx context.Context, id primitive.ObjectID) (model.Video, error) {
	var video model.Video
	err := m.videos.FindOne(ctx, bson.M{"_id": id}).Decode(&video)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Video{}, fmt.Errorf("video %s: %w", id.Hex(), ErrNotFound)
	}
	if err != nil {
		return model.Video{}, fmt.Errorf("failed to find video: %w", err)
	}
	return video, nil
}

func (m *Mongo) ListVideos(ctx context.Context) ([]model.Video, error) {
	cur, err := m.videos.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find videos: %w", err)
	}

	videos := make([]model.Video, 0)
	if err := cur.All(ctx, &videos); err != nil {
		return nil, fmt.Errorf("failed to decode videos: %w", err)
	}
	return videos, nil
}

func (m *Mongo) SetTranscription(ctx context.Context, id primitive.ObjectID, transcription string) error {
	res, err := m.videos.UpdateByID(ctx, id, bson.M{"$set": bson.M{"transcription": transcription}})
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("video %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}

func (m *Mongo) DeleteVideo(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.videos.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("video %s: %w", id.Hex(), ErrNotFound)
	}
	return nil
}
