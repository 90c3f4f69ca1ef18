package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uploadai/internal/storage"
	"uploadai/internal/store"
	"uploadai/pkg/config"
	"uploadai/pkg/prompts"
)

const mp3Header = "ID3\x04\x00\x00fake mp3 payload"

type mockTranscriber struct {
	text      string
	err       error
	gotName   string
	gotPrompt string
	gotAudio  string
}

func (m *mockTranscriber) Transcribe(_ context.Context, name string, audio io.Reader, prompt string) (string, error) {
	data, _ := io.ReadAll(audio)
	m.gotName, m.gotPrompt, m.gotAudio = name, prompt, string(data)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

type mockCompleter struct {
	gotPrompt      string
	gotTemperature float64
}

func (m *mockCompleter) Complete(_ context.Context, prompt string, temperature float64) (string, error) {
	m.gotPrompt, m.gotTemperature = prompt, temperature
	return "completion", nil
}

type fixture struct {
	service     *Service
	repo        *store.Memory
	blobs       *storage.LocalStorage
	transcriber *mockTranscriber
	completer   *mockCompleter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:        store.NewMemory(),
		blobs:       storage.NewLocalStorage(t.TempDir()),
		transcriber: &mockTranscriber{text: "hello world"},
		completer:   &mockCompleter{},
	}
	f.service = NewService(ServiceOptions{
		Repository:    f.repo,
		Blobs:         f.blobs,
		Transcriber:   f.transcriber,
		Completer:     f.completer,
		NewKey:        func() string { return "fixed-key" },
		DefaultPrompt: "default vocabulary",
	})
	return f
}

func TestListPromptsEmpty(t *testing.T) {
	f := newFixture(t)

	list, err := f.service.ListPrompts(context.Background())
	if err != nil {
		t.Fatalf("ListPrompts() error = %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ListPrompts() = %#v, want empty non-nil slice", list)
	}
}

func TestSeedPromptsOnlyWhenEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	templates := []prompts.Template{
		{Title: "YouTube title", Template: "Title: {transcription}"},
		{Title: "YouTube description", Template: "Description: {transcription}"},
	}

	n, err := f.service.SeedPrompts(ctx, templates)
	if err != nil || n != 2 {
		t.Fatalf("first SeedPrompts() = %d, %v, want 2, nil", n, err)
	}

	n, err = f.service.SeedPrompts(ctx, templates)
	if err != nil || n != 0 {
		t.Fatalf("second SeedPrompts() = %d, %v, want 0, nil", n, err)
	}

	list, _ := f.service.ListPrompts(ctx)
	if len(list) != 2 {
		t.Fatalf("len(prompts) = %d, want 2", len(list))
	}
	if list[0].Title != "YouTube title" {
		t.Errorf("prompts[0].Title = %q, want %q", list[0].Title, "YouTube title")
	}
}

func TestCreateVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	video, err := f.service.CreateVideo(ctx, "my talk.mp3", strings.NewReader(mp3Header))
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	if video.Path != "videos/fixed-key.mp3" {
		t.Errorf("Path = %q, want %q", video.Path, "videos/fixed-key.mp3")
	}
	if video.Name != "my_talk.mp3" {
		t.Errorf("Name = %q, want %q", video.Name, "my_talk.mp3")
	}
	if video.ID.IsZero() {
		t.Error("ID should be assigned")
	}

	r, err := f.blobs.Open(ctx, video.Path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = r.Close() }()
	data, _ := io.ReadAll(r)
	if string(data) != mp3Header {
		t.Errorf("stored audio = %q, want %q", data, mp3Header)
	}
}

func TestCreateVideoRejectsNonMP3(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
	}{
		{name: "wrongExtension", filename: "clip.mp4", body: mp3Header},
		{name: "wrongContent", filename: "clip.mp3", body: "<html>"},
		{name: "empty", filename: "clip.mp3", body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.service.CreateVideo(context.Background(), tt.filename, strings.NewReader(tt.body))
			if !errors.Is(err, ErrUnsupportedAudio) {
				t.Errorf("CreateVideo() error = %v, want ErrUnsupportedAudio", err)
			}

			videos, _ := f.repo.ListVideos(context.Background())
			if len(videos) != 0 {
				t.Errorf("len(videos) = %d, want 0", len(videos))
			}
		})
	}
}

func TestCreateTranscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video, err := f.service.CreateVideo(ctx, "audio.mp3", strings.NewReader(mp3Header))
	if err != nil {
		t.Fatal(err)
	}

	text, err := f.service.CreateTranscription(ctx, video.ID.Hex(), "keyword1, keyword2")
	if err != nil {
		t.Fatalf("CreateTranscription() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
	if f.transcriber.gotPrompt != "keyword1, keyword2" {
		t.Errorf("prompt = %q, want %q", f.transcriber.gotPrompt, "keyword1, keyword2")
	}
	if f.transcriber.gotName != "fixed-key.mp3" {
		t.Errorf("name = %q, want %q", f.transcriber.gotName, "fixed-key.mp3")
	}
	if f.transcriber.gotAudio != mp3Header {
		t.Errorf("audio = %q, want %q", f.transcriber.gotAudio, mp3Header)
	}

	stored, err := f.repo.GetVideo(ctx, video.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Transcription != "hello world" {
		t.Errorf("stored transcription = %q, want %q", stored.Transcription, "hello world")
	}
}

func TestCreateTranscriptionDefaultPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video, _ := f.service.CreateVideo(ctx, "audio.mp3", strings.NewReader(mp3Header))

	if _, err := f.service.CreateTranscription(ctx, video.ID.Hex(), "   "); err != nil {
		t.Fatalf("CreateTranscription() error = %v", err)
	}
	if f.transcriber.gotPrompt != "default vocabulary" {
		t.Errorf("prompt = %q, want %q", f.transcriber.gotPrompt, "default vocabulary")
	}
}

func TestCreateTranscriptionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.CreateTranscription(ctx, "not-an-id", ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("invalid id error = %v, want ErrInvalidID", err)
	}
	if _, err := f.service.CreateTranscription(ctx, primitive.NewObjectID().Hex(), ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown id error = %v, want store.ErrNotFound", err)
	}

	video, _ := f.service.CreateVideo(ctx, "audio.mp3", strings.NewReader(mp3Header))
	f.transcriber.err = errors.New("rate limited")
	_, err := f.service.CreateTranscription(ctx, video.ID.Hex(), "")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("transcriber error = %v, want it to mention the cause", err)
	}

	stored, _ := f.repo.GetVideo(ctx, video.ID)
	if stored.Transcription != "" {
		t.Errorf("stored transcription = %q, want empty", stored.Transcription)
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	video, _ := f.service.CreateVideo(ctx, "audio.mp3", strings.NewReader(mp3Header))

	if _, err := f.service.Complete(ctx, video.ID.Hex(), "Title: {transcription}", 0.5); !errors.Is(err, ErrNoTranscription) {
		t.Errorf("Complete() before transcription error = %v, want ErrNoTranscription", err)
	}

	if _, err := f.service.CreateTranscription(ctx, video.ID.Hex(), ""); err != nil {
		t.Fatal(err)
	}

	got, err := f.service.Complete(ctx, video.ID.Hex(), "Title: {transcription}", 0.5)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "completion" {
		t.Errorf("Complete() = %q, want %q", got, "completion")
	}
	if f.completer.gotPrompt != "Title: hello world" {
		t.Errorf("prompt = %q, want %q", f.completer.gotPrompt, "Title: hello world")
	}
	if f.completer.gotTemperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", f.completer.gotTemperature)
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.CreateVideo(ctx, "audio.mp3", strings.NewReader(mp3Header)); err != nil {
		t.Fatal(err)
	}
	if err := f.blobs.Put(ctx, "videos/orphan.mp3", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	removed, err := f.service.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if keys, _ := f.blobs.List(ctx, "videos/"); len(keys) != 0 {
		t.Errorf("remaining blobs = %v, want none", keys)
	}
	if videos, _ := f.repo.ListVideos(ctx); len(videos) != 0 {
		t.Errorf("remaining videos = %d, want 0", len(videos))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple", input: "audio.mp3", want: "audio.mp3"},
		{name: "spaces", input: "my talk.mp3", want: "my_talk.mp3"},
		{name: "path", input: "../../etc/passwd.mp3", want: "passwd.mp3"},
		{name: "windowsPath", input: `C:\Users\me\clip.mp3`, want: "clip.mp3"},
		{name: "empty", input: "", want: "audio.mp3"},
		{name: "long", input: strings.Repeat("a", 200) + ".mp3", want: strings.Repeat("a", 76) + ".mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFileName(tt.input); got != tt.want {
				t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLooksLikeMP3(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{name: "id3", data: []byte("ID3\x04"), want: true},
		{name: "frameSync", data: []byte{0xFF, 0xFB, 0x90}, want: true},
		{name: "html", data: []byte("<html>"), want: false},
		{name: "tooShort", data: []byte{0xFF}, want: false},
		{name: "empty", data: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := looksLikeMP3(bufio.NewReader(strings.NewReader(string(tt.data))))
			if got != tt.want {
				t.Errorf("looksLikeMP3() = %v, want %v", got, tt.want)
			}
		})
	}
}

func writePrompts(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "prompts.yaml")
	content := `
transcription: "upload.ai"
templates:
  - title: "YouTube title"
    template: "Title for: {transcription}"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildServiceLocalFallbacks(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.GroqAPIKey = "test-api-key"
	cfg.Storage.LocalDir = filepath.Join(dir, "audio")
	cfg.Prompts.Path = writePrompts(t, dir)

	ctx := context.Background()
	result, err := BuildService(ctx, cfg)
	if err != nil {
		t.Fatalf("BuildService() error = %v", err)
	}
	defer func() {
		if err := result.Close(ctx); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	list, err := result.Service.ListPrompts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "YouTube title" {
		t.Errorf("prompts = %+v, want the seeded template", list)
	}
	if result.Service.defaultPrompt != "upload.ai" {
		t.Errorf("defaultPrompt = %q, want %q", result.Service.defaultPrompt, "upload.ai")
	}
	if result.Service.transcriber == nil || result.Service.completer == nil {
		t.Error("groq client should be wired when GROQ_API_KEY is set")
	}
}

func TestBuildServiceWithoutGroqKey(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.LocalDir = filepath.Join(dir, "audio")
	cfg.Prompts.Path = writePrompts(t, dir)
	cfg.Prompts.SkipSeed = true

	ctx := context.Background()
	result, err := BuildService(ctx, cfg)
	if err != nil {
		t.Fatalf("BuildService() error = %v", err)
	}

	video, err := result.Service.CreateVideo(ctx, "audio.mp3", strings.NewReader(mp3Header))
	if err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}

	if _, err := result.Service.CreateTranscription(ctx, video.ID.Hex(), ""); !errors.Is(err, ErrGroqUnavailable) {
		t.Errorf("CreateTranscription() error = %v, want ErrGroqUnavailable", err)
	}
	if _, err := result.Service.Complete(ctx, video.ID.Hex(), "{transcription}", 0); !errors.Is(err, ErrGroqUnavailable) {
		t.Errorf("Complete() error = %v, want ErrGroqUnavailable", err)
	}

	removed, err := result.Service.Clear(ctx)
	if err != nil || removed != 1 {
		t.Errorf("Clear() = %d, %v, want 1, nil", removed, err)
	}
}

func TestBuildServiceSkipSeedAndMissingPrompts(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.GroqAPIKey = "test-api-key"
	cfg.Storage.LocalDir = dir
	cfg.Prompts.Path = filepath.Join(dir, "missing.yaml")
	cfg.Prompts.SkipSeed = true

	ctx := context.Background()
	result, err := BuildService(ctx, cfg)
	if err != nil {
		t.Fatalf("BuildService() error = %v", err)
	}

	list, err := result.Service.ListPrompts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("len(prompts) = %d, want 0", len(list))
	}
}
