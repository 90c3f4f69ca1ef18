package form

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"uploadai/internal/app/model"
	"uploadai/internal/workflow"
)

type stubTranscoder struct{ err error }

func (s stubTranscoder) Transcode(_ context.Context, _ model.VideoFile) (model.AudioArtifact, error) {
	if s.err != nil {
		return model.AudioArtifact{}, s.err
	}
	return model.AudioArtifact{Name: "audio.mp3", MediaType: model.MediaTypeMPEG, Data: []byte("mp3")}, nil
}

type stubAPI struct {
	id        model.VideoID
	gotPrompt string
}

func (s *stubAPI) CreateVideo(_ context.Context, _ model.AudioArtifact) (model.VideoID, error) {
	return s.id, nil
}

func (s *stubAPI) CreateTranscription(_ context.Context, _ model.VideoID, prompt string) error {
	s.gotPrompt = prompt
	return nil
}

func writeVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("mp4 bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSelectFile(t *testing.T) {
	f := New(workflow.New(stubTranscoder{}, &stubAPI{id: "v"}, workflow.Options{}), nil)
	if f.PreviewURL() != "" || f.CanSubmit() {
		t.Fatal("new form should have no preview and not be submittable")
	}

	path := writeVideo(t, "talk.mp4")
	if err := f.SelectFile(path); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if f.FileName() != "talk.mp4" {
		t.Errorf("FileName() = %q, want talk.mp4", f.FileName())
	}
	if !strings.HasPrefix(f.PreviewURL(), "file://") || !strings.HasSuffix(f.PreviewURL(), "/talk.mp4") {
		t.Errorf("PreviewURL() = %q", f.PreviewURL())
	}
	if !f.CanSubmit() {
		t.Error("CanSubmit() = false after selecting a video")
	}
}

func TestSelectFileRejectsOtherContainers(t *testing.T) {
	f := New(workflow.New(stubTranscoder{}, &stubAPI{}, workflow.Options{}), nil)

	err := f.SelectFile(writeVideo(t, "clip.mov"))
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("SelectFile() error = %v, want ErrUnsupportedFile", err)
	}
	if f.PreviewURL() != "" {
		t.Errorf("PreviewURL() = %q, want empty", f.PreviewURL())
	}
}

func TestSubmitCallsOnUploadedOnce(t *testing.T) {
	var uploaded []model.VideoID
	api := &stubAPI{id: "video-1"}
	f := New(workflow.New(stubTranscoder{}, api, workflow.Options{}), func(id model.VideoID) {
		uploaded = append(uploaded, id)
	})
	if err := f.SelectFile(writeVideo(t, "talk.mp4")); err != nil {
		t.Fatal(err)
	}

	id, err := f.Submit(context.Background(), "  keyword1, keyword2 ")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id != "video-1" {
		t.Errorf("id = %q", id)
	}
	if len(uploaded) != 1 || uploaded[0] != "video-1" {
		t.Errorf("OnUploaded calls = %v, want [video-1]", uploaded)
	}
	if api.gotPrompt != "  keyword1, keyword2 " {
		t.Errorf("prompt = %q, want it sent unchanged", api.gotPrompt)
	}
	if f.ButtonLabel() != "Done!" || f.PromptEditable() {
		t.Errorf("label = %q, editable = %v", f.ButtonLabel(), f.PromptEditable())
	}

	if _, err := f.Submit(context.Background(), ""); !errors.Is(err, workflow.ErrResetRequired) {
		t.Errorf("second Submit() error = %v", err)
	}
	if len(uploaded) != 1 {
		t.Errorf("OnUploaded called %d times, want 1", len(uploaded))
	}
}

func TestSubmitFailureMessage(t *testing.T) {
	called := false
	f := New(workflow.New(stubTranscoder{err: errors.New("no audio stream")}, &stubAPI{id: "v"}, workflow.Options{}), func(model.VideoID) {
		called = true
	})
	if err := f.SelectFile(writeVideo(t, "silent.mp4")); err != nil {
		t.Fatal(err)
	}

	if _, err := f.Submit(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("OnUploaded must not be called on failure")
	}
	if f.ButtonLabel() != "Failed" {
		t.Errorf("label = %q, want Failed", f.ButtonLabel())
	}
	if got := f.Message(); got != "Could not extract audio: no audio stream" {
		t.Errorf("Message() = %q", got)
	}
	if !f.FileInputEnabled() {
		t.Error("file input should be enabled after a failed run")
	}

	if err := f.Reset(); err != nil {
		t.Fatal(err)
	}
	if f.Status() != model.StatusWaiting || f.Message() != "" {
		t.Errorf("after Reset status = %s, message = %q", f.Status(), f.Message())
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		status model.Status
		want   string
	}{
		{model.StatusWaiting, "Upload video"},
		{model.StatusConverting, "Converting..."},
		{model.StatusUploading, "Uploading..."},
		{model.StatusGenerating, "Transcribing..."},
		{model.StatusSuccess, "Done!"},
		{model.StatusError, "Failed"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := Label(tt.status); got != tt.want {
				t.Errorf("Label(%s) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}
