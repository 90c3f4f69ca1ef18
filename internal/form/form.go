package form

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"uploadai/internal/app/model"
	"uploadai/internal/workflow"
)

// AcceptedExtensions lists the only container the file input accepts.
var AcceptedExtensions = []string{".mp4"}

var ErrUnsupportedFile = errors.New("only .mp4 videos are accepted")

// Form binds file selection and submission to a workflow controller and
// exposes what the view needs to render.
type Form struct {
	controller *workflow.Controller
	onUploaded func(model.VideoID)
	readFile   func(string) ([]byte, error)

	mu         sync.Mutex
	fileName   string
	previewURL string
}

func New(controller *workflow.Controller, onUploaded func(model.VideoID)) *Form {
	return &Form{
		controller: controller,
		onUploaded: onUploaded,
		readFile:   os.ReadFile,
	}
}

// SelectFile loads a video from disk and hands it to the controller.
func (f *Form) SelectFile(path string) error {
	if !f.FileInputEnabled() {
		return workflow.ErrBusy
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp4" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(path))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	data, err := f.readFile(abs)
	if err != nil {
		return fmt.Errorf("read video: %w", err)
	}

	video := model.VideoFile{
		Name:      filepath.Base(abs),
		MediaType: model.MediaTypeMP4,
		Data:      data,
	}
	if err := f.controller.Select(video); err != nil {
		return err
	}

	f.mu.Lock()
	f.fileName = video.Name
	f.previewURL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	f.mu.Unlock()
	return nil
}

// Submit runs the workflow with the prompt exactly as typed at submission time and
// invokes the completion callback once on success.
func (f *Form) Submit(ctx context.Context, prompt string) (model.VideoID, error) {
	id, err := f.controller.Submit(ctx, prompt)
	if err != nil {
		return "", err
	}
	if f.onUploaded != nil {
		f.onUploaded(id)
	}
	return id, nil
}

func (f *Form) Reset() error {
	return f.controller.Reset()
}

func (f *Form) Status() model.Status {
	return f.controller.State().Status
}

func (f *Form) FileName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fileName
}

// PreviewURL is empty until a video is selected.
func (f *Form) PreviewURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.previewURL
}

func (f *Form) CanSubmit() bool {
	return f.Status() == model.StatusWaiting && f.controller.HasVideo()
}

func (f *Form) PromptEditable() bool {
	return f.Status() == model.StatusWaiting
}

func (f *Form) FileInputEnabled() bool {
	return !f.Status().Running()
}

func (f *Form) ButtonLabel() string {
	return Label(f.Status())
}

// Message describes the failure of the last run, if any.
func (f *Form) Message() string {
	state := f.controller.State()
	if state.Status != model.StatusError || state.Err == nil {
		return ""
	}
	return describeFailure(state)
}

func Label(status model.Status) string {
	switch status {
	case model.StatusWaiting:
		return "Upload video"
	case model.StatusConverting:
		return "Converting..."
	case model.StatusUploading:
		return "Uploading..."
	case model.StatusGenerating:
		return "Transcribing..."
	case model.StatusSuccess:
		return "Done!"
	case model.StatusError:
		return "Failed"
	default:
		return string(status)
	}
}

func describeFailure(state workflow.State) string {
	switch state.FailedStage {
	case model.StatusConverting:
		return fmt.Sprintf("Could not extract audio: %v", errors.Unwrap(state.Err))
	case model.StatusUploading:
		return fmt.Sprintf("Could not upload audio: %v", errors.Unwrap(state.Err))
	case model.StatusGenerating:
		return fmt.Sprintf("Could not request transcription: %v", errors.Unwrap(state.Err))
	case model.StatusWaiting, model.StatusSuccess, model.StatusError:
		return state.Err.Error()
	default:
		return state.Err.Error()
	}
}
