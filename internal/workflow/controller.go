package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"uploadai/internal/app/model"
)

var (
	// ErrNoVideo is returned when submitting before a video is selected.
	ErrNoVideo = errors.New("no video selected")
	// ErrBusy is returned when the form is changed while a run is in flight.
	ErrBusy = errors.New("workflow already running")
	// ErrResetRequired is returned when resubmitting a finished run without Reset.
	ErrResetRequired = errors.New("workflow finished, reset before submitting again")
	// ErrEmptyVideoID is returned when the upload succeeds without an id.
	ErrEmptyVideoID = errors.New("server returned an empty video id")
)

type Transcoder interface {
	Transcode(ctx context.Context, video model.VideoFile) (model.AudioArtifact, error)
}

type API interface {
	CreateVideo(ctx context.Context, audio model.AudioArtifact) (model.VideoID, error)
	CreateTranscription(ctx context.Context, id model.VideoID, prompt string) error
}

// StageError ties a failure to the status that was active when it happened.
type StageError struct {
	Stage model.Status
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// State is a snapshot of the controller.
type State struct {
	Status      model.Status
	FailedStage model.Status
	VideoID     model.VideoID
	Err         error
}

type Options struct {
	OnStatus func(State)
}

// Controller drives one form's upload workflow: convert, upload, request the
// transcription. It holds at most one video and one run at a time.
type Controller struct {
	transcoder Transcoder
	api        API
	onStatus   func(State)

	mu    sync.Mutex
	video *model.VideoFile
	state State
}

func New(transcoder Transcoder, api API, opts Options) *Controller {
	return &Controller{
		transcoder: transcoder,
		api:        api,
		onStatus:   opts.OnStatus,
		state:      State{Status: model.StatusWaiting},
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) HasVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video != nil
}

// Select stores the video for the next submission. Selecting does not reset
// the status of a finished run.
func (c *Controller) Select(video model.VideoFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status.Running() {
		return ErrBusy
	}
	c.video = &video
	return nil
}

// Reset returns a finished run to waiting, keeping the selected video.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.state.Status.Running() {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = State{Status: model.StatusWaiting}
	state := c.state
	c.mu.Unlock()

	c.notify(state)
	return nil
}

// Submit runs every stage in order and returns the server-issued video id.
// The prompt is captured once and passed unchanged to the transcription request.
func (c *Controller) Submit(ctx context.Context, prompt string) (model.VideoID, error) {
	c.mu.Lock()
	if c.video == nil {
		c.mu.Unlock()
		return "", ErrNoVideo
	}
	switch c.state.Status {
	case model.StatusWaiting:
	case model.StatusConverting, model.StatusUploading, model.StatusGenerating:
		c.mu.Unlock()
		return "", ErrBusy
	case model.StatusSuccess, model.StatusError:
		c.mu.Unlock()
		return "", ErrResetRequired
	default:
		c.mu.Unlock()
		return "", fmt.Errorf("unknown status %q", c.state.Status)
	}
	video := *c.video
	// claim the run before releasing the lock so a concurrent Submit sees it
	c.state.Status = model.StatusConverting
	state := c.state
	c.mu.Unlock()

	slog.Debug("Workflow status", "from", model.StatusWaiting, "to", model.StatusConverting)
	c.notify(state)
	if err := ctx.Err(); err != nil {
		return "", c.fail(model.StatusConverting, err)
	}
	audio, err := c.transcoder.Transcode(ctx, video)
	if err != nil {
		return "", c.fail(model.StatusConverting, err)
	}

	c.advance(model.StatusUploading)
	if err := ctx.Err(); err != nil {
		return "", c.fail(model.StatusUploading, err)
	}
	id, err := c.api.CreateVideo(ctx, audio)
	if err != nil {
		return "", c.fail(model.StatusUploading, err)
	}
	if id == "" {
		return "", c.fail(model.StatusUploading, ErrEmptyVideoID)
	}

	c.advance(model.StatusGenerating)
	if err := ctx.Err(); err != nil {
		return "", c.fail(model.StatusGenerating, err)
	}
	if err := c.api.CreateTranscription(ctx, id, prompt); err != nil {
		return "", c.fail(model.StatusGenerating, err)
	}

	c.mu.Lock()
	c.state.VideoID = id
	c.mu.Unlock()
	c.advance(model.StatusSuccess)

	return id, nil
}

// advance moves one step forward along the happy path.
func (c *Controller) advance(to model.Status) {
	c.mu.Lock()
	from := c.state.Status
	if next, ok := from.Next(); !ok || next != to {
		c.mu.Unlock()
		panic(fmt.Sprintf("workflow: invalid transition %s -> %s", from, to))
	}
	c.state.Status = to
	state := c.state
	c.mu.Unlock()

	slog.Debug("Workflow status", "from", from, "to", to)
	c.notify(state)
}

func (c *Controller) fail(stage model.Status, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}

	c.mu.Lock()
	c.state.Status = model.StatusError
	c.state.FailedStage = stage
	c.state.Err = stageErr
	state := c.state
	c.mu.Unlock()

	slog.Error("Workflow failed", "stage", stage, "error", err)
	c.notify(state)
	return stageErr
}

func (c *Controller) notify(state State) {
	if c.onStatus != nil {
		c.onStatus(state)
	}
}
