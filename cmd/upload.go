package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"

	"uploadai/internal/apiclient"
	"uploadai/internal/app/model"
	"uploadai/internal/form"
	"uploadai/internal/media"
	"uploadai/internal/workflow"
	"uploadai/pkg/config"
	"uploadai/pkg/httputil"
)

var (
	uploadFile        string
	uploadPrompt      string
	uploadGenerate    bool
	uploadTemperature float64
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Convert a video to MP3, upload it and request a transcription",
	Long: `Pick an .mp4 file, type the transcription prompt (comma separated keywords
mentioned in the video) and upload. The audio track is extracted locally with ffmpeg.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadFile, "file", "f", "", "Video to upload (.mp4)")
	uploadCmd.Flags().StringVarP(&uploadPrompt, "prompt", "p", "", "Transcription prompt")
	uploadCmd.Flags().BoolVarP(&uploadGenerate, "generate", "g", false, "Run a stored prompt template on the transcription")
	uploadCmd.Flags().Float64Var(&uploadTemperature, "temperature", 0.5, "Completion temperature (0-2)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	media.ConfigureEngine(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	transcoder := media.NewTranscoder(nil, media.Options{
		Bitrate: cfg.Media.Bitrate,
		Codec:   cfg.Media.Codec,
		OnProgress: func(percent int) {
			slog.Debug("Converting", "percent", percent)
		},
	})

	client := newAPIClient(cfg)

	states := make(chan workflow.State, 8)
	controller := workflow.New(transcoder, client, workflow.Options{
		OnStatus: func(s workflow.State) { states <- s },
	})

	var videoID model.VideoID
	f := form.New(controller, func(id model.VideoID) { videoID = id })

	path, prompt := uploadFile, uploadPrompt
	if path == "" {
		if path, prompt, err = askUpload(prompt); err != nil {
			return err
		}
	}

	if err := f.SelectFile(path); err != nil {
		return err
	}
	slog.Debug("Selected video", "preview", f.PreviewURL())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(runCtx, prompt)
		close(states)
		done <- err
	}()

	final := followStatus(ctx, cancelRun, states, runSpinner)
	submitErr := <-done

	if final.Status != model.StatusSuccess || submitErr != nil {
		fmt.Println(warnStyle.Render("✗ " + f.ButtonLabel() + ": " + f.Message()))
		return submitErr
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s Video %s uploaded and transcribed", f.ButtonLabel(), videoID)))

	if uploadGenerate {
		return generateFromTemplate(ctx, client, videoID, runSpinner)
	}
	return nil
}

func newAPIClient(cfg *config.Config) *apiclient.Client {
	return apiclient.NewClient(apiclient.Config{
		BaseURL: cfg.APIBaseURL,
		Retry: httputil.RetryConfig{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   2,
		},
	})
}

func askUpload(prompt string) (string, string, error) {
	var path string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewFilePicker().
				Title("Video").
				Description("Only .mp4 files are accepted").
				CurrentDirectory(".").
				AllowedTypes(form.AcceptedExtensions).
				Picking(true).
				Value(&path),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Transcription prompt").
				Description("Add keywords mentioned in the video separated by commas (,)").
				Placeholder("keyword1, keyword2").
				Value(&prompt),
		),
	).Run()
	if err != nil {
		return "", "", err
	}
	if path == "" {
		return "", "", errors.New("no video selected")
	}
	return path, prompt, nil
}

// spinFunc shows title while action runs. It returns early with an error
// when the user interrupts or ctx ends.
type spinFunc func(ctx context.Context, title string, action func(context.Context) error) error

func runSpinner(ctx context.Context, title string, action func(context.Context) error) error {
	return spinner.New().
		Context(ctx).
		Title(title).
		ActionWithErr(action).
		Run()
}

// statusFeed is the only reader of a workflow status channel. It keeps the
// latest state and signals every change.
type statusFeed struct {
	mu      sync.Mutex
	last    workflow.State
	changed chan struct{}
	done    chan struct{}
}

func newStatusFeed(states <-chan workflow.State) *statusFeed {
	feed := &statusFeed{
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(feed.done)
		for s := range states {
			feed.mu.Lock()
			feed.last = s
			feed.mu.Unlock()

			select {
			case feed.changed <- struct{}{}:
			default:
			}
		}
	}()
	return feed
}

// current returns the latest state and whether the channel is closed.
func (f *statusFeed) current() (workflow.State, bool) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.last, true
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, false
}

// wait blocks until the state changes, the channel closes or ctx ends.
func (f *statusFeed) wait(ctx context.Context) error {
	select {
	case <-f.changed:
		return nil
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// followStatus shows a spinner titled after the running stage and returns the
// last state once states is closed. An interrupted spinner cancels the run
// through cancelRun, so the workflow still reports its error state.
func followStatus(ctx context.Context, cancelRun context.CancelFunc, states <-chan workflow.State, spin spinFunc) workflow.State {
	feed := newStatusFeed(states)

	settle := func() workflow.State {
		cancelRun()
		<-feed.done
		state, _ := feed.current()
		return state
	}

	if err := feed.wait(ctx); err != nil {
		return settle()
	}

	for {
		state, closed := feed.current()
		if closed {
			return state
		}
		if !state.Status.Running() {
			<-feed.done
			continue
		}

		if err := spin(ctx, form.Label(state.Status), feed.wait); err != nil {
			slog.Debug("Status spinner stopped", "error", err)
			return settle()
		}
	}
}

func generateFromTemplate(ctx context.Context, client *apiclient.Client, id model.VideoID, spin spinFunc) error {
	list, err := client.ListPrompts(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println(infoStyle.Render("No prompt templates stored on the backend"))
		return nil
	}

	options := make([]huh.Option[int], len(list))
	for i, p := range list {
		options[i] = huh.NewOption(p.Title, i)
	}

	var choice int
	if err := huh.NewSelect[int]().
		Title("Prompt").
		Options(options...).
		Value(&choice).
		Run(); err != nil {
		return err
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var completion string
	err = spin(genCtx, "Generating...", func(ctx context.Context) error {
		var err error
		completion, err = client.Complete(ctx, apiclient.CompletionRequest{
			VideoID:     id,
			Template:    list[choice].Template,
			Temperature: uploadTemperature,
		})
		return err
	})
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render(list[choice].Title))
	fmt.Println(completion)
	return nil
}
