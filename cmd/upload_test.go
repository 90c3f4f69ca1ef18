package cmd

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"uploadai/internal/app/model"
	"uploadai/internal/workflow"
)

func TestFollowStatusKeepsErrorAfterInterrupt(t *testing.T) {
	states := make(chan workflow.State, 8)
	states <- workflow.State{Status: model.StatusConverting}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	// The workflow reports its failure only after the run is cancelled.
	go func() {
		<-runCtx.Done()
		states <- workflow.State{Status: model.StatusError, FailedStage: model.StatusConverting, Err: runCtx.Err()}
		close(states)
	}()

	interrupted := func(ctx context.Context, title string, action func(context.Context) error) error {
		return errors.New("user aborted")
	}

	final := followStatus(context.Background(), cancelRun, states, interrupted)

	if final.Status != model.StatusError {
		t.Fatalf("final status = %q, want %q", final.Status, model.StatusError)
	}
	if final.FailedStage != model.StatusConverting {
		t.Errorf("failed stage = %q, want %q", final.FailedStage, model.StatusConverting)
	}
	if runCtx.Err() == nil {
		t.Error("run was not cancelled")
	}
}

func TestFollowStatusShowsEachStage(t *testing.T) {
	states := make(chan workflow.State, 8)
	states <- workflow.State{Status: model.StatusConverting}

	script := []model.Status{model.StatusUploading, model.StatusGenerating, model.StatusSuccess}
	var titles []string

	spin := func(ctx context.Context, title string, action func(context.Context) error) error {
		titles = append(titles, title)
		next := script[0]
		script = script[1:]
		states <- workflow.State{Status: next, VideoID: "v1"}
		if next == model.StatusSuccess {
			close(states)
		}
		return action(ctx)
	}

	final := followStatus(context.Background(), func() {}, states, spin)

	if final.Status != model.StatusSuccess || final.VideoID != "v1" {
		t.Fatalf("final = %+v, want success for v1", final)
	}
	want := []string{"Converting...", "Uploading...", "Transcribing..."}
	if !slices.Equal(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestFollowStatusWithoutStates(t *testing.T) {
	states := make(chan workflow.State)
	close(states)

	spin := func(ctx context.Context, title string, action func(context.Context) error) error {
		t.Errorf("spinner shown with %q", title)
		return nil
	}

	final := followStatus(context.Background(), func() {}, states, spin)
	if final.Status != "" {
		t.Errorf("final status = %q, want empty", final.Status)
	}
}

func TestFollowStatusStopsOnSignal(t *testing.T) {
	states := make(chan workflow.State, 8)
	states <- workflow.State{Status: model.StatusUploading}

	ctx, cancel := context.WithCancel(context.Background())
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go func() {
		<-runCtx.Done()
		states <- workflow.State{Status: model.StatusError, FailedStage: model.StatusUploading}
		close(states)
	}()

	spin := func(ctx context.Context, title string, action func(context.Context) error) error {
		cancel()
		return action(ctx)
	}

	done := make(chan workflow.State, 1)
	go func() { done <- followStatus(ctx, cancelRun, states, spin) }()

	select {
	case final := <-done:
		if final.Status != model.StatusError || final.FailedStage != model.StatusUploading {
			t.Fatalf("final = %+v, want error at uploading", final)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("followStatus did not return after cancellation")
	}
}
