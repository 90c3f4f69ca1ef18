package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"uploadai/internal/app/model"
)

const (
	inputSlot      = "input.mp4"
	outputSlot     = "output.mp3"
	defaultBitrate = "20k"
	defaultCodec   = "libmp3lame"
	audioName      = "audio.mp3"
)

var (
	// ErrNoAudioStream is returned when the input container has no audio track.
	ErrNoAudioStream = errors.New("input has no audio stream")
	// ErrNotVideo is returned when the input media type is not a video container.
	ErrNotVideo = errors.New("input is not a video")
)

// TranscodeError is an operation-aware error with optional command context.
type TranscodeError struct {
	Op         string     `json:"op"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats transcode failures for logs and UI.
func (e *TranscodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("transcode %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf(
		"transcode %s: %s (cmd=%s exit=%d)",
		e.Op,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *TranscodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Options tunes the audio extraction command.
type Options struct {
	Bitrate    string
	Codec      string
	OnProgress func(percent int)
}

// Transcoder extracts the audio track of a video into a compressed MP3.
type Transcoder struct {
	engine     *Engine
	bitrate    string
	codec      string
	onProgress func(percent int)
}

// NewTranscoder builds a transcoder on top of engine. A nil engine uses the
// process-wide shared engine.
func NewTranscoder(engine *Engine, opts Options) *Transcoder {
	if engine == nil {
		engine = SharedEngine()
	}
	if opts.Bitrate == "" {
		opts.Bitrate = defaultBitrate
	}
	if opts.Codec == "" {
		opts.Codec = defaultCodec
	}
	return &Transcoder{
		engine:     engine,
		bitrate:    opts.Bitrate,
		codec:      opts.Codec,
		onProgress: opts.OnProgress,
	}
}

// Transcode writes the video to the engine's input slot, extracts input 0's
// audio as MP3 and returns the output slot's bytes.
func (t *Transcoder) Transcode(ctx context.Context, video model.VideoFile) (model.AudioArtifact, error) {
	if len(video.Data) == 0 {
		return model.AudioArtifact{}, &TranscodeError{Op: "input", Message: "video payload is empty", Err: ErrNotVideo}
	}
	if !strings.HasPrefix(video.MediaType, "video/") {
		return model.AudioArtifact{}, &TranscodeError{
			Op:      "input",
			Message: fmt.Sprintf("unsupported media type %q", video.MediaType),
			Err:     ErrNotVideo,
		}
	}

	slog.Debug("Convert starting", "file", video.Name, "bytes", len(video.Data))

	var audio []byte
	err := t.engine.Exec(ctx, func(s *Sandbox) error {
		if err := s.WriteFile(inputSlot, video.Data); err != nil {
			return &TranscodeError{Op: "write", Message: "failed to write input slot", Err: err}
		}

		duration, err := t.probe(ctx, s)
		if err != nil {
			return err
		}

		progress := newProgressWriter(duration, t.reportProgress)
		args := buildFFmpegArgs(inputSlot, outputSlot, t.bitrate, t.codec)
		log, err := s.FFmpeg(ctx, args, progress)
		if err != nil {
			return &TranscodeError{
				Op:         "convert",
				Message:    "ffmpeg audio extraction failed",
				CommandLog: log,
				Err:        err,
			}
		}

		audio, err = s.ReadFile(outputSlot)
		if err != nil {
			return &TranscodeError{
				Op:         "read",
				Message:    "ffmpeg completed but output slot is missing",
				CommandLog: log,
				Err:        err,
			}
		}
		return nil
	})
	if err != nil {
		return model.AudioArtifact{}, err
	}

	slog.Debug("Convert finished", "file", video.Name, "bytes", len(audio))

	return model.AudioArtifact{
		Name:      audioName,
		MediaType: model.MediaTypeMPEG,
		Data:      audio,
	}, nil
}

func (t *Transcoder) reportProgress(percent int) {
	slog.Debug("Convert progress", "percent", percent)
	if t.onProgress != nil {
		t.onProgress(percent)
	}
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probe checks the input slot for an audio stream and returns its duration in seconds.
func (t *Transcoder) probe(ctx context.Context, s *Sandbox) (float64, error) {
	out, log, err := s.FFprobe(ctx, buildProbeArgs(inputSlot))
	if err != nil {
		return 0, &TranscodeError{
			Op:         "probe",
			Message:    "input is not a decodable media container",
			CommandLog: log,
			Err:        errors.Join(ErrNotVideo, err),
		}
	}

	var parsed probeOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return 0, &TranscodeError{Op: "probe", Message: "unreadable ffprobe output", CommandLog: log, Err: err}
	}

	hasAudio := false
	for _, stream := range parsed.Streams {
		if stream.CodecType == "audio" {
			hasAudio = true
			break
		}
	}
	if !hasAudio {
		return 0, &TranscodeError{Op: "probe", Message: "input has no audio stream", CommandLog: log, Err: ErrNoAudioStream}
	}

	duration, _ := strconv.ParseFloat(parsed.Format.Duration, 64)
	return duration, nil
}

// buildFFmpegArgs extracts input 0's audio and encodes it as MP3.
func buildFFmpegArgs(inputPath, outPath, bitrate, codec string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-progress", "pipe:1",
		"-nostats",
		"-i", inputPath,
		"-map", "0:a",
		"-b:a", bitrate,
		"-acodec", codec,
		outPath,
	}
}

func buildProbeArgs(inputPath string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "stream=codec_type:format=duration",
		"-of", "json",
		inputPath,
	}
}
