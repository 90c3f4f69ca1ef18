package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

const (
	defaultFFmpegPath  = "ffmpeg"
	defaultFFprobePath = "ffprobe"
)

// ErrEngineUnavailable is returned when ffmpeg cannot be located or started.
var ErrEngineUnavailable = errors.New("media engine unavailable")

// command describes one external process invocation inside a sandbox.
type command struct {
	Dir    string
	Name   string
	Args   []string
	Stdout io.Writer
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandLog captures one engine invocation for error reporting.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stderr   string   `json:"stderr"`
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, cmd command) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, c command) (commandResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, c.Stdout)
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Engine is the process-wide ffmpeg runtime. It is loaded on first use and
// runs at most one invocation at a time.
type Engine struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
	lookPath    func(string) (string, error)
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error

	mu      sync.Mutex
	loaded  bool
	version string
}

var (
	sharedMu     sync.Mutex
	sharedEngine *Engine
)

// SharedEngine returns the process-wide engine, creating it on first call.
func SharedEngine() *Engine {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedEngine == nil {
		sharedEngine = NewEngine(defaultFFmpegPath, defaultFFprobePath)
	}
	return sharedEngine
}

// ResetEngine drops the process-wide engine so the next SharedEngine call
// starts from an unloaded state.
func ResetEngine() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedEngine = nil
}

// ConfigureEngine replaces the process-wide engine with one using the given
// binaries. Call it before the first transcode.
func ConfigureEngine(ffmpegPath, ffprobePath string) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedEngine = NewEngine(ffmpegPath, ffprobePath)
}

// NewEngine constructs an unloaded engine backed by real processes.
func NewEngine(ffmpegPath, ffprobePath string) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = defaultFFmpegPath
	}
	if ffprobePath == "" {
		ffprobePath = defaultFFprobePath
	}
	return &Engine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      &execRunner{},
		lookPath:    exec.LookPath,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
	}
}

// Loaded reports whether the engine finished its first-use initialization.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Version returns the ffmpeg banner line captured during load.
func (e *Engine) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Exec loads the engine if needed, then runs fn inside a fresh sandbox while
// holding the engine lock. The sandbox directory is removed afterwards.
func (e *Engine) Exec(ctx context.Context, fn func(s *Sandbox) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.load(ctx); err != nil {
		return err
	}

	dir, err := e.mkdirTemp("", "uploadai-media-*")
	if err != nil {
		return &TranscodeError{Op: "sandbox", Message: "failed to create sandbox", Err: err}
	}
	defer func() {
		if err := e.removeAll(dir); err != nil {
			slog.Warn("Failed to remove media sandbox", "dir", dir, "error", err)
		}
	}()

	return fn(&Sandbox{engine: e, dir: dir})
}

// load resolves both binaries and probes ffmpeg once. Failures are not cached
// so a later call can succeed after the tool is installed.
func (e *Engine) load(ctx context.Context) error {
	if e.loaded {
		return nil
	}

	for _, name := range []string{e.ffmpegPath, e.ffprobePath} {
		if _, err := e.lookPath(name); err != nil {
			return &TranscodeError{
				Op:      "load",
				Message: fmt.Sprintf("%s not found in PATH", name),
				Err:     errors.Join(ErrEngineUnavailable, err),
			}
		}
	}

	result, err := e.runner.Run(ctx, command{Name: e.ffmpegPath, Args: []string{"-hide_banner", "-version"}})
	if err != nil {
		return &TranscodeError{
			Op:         "load",
			Message:    "ffmpeg failed to start",
			CommandLog: CommandLog{Command: e.ffmpegPath, Args: []string{"-version"}, ExitCode: result.ExitCode, Stderr: result.Stderr},
			Err:        errors.Join(ErrEngineUnavailable, err),
		}
	}

	e.version = firstLine(result.Stdout)
	e.loaded = true
	slog.Debug("Media engine loaded", "version", e.version)
	return nil
}

// Sandbox is a private working directory acting as the engine's virtual
// filesystem for one Exec call.
type Sandbox struct {
	engine *Engine
	dir    string
}

// WriteFile places data into the named input slot.
func (s *Sandbox) WriteFile(name string, data []byte) error {
	path, err := s.slot(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile returns the bytes of the named output slot.
func (s *Sandbox) ReadFile(name string) ([]byte, error) {
	path, err := s.slot(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// FFmpeg runs ffmpeg in the sandbox directory, mirroring stdout to progress.
func (s *Sandbox) FFmpeg(ctx context.Context, args []string, progress io.Writer) (CommandLog, error) {
	return s.run(ctx, s.engine.ffmpegPath, args, progress)
}

// FFprobe runs ffprobe in the sandbox directory and returns its stdout.
func (s *Sandbox) FFprobe(ctx context.Context, args []string) (string, CommandLog, error) {
	var out bytes.Buffer
	log, err := s.run(ctx, s.engine.ffprobePath, args, &out)
	return out.String(), log, err
}

func (s *Sandbox) run(ctx context.Context, name string, args []string, stdout io.Writer) (CommandLog, error) {
	result, err := s.engine.runner.Run(ctx, command{
		Dir:    s.dir,
		Name:   name,
		Args:   args,
		Stdout: stdout,
	})
	return CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
	}, err
}

func (s *Sandbox) slot(name string) (string, error) {
	clean := filepath.Base(name)
	if clean != name || clean == "." || clean == ".." {
		return "", fmt.Errorf("invalid sandbox slot %q", name)
	}
	return filepath.Join(s.dir, clean), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
