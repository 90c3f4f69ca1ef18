package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"uploadai/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for upload.ai",
	Long:  `Install ffmpeg, create the local audio directory and write the .env file.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("🎬 upload.ai Setup"))

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Installing tools", installTools},
		{"Creating directories", createDirectories},
		{"Configuring environment", configureEnv},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}

func installTools() error {
	if commandExists("ffmpeg") && commandExists("ffprobe") {
		fmt.Println(successStyle.Render("✓ ffmpeg found"))
		return nil
	}

	var install bool
	err := huh.NewConfirm().
		Title("ffmpeg not found").
		Description("ffmpeg and ffprobe extract the audio track before upload. Install them?").
		Affirmative("Yes").
		Negative("No").
		Value(&install).
		Run()
	if err != nil {
		return err
	}

	if !install {
		return fmt.Errorf("ffmpeg is required - install from https://ffmpeg.org/download.html")
	}

	return runWithSpinner("Installing ffmpeg", func() error {
		switch runtime.GOOS {
		case "darwin":
			return runSetupCmd("brew", "install", "ffmpeg")
		case "linux":
			if commandExists("apt-get") {
				return runSetupCmd("sudo", "apt-get", "install", "-y", "ffmpeg")
			}
			if commandExists("dnf") {
				return runSetupCmd("sudo", "dnf", "install", "-y", "ffmpeg")
			}
			return fmt.Errorf("no supported package manager found")
		default:
			return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
		}
	})
}

func createDirectories() error {
	dir := "./tmp"
	if cfg, err := config.Load(rootCmd.Context()); err == nil {
		dir = cfg.Storage.LocalDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	fmt.Println(successStyle.Render("✓ Created " + dir))
	return nil
}

func configureEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	env := make(map[string]string)

	if err := configureRequiredKeys(env); err != nil {
		return err
	}

	if err := configureGCP(env); err != nil {
		return err
	}

	if err := configureOptionalKeys(env); err != nil {
		return err
	}

	return writeEnvFile(env)
}

func configureRequiredKeys(env map[string]string) error {
	var groqKey string
	if err := huh.NewInput().
		Title("GROQ API Key").
		Description("https://console.groq.com/keys (leave empty to read it from Secret Manager)").
		EchoMode(huh.EchoModePassword).
		Value(&groqKey).
		Run(); err != nil {
		return err
	}

	env["GROQ_API_KEY"] = strings.TrimSpace(groqKey)
	return nil
}

func configureGCP(env map[string]string) error {
	var setupGCP bool
	if err := huh.NewConfirm().
		Title("Setup Google Cloud?").
		Description("Stores audio in Cloud Storage and the Groq key in Secret Manager").
		Value(&setupGCP).
		Run(); err != nil {
		return err
	}

	if !setupGCP {
		return nil
	}

	if !commandExists("gcloud") {
		fmt.Println(warnStyle.Render("gcloud CLI not found - install from https://cloud.google.com/sdk/docs/install"))
		return nil
	}

	project, err := getOrCreateGCPProject()
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("GCP setup skipped: %v", err)))
		return nil
	}

	env["GOOGLE_CLOUD_PROJECT"] = project

	if err := enableGCPAPIs(project); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
	}

	if err := setupBucket(env, project); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Bucket setup skipped: %v", err)))
	}

	return nil
}

func getOrCreateGCPProject() (string, error) {
	existing := getActiveProject()

	var choice string
	options := []huh.Option[string]{
		huh.NewOption("Create new project", "new"),
	}

	if existing != "" {
		options = append([]huh.Option[string]{
			huh.NewOption(fmt.Sprintf("Use current: %s", existing), existing),
		}, options...)
	}

	options = append(options, huh.NewOption("Enter project ID manually", "manual"))

	if err := huh.NewSelect[string]().
		Title("Google Cloud Project").
		Options(options...).
		Value(&choice).
		Run(); err != nil {
		return "", err
	}

	switch choice {
	case "new":
		return createGCPProject()
	case "manual":
		var projectID string
		if err := huh.NewInput().
			Title("Project ID").
			Value(&projectID).
			Run(); err != nil {
			return "", err
		}
		return strings.TrimSpace(projectID), nil
	default:
		return choice, nil
	}
}

func getActiveProject() string {
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func createGCPProject() (string, error) {
	var projectID string
	if err := huh.NewInput().
		Title("New Project ID").
		Description("Must be globally unique, 6-30 chars, lowercase letters, digits, hyphens").
		Placeholder("upload-ai-12345").
		Value(&projectID).
		Validate(func(s string) error {
			if len(s) < 6 || len(s) > 30 {
				return fmt.Errorf("must be 6-30 characters")
			}
			return nil
		}).
		Run(); err != nil {
		return "", err
	}

	err := runWithSpinner("Creating project", func() error {
		return runSetupCmd("gcloud", "projects", "create", projectID)
	})
	if err != nil {
		return "", err
	}

	_ = runSetupCmd("gcloud", "config", "set", "project", projectID)

	return projectID, nil
}

func enableGCPAPIs(project string) error {
	apis := []string{
		"storage.googleapis.com",
		"secretmanager.googleapis.com",
	}

	return runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, apis...)
		args = append(args, "--project", project)
		return runSetupCmd("gcloud", args...)
	})
}

func setupBucket(env map[string]string, project string) error {
	var bucket string
	if err := huh.NewInput().
		Title("Cloud Storage bucket").
		Description("Leave empty to keep audio on the local disk").
		Placeholder(project + "-audio").
		Value(&bucket).
		Run(); err != nil {
		return err
	}

	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil
	}

	err := runWithSpinner("Creating bucket "+bucket, func() error {
		return runSetupCmd("gcloud", "storage", "buckets", "create", "gs://"+bucket, "--project", project)
	})
	if err != nil {
		return err
	}

	env["GCS_BUCKET"] = bucket
	return nil
}

func configureOptionalKeys(env map[string]string) error {
	var mongoURI, apiURL string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("MongoDB URI").
				Description("Optional, records are kept in memory without it").
				Placeholder("mongodb://localhost:27017").
				Value(&mongoURI),
			huh.NewInput().
				Title("API base URL").
				Description("Where `uploadai upload` sends requests").
				Placeholder("http://localhost:3333").
				Value(&apiURL),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	if v := strings.TrimSpace(mongoURI); v != "" {
		env["MONGODB_URI"] = v
	}
	if v := strings.TrimSpace(apiURL); v != "" {
		env["API_BASE_URL"] = v
	}
	return nil
}

func writeEnvFile(env map[string]string) error {
	f, err := os.Create(".env")
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	order := []string{
		"GOOGLE_CLOUD_PROJECT",
		"GROQ_API_KEY",
		"GCS_BUCKET",
		"MONGODB_URI",
		"API_BASE_URL",
	}

	for _, key := range order {
		if val, ok := env[key]; ok && val != "" {
			_, _ = fmt.Fprintf(f, "%s=%s\n", key, val)
		}
	}

	fmt.Println(successStyle.Render("✓ Created .env file"))
	printNextSteps()
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Start the backend: uploadai serve")
	fmt.Println("  2. Upload a video:    uploadai upload -f video.mp4 -p \"keyword1, keyword2\"")
	fmt.Println("  3. List templates:    uploadai prompts")
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}

func runWithSpinner(title string, fn func() error) error {
	err := spinner.New().
		Title(title).
		ActionWithErr(func(context.Context) error { return fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
