package prompts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(originalWd) }()

	promptsContent := `
system:
  completion: "You write YouTube metadata."
transcription: "Keep technical terms as spoken."
templates:
  - title: "YouTube title"
    template: "Suggest three titles for: {transcription}"
  - title: "YouTube description"
    template: "Summarize: {transcription}"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "prompts.yaml"), []byte(promptsContent), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}

	p, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if p.System.Completion != "You write YouTube metadata." {
		t.Errorf("System.Completion = %q", p.System.Completion)
	}
	if p.Transcription != "Keep technical terms as spoken." {
		t.Errorf("Transcription = %q", p.Transcription)
	}
	if len(p.Templates) != 2 {
		t.Fatalf("len(Templates) = %d, want 2", len(p.Templates))
	}
	if p.Templates[1].Title != "YouTube description" {
		t.Errorf("Templates[1].Title = %q, want %q", p.Templates[1].Title, "YouTube description")
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFrom() should fail for a missing file")
	}
}

func TestLoadFromRejectsIncompleteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
templates:
  - title: ""
    template: "{transcription}"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should reject a template without a title")
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name          string
		template      string
		transcription string
		want          string
		wantErr       bool
	}{
		{"single", "Title for: {transcription}", "hello", "Title for: hello", false},
		{"repeated", "{transcription} / {transcription}", "a", "a / a", false},
		{"empty transcription", "T: {transcription}", "", "T: ", false},
		{"missing placeholder", "no placeholder", "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.transcription)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Render() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}
