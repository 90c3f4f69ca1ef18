package prompts

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPromptsPath = "prompts.yaml"

	// Placeholder is substituted with the stored transcription.
	Placeholder = "{transcription}"
)

// ErrNoPlaceholder is returned by Render for templates without {transcription}.
var ErrNoPlaceholder = errors.New("template has no " + Placeholder + " placeholder")

type Prompts struct {
	System        SystemPrompts `yaml:"system"`
	Transcription string        `yaml:"transcription"`
	Templates     []Template    `yaml:"templates"`
}

type SystemPrompts struct {
	Completion string `yaml:"completion"`
}

// Template is a reusable prompt offered to clients through GET /prompts.
type Template struct {
	Title    string `yaml:"title"`
	Template string `yaml:"template"`
}

func Load() (*Prompts, error) {
	return LoadFrom(defaultPromptsPath)
}

func LoadFrom(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	for i, t := range p.Templates {
		if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Template) == "" {
			return nil, fmt.Errorf("prompt template %d: title and template are required", i)
		}
	}

	return &p, nil
}

// Render fills every {transcription} placeholder in template.
func Render(template, transcription string) (string, error) {
	if !strings.Contains(template, Placeholder) {
		return "", ErrNoPlaceholder
	}
	return strings.ReplaceAll(template, Placeholder, transcription), nil
}
