package groq

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/groq-go"
)

type Config struct {
	APIKey          string
	TranscribeModel string
	CompletionModel string
	Language        string
	// SystemPrompt prefixes every completion.
	SystemPrompt string
}

// Client wraps the Groq API for speech-to-text and chat completion.
type Client struct {
	client          *groq.Client
	transcribeModel groq.AudioModel
	completionModel groq.ChatModel
	language        string
	systemPrompt    string
}

func NewClient(cfg Config) (*Client, error) {
	client, err := groq.NewClient(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Client{
		client:          client,
		transcribeModel: groq.AudioModel(cfg.TranscribeModel),
		completionModel: groq.ChatModel(cfg.CompletionModel),
		language:        cfg.Language,
		systemPrompt:    cfg.SystemPrompt,
	}, nil
}

// Transcribe sends audio to the speech-to-text model. prompt biases the
// vocabulary, e.g. comma separated keywords.
func (c *Client) Transcribe(ctx context.Context, name string, audio io.Reader, prompt string) (string, error) {
	resp, err := c.client.Transcribe(ctx, groq.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: name,
		Reader:   audio,
		Prompt:   prompt,
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcription")
	}
	return text, nil
}

func (c *Client) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	messages := make([]groq.ChatCompletionMessage, 0, 2)
	if c.systemPrompt != "" {
		messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleSystem, Content: c.systemPrompt})
	}
	messages = append(messages, groq.ChatCompletionMessage{Role: groq.RoleUser, Content: prompt})

	resp, err := c.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: float32(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response")
	}

	return content, nil
}
