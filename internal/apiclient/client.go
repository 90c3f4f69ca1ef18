package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"uploadai/internal/app/model"
	"uploadai/pkg/httputil"
)

const maxErrorBody = 4096

// UploadError reports a failed POST /videos.
type UploadError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload video: %v", e.Err)
	}
	return fmt.Sprintf("upload video: status %d: %s", e.StatusCode, e.Body)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TranscriptionRequestError reports a failed POST /videos/{id}/transcription.
type TranscriptionRequestError struct {
	VideoID    model.VideoID
	StatusCode int
	Body       string
	Err        error
}

func (e *TranscriptionRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request transcription for %s: %v", e.VideoID, e.Err)
	}
	return fmt.Sprintf("request transcription for %s: status %d: %s", e.VideoID, e.StatusCode, e.Body)
}

func (e *TranscriptionRequestError) Unwrap() error { return e.Err }

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      httputil.RetryConfig
}

// Client talks to the upload backend. Writes are single attempts; only the
// read-only prompt listing goes through the retrying client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	reads      *httputil.RetryClient
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		reads:      httputil.NewRetryClient(httpClient, cfg.Retry),
	}
}

type createVideoResponse struct {
	Video struct {
		ID string `json:"id"`
	} `json:"video"`
}

func (c *Client) CreateVideo(ctx context.Context, audio model.AudioArtifact) (model.VideoID, error) {
	body, contentType, err := multipartAudio(audio)
	if err != nil {
		return "", &UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", body)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UploadError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	var parsed createVideoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return model.VideoID(parsed.Video.ID), nil
}

func (c *Client) CreateTranscription(ctx context.Context, id model.VideoID, prompt string) error {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return &TranscriptionRequestError{VideoID: id, Err: err}
	}

	endpoint := fmt.Sprintf("%s/videos/%s/transcription", c.baseURL, url.PathEscape(string(id)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &TranscriptionRequestError{VideoID: id, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TranscriptionRequestError{VideoID: id, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TranscriptionRequestError{VideoID: id, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/prompts", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.reads.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list prompts: status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var prompts []model.Prompt
	if err := json.NewDecoder(resp.Body).Decode(&prompts); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	return prompts, nil
}

type CompletionRequest struct {
	VideoID     model.VideoID `json:"videoId"`
	Template    string        `json:"template"`
	Temperature float64       `json:"temperature"`
}

func (c *Client) Complete(ctx context.Context, request CompletionRequest) (string, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/complete", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("complete: status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	var parsed struct {
		Completion string `json:"completion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	return parsed.Completion, nil
}

func multipartAudio(audio model.AudioArtifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := audio.Name
	if name == "" {
		name = "audio.mp3"
	}
	mediaType := audio.MediaType
	if mediaType == "" {
		mediaType = model.MediaTypeMPEG
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
