// Package speech wraps the transcription service that turns a recording's
// audio track into word-level timestamps.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 120 * time.Second

// Client calls the transcription service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the speech client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs a speech service client.
func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Word is a transcribed word with its start offset in seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language"`
}

type transcribeResponse struct {
	Words []Word `json:"words"`
	Error string `json:"error"`
}

// Transcribe returns the word-level transcript of the audio at the given URL.
func (c *Client) Transcribe(ctx context.Context, audioURL string) ([]Word, error) {
	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return nil, errors.New("speech transcribe: audio url required")
	}
	if c.baseURL == "" {
		return nil, errors.New("speech transcribe: base url not configured")
	}

	endpoint, err := url.JoinPath(c.baseURL, "/v1/transcribe")
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: build url: %w", err)
	}
	encoded, err := json.Marshal(transcribeRequest{AudioURL: audioURL, Language: "id"})
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("speech transcribe: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded transcribeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("speech transcribe: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("speech transcribe: service error: %s", decoded.Error)
	}
	return decoded.Words, nil
}
