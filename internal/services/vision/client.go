// Package vision wraps the visual detection model service. The model is a
// black box: it receives an image URL and a category and returns scored
// labels for that category.
package vision

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

// Client calls the visual detection service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the vision client.
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

// NewClient constructs a vision service client.
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

// Detection is one scored label from the model.
type Detection struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type detectRequest struct {
	ImageURL ImageRef `json:"image"`
	Category string   `json:"category"`
}

// ImageRef points the model at an image by URL.
type ImageRef struct {
	URL string `json:"url"`
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
	Error      string      `json:"error"`
}

// Detect scores one image against one category.
func (c *Client) Detect(ctx context.Context, imageURL, category string) ([]Detection, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, errors.New("vision detect: image url required")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.New("vision detect: category required")
	}
	if c.baseURL == "" {
		return nil, errors.New("vision detect: base url not configured")
	}

	endpoint, err := url.JoinPath(c.baseURL, "/v1/detect")
	if err != nil {
		return nil, fmt.Errorf("vision detect: build url: %w", err)
	}
	encoded, err := json.Marshal(detectRequest{
		ImageURL: ImageRef{URL: imageURL},
		Category: category,
	})
	if err != nil {
		return nil, fmt.Errorf("vision detect: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("vision detect: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision detect: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision detect: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("vision detect: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded detectResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("vision detect: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("vision detect: service error: %s", decoded.Error)
	}
	return decoded.Detections, nil
}
