package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kpid/internal/daemon"
)

type apiClient struct {
	baseURL string
	httpc   *http.Client
}

func newAPIClient(address string) *apiClient {
	base := strings.TrimSpace(address)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) Status(ctx context.Context) (*daemon.DaemonStatusResponse, error) {
	var status daemon.DaemonStatusResponse
	if err := c.get(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) QueueList(ctx context.Context, statuses []string) ([]daemon.QueueItemView, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		params := url.Values{}
		for _, status := range statuses {
			params.Add("status", status)
		}
		path += "?" + params.Encode()
	}
	var payload struct {
		Items []daemon.QueueItemView `json:"items"`
	}
	if err := c.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *apiClient) Submit(ctx context.Context, req daemon.SubmissionRequest) (*daemon.QueueItemView, error) {
	var created daemon.QueueItemView
	if err := c.post(ctx, "/api/moderations", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *apiClient) RetryRecord(ctx context.Context, id int64) error {
	return c.post(ctx, fmt.Sprintf("/api/queue/%d/retry", id), nil, nil)
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil && envelope.Error != "" {
			return fmt.Errorf("daemon api: %s", envelope.Error)
		}
		return fmt.Errorf("daemon api: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
