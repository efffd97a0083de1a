// Package n8n is a thin client for the n8n workflow automation REST API.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Workflow is the subset of n8n's workflow object the stack tooling cares about.
type Workflow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updatedAt"`
}

// workflowsResponse is the paginated list envelope from /api/v1/workflows.
type workflowsResponse struct {
	Data       []Workflow `json:"data"`
	NextCursor string     `json:"nextCursor"`
}

// Client talks to one n8n instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given n8n base URL.
// A nil httpClient gets a default with a 15s timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("n8n base URL cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}, nil
}

// ListWorkflows returns every workflow registered on the instance.
// Requires an API key.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/workflows", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflows request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-N8N-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("n8n returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload workflowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode workflows response: %w", err)
	}

	return payload.Data, nil
}

// TriggerWebhook fires a workflow through its production webhook path and
// returns the raw response body. The payload is JSON-encoded; a nil payload
// sends an empty object.
func (c *Client) TriggerWebhook(ctx context.Context, path string, payload any) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("webhook path cannot be empty")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	url := fmt.Sprintf("%s/webhook/%s", c.baseURL, strings.TrimPrefix(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger webhook: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("n8n webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
