// Package lookup talks to the external URL classification service. Batches
// of freshly collected URLs are submitted per source; URLs the service has
// seen before come back classified immediately, the rest are classified by
// an async job the caller polls for.
package lookup

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

// Classification statuses the service reports per URL and per job.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ClassifiedURL is one URL with its classification outcome.
type ClassifiedURL struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// SubmitResponse is the service's answer to a batch submission. Previously
// seen URLs are returned inline; AsyncJobUUID is set when the remainder
// needs an async classification job, nil when nothing was deferred.
type SubmitResponse struct {
	ExistingSources []ClassifiedURL `json:"existingSources"`
	AsyncJobUUID    *string         `json:"asyncJobUuid"`
}

// PollResponse is the state of one async classification job.
type PollResponse struct {
	Status  string          `json:"status"`
	Sources []ClassifiedURL `json:"sources"`
}

// Client is the classification service API. Implementations must be safe
// for concurrent use.
type Client interface {
	// Submit sends a batch of URLs for classification on behalf of a
	// source.
	Submit(ctx context.Context, sourceKey string, urls []string) (*SubmitResponse, error)

	// Poll reports the current state of an async classification job.
	Poll(ctx context.Context, jobUUID string) (*PollResponse, error)
}

const defaultRequestTimeout = 30 * time.Second

// HTTPClient is the production Client over the service's JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type submitRequest struct {
	SourceKey string   `json:"source_key"`
	URLs      []string `json:"urls"`
}

// Submit implements Client.
func (c *HTTPClient) Submit(ctx context.Context, sourceKey string, urls []string) (*SubmitResponse, error) {
	payload, err := json.Marshal(submitRequest{SourceKey: sourceKey, URLs: urls})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp SubmitResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Poll implements Client.
func (c *HTTPClient) Poll(ctx context.Context, jobUUID string) (*PollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobUUID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}

	var resp PollResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	httpResp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("lookup request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("lookup service returned status %d", httpResp.StatusCode)
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read lookup response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse lookup response: %w", err)
	}
	return nil
}
