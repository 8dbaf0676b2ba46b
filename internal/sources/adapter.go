package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadstream/leadstream/internal/models"
)

// Lead is one normalized item produced by an adapter. The shape is common
// across all feed formats; Raw carries the adapter-specific fields that do
// not fit the common record.
type Lead struct {
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	Source      string         `json:"source,omitempty"`
	Author      string         `json:"author,omitempty"`
	PublishedOn *time.Time     `json:"published_on,omitempty"`
	Website     string         `json:"website,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// Adapter parses one external feed format into normalized leads. Adapters
// are stateless; the registry builds a fresh instance per invocation.
// Offset/limit windowing is adapter-specific and callers may receive fewer
// items than requested near the end of the result set.
type Adapter interface {
	// Key returns the catalog key this adapter is registered under.
	Key() string

	// Fetch retrieves and normalizes one window of the feed identified by
	// params. The returned total is the full result-set size when the
	// upstream reports one, otherwise the number of parsed items.
	Fetch(ctx context.Context, params models.SourceParams, offset, limit int) ([]Lead, int, error)
}

// FetchError indicates the upstream endpoint was unreachable, returned a
// non-success status, or produced a document malformed beyond recovery.
// It is surfaced as a source-level failure, never as a fatal process error.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err wraps a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

const defaultFetchTimeout = 30 * time.Second

// fetchBody retrieves the raw document at url. Transport failures and
// non-2xx responses become FetchError.
func fetchBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "leadstream/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return body, nil
}

// window clamps an offset/limit pair against a result-set size and returns
// the slice bounds. A limit <= 0 means "to the end".
func window(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		return n, n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
