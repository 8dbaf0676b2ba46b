package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/leadstream/leadstream/internal/models"
)

// RSSFeed normalizes RSS 2.0 feeds. Field mappings default to the
// standard RSS element names and can be overridden via params.
type RSSFeed struct {
	client *http.Client
}

// NewRSSFeed creates an RSS adapter using the given HTTP client.
func NewRSSFeed(client *http.Client) *RSSFeed {
	return &RSSFeed{client: client}
}

// Key returns the catalog key.
func (a *RSSFeed) Key() string {
	return KeyRSSFeed
}

var rssDefaults = feedMapping{
	titleField:  "title",
	urlField:    "link",
	sourceField: "source",
	authorField: "author",
	dateField:   "pubDate",
}

// Fetch retrieves one window of the configured feed.
func (a *RSSFeed) Fetch(ctx context.Context, params models.SourceParams, offset, limit int) ([]Lead, int, error) {
	return fetchFeed(ctx, a.client, params, rssDefaults, offset, limit)
}

// fetchFeed is the shared fetch/parse/map cycle for the XML feed adapters.
func fetchFeed(ctx context.Context, client *http.Client, params models.SourceParams, defaults feedMapping, offset, limit int) ([]Lead, int, error) {
	feedURL := params.String("feed-url")
	if feedURL == "" {
		return nil, 0, fmt.Errorf("feed-url param is required")
	}

	body, err := fetchBody(ctx, client, feedURL)
	if err != nil {
		return nil, 0, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, 0, &FetchError{URL: feedURL, Err: fmt.Errorf("failed to parse feed: %w", err)}
	}

	leads := mapItems(feed, mappingFromParams(params, defaults))
	total := len(leads)
	lo, hi := window(total, offset, limit)
	return leads[lo:hi], total, nil
}
