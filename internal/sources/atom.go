package sources

import (
	"context"
	"net/http"

	"github.com/leadstream/leadstream/internal/models"
)

// AtomFeed normalizes Atom feeds. Same machinery as RSS with Atom
// element-name defaults.
type AtomFeed struct {
	client *http.Client
}

// NewAtomFeed creates an Atom adapter using the given HTTP client.
func NewAtomFeed(client *http.Client) *AtomFeed {
	return &AtomFeed{client: client}
}

// Key returns the catalog key.
func (a *AtomFeed) Key() string {
	return KeyAtomFeed
}

var atomDefaults = feedMapping{
	titleField:  "title",
	urlField:    "link",
	sourceField: "source",
	authorField: "author",
	dateField:   "published",
}

// Fetch retrieves one window of the configured feed.
func (a *AtomFeed) Fetch(ctx context.Context, params models.SourceParams, offset, limit int) ([]Lead, int, error) {
	return fetchFeed(ctx, a.client, params, atomDefaults, offset, limit)
}
