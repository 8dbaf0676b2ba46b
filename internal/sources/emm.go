package sources

import (
	"context"
	"net/http"

	"github.com/leadstream/leadstream/internal/models"
)

// EMM normalizes European Media Monitor RSS feeds. EMM items carry the
// originating outlet in the emm:source extension and support an extra
// website-field mapping on top of the RSS defaults.
type EMM struct {
	client *http.Client
}

// NewEMM creates an EMM adapter using the given HTTP client.
func NewEMM(client *http.Client) *EMM {
	return &EMM{client: client}
}

// Key returns the catalog key.
func (a *EMM) Key() string {
	return KeyEMM
}

// website-field has no default; unless mapped it derives from the item
// URL host.
var emmDefaults = feedMapping{
	titleField:  "title",
	urlField:    "link",
	sourceField: "emm:source",
	authorField: "author",
	dateField:   "pubDate",
}

// Fetch retrieves one window of the configured feed.
func (a *EMM) Fetch(ctx context.Context, params models.SourceParams, offset, limit int) ([]Lead, int, error) {
	return fetchFeed(ctx, a.client, params, emmDefaults, offset, limit)
}
