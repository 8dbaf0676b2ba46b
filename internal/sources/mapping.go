package sources

import (
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/leadstream/leadstream/internal/models"
)

// feedMapping names the feed fields the common lead record is built from.
// Connector source params override the per-format defaults, so operators
// can point the adapter at non-standard element names.
type feedMapping struct {
	titleField   string
	urlField     string
	sourceField  string
	authorField  string
	dateField    string
	websiteField string
}

func mappingFromParams(params models.SourceParams, defaults feedMapping) feedMapping {
	return feedMapping{
		titleField:   params.StringOr("title-field", defaults.titleField),
		urlField:     params.StringOr("url-field", defaults.urlField),
		sourceField:  params.StringOr("source-field", defaults.sourceField),
		authorField:  params.StringOr("author-field", defaults.authorField),
		dateField:    params.StringOr("date-field", defaults.dateField),
		websiteField: params.StringOr("website-field", defaults.websiteField),
	}
}

// mapItems normalizes every parsable item in the feed. Entries missing a
// usable URL or title are skipped, never fatal.
func mapItems(feed *gofeed.Feed, m feedMapping) []Lead {
	leads := make([]Lead, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		lead, ok := mapItem(feed, item, m)
		if !ok {
			continue
		}
		leads = append(leads, lead)
	}
	return leads
}

func mapItem(feed *gofeed.Feed, item *gofeed.Item, m feedMapping) (Lead, bool) {
	leadURL := strings.TrimSpace(itemField(feed, item, m.urlField))
	if !isHTTPURL(leadURL) {
		return Lead{}, false
	}

	title := strings.TrimSpace(itemField(feed, item, m.titleField))
	if title == "" {
		return Lead{}, false
	}

	lead := Lead{
		Title:       title,
		URL:         leadURL,
		Source:      strings.TrimSpace(itemField(feed, item, m.sourceField)),
		Author:      strings.TrimSpace(itemField(feed, item, m.authorField)),
		PublishedOn: itemDate(item, m.dateField),
		Website:     strings.TrimSpace(itemField(feed, item, m.websiteField)),
	}

	if lead.Website == "" {
		lead.Website = urlHost(leadURL)
	}

	lead.Raw = map[string]any{
		"title":      lead.Title,
		"url":        lead.URL,
		"source":     lead.Source,
		"author":     lead.Author,
		"published":  itemField(feed, item, m.dateField),
		"website":    lead.Website,
		"feed_title": feed.Title,
	}

	return lead, true
}

// itemField resolves one configured field name against a parsed item. Well
// known names map onto the parsed representation; anything else is looked
// up in the item's custom elements and namespaced extensions.
func itemField(feed *gofeed.Feed, item *gofeed.Item, field string) string {
	switch field {
	case "title":
		return item.Title
	case "link", "url":
		return item.Link
	case "description", "summary":
		return item.Description
	case "content":
		return item.Content
	case "guid", "id":
		return item.GUID
	case "author", "name":
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			return item.Authors[0].Name
		}
		return ""
	case "pubDate", "published":
		return item.Published
	case "updated":
		return item.Updated
	case "source":
		if v := customField(item, "source"); v != "" {
			return v
		}
		return feed.Title
	case "":
		return ""
	default:
		return customField(item, field)
	}
}

// customField reads an unmapped element, trying the flat custom map first
// and then the namespaced extension tree ("prefix:name" form).
func customField(item *gofeed.Item, field string) string {
	if v, ok := item.Custom[field]; ok {
		return v
	}

	prefix, name, found := strings.Cut(field, ":")
	if !found {
		for _, ns := range item.Extensions {
			if exts, ok := ns[field]; ok && len(exts) > 0 {
				return extensionValue(exts[0])
			}
		}
		return ""
	}

	if ns, ok := item.Extensions[prefix]; ok {
		if exts, ok := ns[name]; ok && len(exts) > 0 {
			return extensionValue(exts[0])
		}
	}
	return ""
}

func extensionValue(e ext.Extension) string {
	if e.Value != "" {
		return e.Value
	}
	return e.Attrs["url"]
}

// itemDate resolves the publication timestamp for the configured date
// field, preferring the timestamps gofeed already parsed. Unparsable dates
// yield nil rather than a fabricated value.
func itemDate(item *gofeed.Item, field string) *time.Time {
	switch field {
	case "pubDate", "published":
		if item.PublishedParsed != nil {
			return item.PublishedParsed
		}
	case "updated":
		if item.UpdatedParsed != nil {
			return item.UpdatedParsed
		}
	}

	raw := strings.TrimSpace(customField(item, field))
	if raw == "" {
		switch field {
		case "pubDate", "published":
			raw = strings.TrimSpace(item.Published)
		case "updated":
			raw = strings.TrimSpace(item.Updated)
		}
	}
	return parseDate(raw)
}

// parseDate attempts the date formats seen across RSS, Atom and EMM feeds.
func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 02 Jan 2006 15:04:05 MST",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, raw); err == nil {
			return &t
		}
	}

	// Some feeds omit the timezone entirely; assume UTC.
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", raw, time.UTC); err == nil {
		return &t
	}

	return nil
}

func isHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

func urlHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
