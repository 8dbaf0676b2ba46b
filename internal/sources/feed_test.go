package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadstream/leadstream/internal/models"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Example Wire</title>
<item>
  <title>First story</title>
  <link>https://news.example.org/a</link>
  <author>Ana Reyes</author>
  <pubDate>Mon, 02 Jan 2023 15:04:05 +0000</pubDate>
</item>
<item>
  <title>Second story</title>
  <link>https://news.example.org/b</link>
  <pubDate>not a date</pubDate>
</item>
<item>
  <title>No link at all</title>
</item>
<item>
  <link>https://news.example.org/d</link>
</item>
<item>
  <title>Relative link</title>
  <link>/relative/path</link>
</item>
</channel>
</rss>`

const emmFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:emm="http://emm.jrc.it">
<channel>
<title>EMM Alerts</title>
<item>
  <title>Flood warning issued</title>
  <link>https://alerts.example.int/1</link>
  <emm:source url="https://outlet.example.com">Outlet Daily</emm:source>
  <pubDate>Tue, 03 Jan 2023 08:00:00 GMT</pubDate>
</item>
</channel>
</rss>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
}

func TestRSSFeed_FetchSkipsMalformedItems(t *testing.T) {
	server := feedServer(t, rssFixture)
	defer server.Close()

	adapter := NewRSSFeed(server.Client())
	params := models.SourceParams{"feed-url": server.URL}

	leads, total, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// Three of the five items are unusable: no link, no title, non-http
	// link. They are skipped without failing the fetch.
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}

	first := leads[0]
	if first.Title != "First story" {
		t.Errorf("expected title %q, got %q", "First story", first.Title)
	}
	if first.URL != "https://news.example.org/a" {
		t.Errorf("unexpected url: %q", first.URL)
	}
	if first.Author != "Ana Reyes" {
		t.Errorf("expected author %q, got %q", "Ana Reyes", first.Author)
	}
	if first.Source != "Example Wire" {
		t.Errorf("expected source to fall back to feed title, got %q", first.Source)
	}
	if first.Website != "https://news.example.org" {
		t.Errorf("expected website from url host, got %q", first.Website)
	}
	if first.PublishedOn == nil {
		t.Error("expected published date to be parsed")
	}

	if leads[1].PublishedOn != nil {
		t.Errorf("expected nil published date for unparsable value, got %v", leads[1].PublishedOn)
	}
}

func TestRSSFeed_FetchIsStable(t *testing.T) {
	server := feedServer(t, rssFixture)
	defer server.Close()

	adapter := NewRSSFeed(server.Client())
	params := models.SourceParams{"feed-url": server.URL}

	first, _, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}
	second, _, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("fetches disagree on lead count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].URL != second[i].URL || first[i].Title != second[i].Title {
			t.Errorf("lead %d differs between fetches: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRSSFeed_FetchWindow(t *testing.T) {
	server := feedServer(t, rssFixture)
	defer server.Close()

	adapter := NewRSSFeed(server.Client())
	params := models.SourceParams{"feed-url": server.URL}

	leads, total, err := adapter.Fetch(context.Background(), params, 1, 1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead in window, got %d", len(leads))
	}
	if leads[0].Title != "Second story" {
		t.Errorf("expected windowed lead %q, got %q", "Second story", leads[0].Title)
	}
}

func TestRSSFeed_FetchErrorOnServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewRSSFeed(server.Client())
	params := models.SourceParams{"feed-url": server.URL}

	_, _, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
	if !IsFetchError(err) {
		t.Errorf("expected FetchError, got %T: %v", err, err)
	}
}

func TestRSSFeed_FetchErrorOnMalformedDocument(t *testing.T) {
	server := feedServer(t, "this is not a feed")
	defer server.Close()

	adapter := NewRSSFeed(server.Client())
	params := models.SourceParams{"feed-url": server.URL}

	_, _, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err == nil {
		t.Fatal("expected error on unparsable document")
	}
	if !IsFetchError(err) {
		t.Errorf("expected FetchError, got %T: %v", err, err)
	}
}

func TestRSSFeed_FetchRequiresFeedURL(t *testing.T) {
	adapter := NewRSSFeed(nil)

	_, _, err := adapter.Fetch(context.Background(), models.SourceParams{}, 0, 0)
	if err == nil {
		t.Fatal("expected error when feed-url param is missing")
	}
	if IsFetchError(err) {
		t.Error("missing param is a configuration error, not a fetch error")
	}
}

func TestEMM_FetchMapsSourceExtension(t *testing.T) {
	server := feedServer(t, emmFixture)
	defer server.Close()

	adapter := NewEMM(server.Client())
	params := models.SourceParams{"feed-url": server.URL}

	leads, _, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}

	lead := leads[0]
	if lead.Source != "Outlet Daily" {
		t.Errorf("expected source from emm:source extension, got %q", lead.Source)
	}
	if lead.Website != "https://alerts.example.int" {
		t.Errorf("expected website from item url host, got %q", lead.Website)
	}
}

func TestEMM_FetchWebsiteFieldOverride(t *testing.T) {
	server := feedServer(t, emmFixture)
	defer server.Close()

	adapter := NewEMM(server.Client())
	params := models.SourceParams{
		"feed-url":      server.URL,
		"website-field": "emm:source",
	}

	leads, _, err := adapter.Fetch(context.Background(), params, 0, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 lead, got %d", len(leads))
	}
	if leads[0].Website != "Outlet Daily" {
		t.Errorf("expected mapped website, got %q", leads[0].Website)
	}
}
