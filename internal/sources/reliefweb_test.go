package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leadstream/leadstream/internal/models"
)

func TestReliefWeb_Fetch(t *testing.T) {
	var gotQuery reliefWebQuery

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotQuery); err != nil {
			t.Errorf("failed to decode query: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"totalCount": 42,
			"data": [
				{"fields": {
					"title": "Situation Report 12",
					"url": "https://reliefweb.int/report/abc",
					"date": {"original": "2023-04-05T00:00:00+00:00"},
					"source": [{"name": "OCHA", "homepage": "https://www.unocha.org"}]
				}},
				{"fields": {
					"title": "",
					"url": "https://reliefweb.int/report/empty-title"
				}},
				{"fields": {
					"title": "No URL report"
				}}
			]
		}`))
	}))
	defer server.Close()

	adapter := NewReliefWeb(server.Client())
	adapter.endpoint = server.URL

	params := models.SourceParams{"country": "AFG", "primary-country": "AFG"}
	leads, total, err := adapter.Fetch(context.Background(), params, 10, 20)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotQuery.Offset != 10 || gotQuery.Limit != 20 {
		t.Errorf("expected offset/limit 10/20 forwarded upstream, got %d/%d", gotQuery.Offset, gotQuery.Limit)
	}
	if gotQuery.Filter == nil || len(gotQuery.Filter.Conditions) != 2 {
		t.Fatalf("expected 2 filter conditions, got %+v", gotQuery.Filter)
	}
	if gotQuery.Filter.Conditions[0].Field != "country.iso3" || gotQuery.Filter.Conditions[0].Value != "AFG" {
		t.Errorf("unexpected country condition: %+v", gotQuery.Filter.Conditions[0])
	}

	if total != 42 {
		t.Errorf("expected upstream totalCount 42, got %d", total)
	}
	if len(leads) != 1 {
		t.Fatalf("expected 1 usable lead, got %d", len(leads))
	}

	lead := leads[0]
	if lead.Title != "Situation Report 12" {
		t.Errorf("unexpected title: %q", lead.Title)
	}
	if lead.Source != "OCHA" {
		t.Errorf("unexpected source: %q", lead.Source)
	}
	if lead.Website != "https://www.unocha.org" {
		t.Errorf("expected website from source homepage, got %q", lead.Website)
	}
	if lead.PublishedOn == nil {
		t.Error("expected published date to be parsed")
	}
}

func TestReliefWeb_FetchNoFilterWithoutParams(t *testing.T) {
	var gotQuery reliefWebQuery

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotQuery); err != nil {
			t.Errorf("failed to decode query: %v", err)
		}
		w.Write([]byte(`{"totalCount": 0, "data": []}`))
	}))
	defer server.Close()

	adapter := NewReliefWeb(server.Client())
	adapter.endpoint = server.URL

	leads, total, err := adapter.Fetch(context.Background(), models.SourceParams{}, 0, 0)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotQuery.Filter != nil {
		t.Errorf("expected no filter without country params, got %+v", gotQuery.Filter)
	}
	if gotQuery.Limit != 50 {
		t.Errorf("expected default limit 50, got %d", gotQuery.Limit)
	}
	if total != 0 || len(leads) != 0 {
		t.Errorf("expected empty result, got %d leads, total %d", len(leads), total)
	}
}

func TestReliefWeb_FetchErrorOnServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := NewReliefWeb(server.Client())
	adapter.endpoint = server.URL

	_, _, err := adapter.Fetch(context.Background(), models.SourceParams{}, 0, 0)
	if err == nil {
		t.Fatal("expected error on 502 response")
	}
	if !IsFetchError(err) {
		t.Errorf("expected FetchError, got %T: %v", err, err)
	}
}
