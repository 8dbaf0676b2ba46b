package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leadstream/leadstream/internal/models"
)

const reliefWebEndpoint = "https://api.reliefweb.int/v1/reports?appname=leadstream"

// ReliefWeb normalizes reports from the ReliefWeb v1 API. Unlike the XML
// adapters it pages server-side, so offset/limit are forwarded upstream
// and the reported totalCount is returned as the total.
type ReliefWeb struct {
	client *http.Client

	// endpoint is overridable for tests.
	endpoint string
}

// NewReliefWeb creates a ReliefWeb adapter using the given HTTP client.
func NewReliefWeb(client *http.Client) *ReliefWeb {
	return &ReliefWeb{client: client, endpoint: reliefWebEndpoint}
}

// Key returns the catalog key.
func (a *ReliefWeb) Key() string {
	return KeyReliefWeb
}

type reliefWebQuery struct {
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
	Sort   []string            `json:"sort"`
	Fields reliefWebFieldsSpec `json:"fields"`
	Filter *reliefWebFilter    `json:"filter,omitempty"`
}

type reliefWebFieldsSpec struct {
	Include []string `json:"include"`
}

type reliefWebFilter struct {
	Operator   string               `json:"operator,omitempty"`
	Conditions []reliefWebCondition `json:"conditions,omitempty"`
}

type reliefWebCondition struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type reliefWebResponse struct {
	TotalCount int `json:"totalCount"`
	Data       []struct {
		Fields struct {
			Title string `json:"title"`
			URL   string `json:"url"`
			Date  struct {
				Original string `json:"original"`
			} `json:"date"`
			Source []struct {
				Name     string `json:"name"`
				Homepage string `json:"homepage"`
			} `json:"source"`
		} `json:"fields"`
	} `json:"data"`
}

// Fetch queries the reports API for one page of results.
func (a *ReliefWeb) Fetch(ctx context.Context, params models.SourceParams, offset, limit int) ([]Lead, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 50
	}

	query := reliefWebQuery{
		Offset: offset,
		Limit:  limit,
		Sort:   []string{"date.original:desc"},
		Fields: reliefWebFieldsSpec{
			Include: []string{"title", "url", "date.original", "source.name", "source.homepage"},
		},
		Filter: buildReliefWebFilter(params),
	}

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	resp, err := a.post(ctx, payload)
	if err != nil {
		return nil, 0, err
	}

	leads := make([]Lead, 0, len(resp.Data))
	for _, entry := range resp.Data {
		fields := entry.Fields
		if !isHTTPURL(fields.URL) || strings.TrimSpace(fields.Title) == "" {
			continue
		}

		lead := Lead{
			Title:       strings.TrimSpace(fields.Title),
			URL:         fields.URL,
			PublishedOn: parseDate(fields.Date.Original),
			Website:     urlHost(fields.URL),
		}
		if len(fields.Source) > 0 {
			lead.Source = fields.Source[0].Name
			if fields.Source[0].Homepage != "" {
				lead.Website = fields.Source[0].Homepage
			}
		}
		lead.Raw = map[string]any{
			"title":     lead.Title,
			"url":       lead.URL,
			"source":    lead.Source,
			"published": fields.Date.Original,
			"website":   lead.Website,
		}
		leads = append(leads, lead)
	}

	return leads, resp.TotalCount, nil
}

func buildReliefWebFilter(params models.SourceParams) *reliefWebFilter {
	var conditions []reliefWebCondition
	if country := params.String("country"); country != "" {
		conditions = append(conditions, reliefWebCondition{Field: "country.iso3", Value: country})
	}
	if primary := params.String("primary-country"); primary != "" {
		conditions = append(conditions, reliefWebCondition{Field: "primary_country.iso3", Value: primary})
	}
	if len(conditions) == 0 {
		return nil
	}
	return &reliefWebFilter{Operator: "AND", Conditions: conditions}
}

func (a *ReliefWeb) post(ctx context.Context, payload []byte) (*reliefWebResponse, error) {
	client := a.client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &FetchError{URL: a.endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "leadstream/1.0")

	httpResp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: a.endpoint, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &FetchError{URL: a.endpoint, Err: fmt.Errorf("unexpected status code: %d", httpResp.StatusCode)}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &FetchError{URL: a.endpoint, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	var resp reliefWebResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{URL: a.endpoint, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return &resp, nil
}
