package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPCollectorRecordsMetrics(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	instrumented := collector.InstrumentHandler(handler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	instrumented.ServeHTTP(rr, req)

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}

	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `leadstream_http_requests_total{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}

	if !strings.Contains(body, `leadstream_http_request_duration_seconds_count{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestHTTPCollectorRecordsPipelineMetrics(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	collector.RecordSourceSync("rss-feed", "success")
	collector.RecordSourceSync("rss-feed", "failure")
	collector.RecordLeadsFetched("rss-feed", 12)
	collector.RecordPollAttempt()
	collector.RecordPollAttempt()
	collector.SetQueueDepth(3)

	body := scrape(t, collector)

	expectations := []string{
		`leadstream_sync_source_syncs_total{source="rss-feed",status="success"} 1`,
		`leadstream_sync_source_syncs_total{source="rss-feed",status="failure"} 1`,
		`leadstream_sync_leads_fetched_total{source="rss-feed"} 12`,
		`leadstream_lookup_poll_attempts_total 2`,
		`leadstream_sync_queue_depth 3`,
	}
	for _, want := range expectations {
		if !strings.Contains(body, want) {
			t.Errorf("expected metric %q in scrape, body=%q", want, body)
		}
	}
}

func scrape(t *testing.T, collector *HTTPCollector) string {
	t.Helper()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}
