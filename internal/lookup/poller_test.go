package lookup

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClient scripts the classification service for poller tests.
type fakeClient struct {
	submitResp *SubmitResponse
	submitErr  error

	pollResponses []*PollResponse
	pollErr       error

	submitCalls int
	pollCalls   int
}

func (f *fakeClient) Submit(ctx context.Context, sourceKey string, urls []string) (*SubmitResponse, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResp, nil
}

func (f *fakeClient) Poll(ctx context.Context, jobUUID string) (*PollResponse, error) {
	f.pollCalls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.pollCalls <= len(f.pollResponses) {
		return f.pollResponses[f.pollCalls-1], nil
	}
	return f.pollResponses[len(f.pollResponses)-1], nil
}

func noSleep(p *Poller) *int {
	count := new(int)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*count++
		return nil
	}
	return count
}

func pending() *PollResponse {
	return &PollResponse{Status: StatusPending}
}

func succeeded(sources ...ClassifiedURL) *PollResponse {
	return &PollResponse{Status: StatusSuccess, Sources: sources}
}

func TestPoller_WaitConvergesAfterPending(t *testing.T) {
	client := &fakeClient{
		pollResponses: []*PollResponse{
			pending(),
			pending(),
			pending(),
			succeeded(ClassifiedURL{URL: "https://a.example.com", Status: StatusSuccess}),
		},
	}

	poller := NewPoller(client, PollPolicy{MaxAttempts: 10, Delay: time.Second})
	sleeps := noSleep(poller)

	sources, err := poller.Wait(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Three pending responses then success: exactly four polls, three
	// sleeps in between.
	if client.pollCalls != 4 {
		t.Errorf("expected exactly 4 poll calls, got %d", client.pollCalls)
	}
	if *sleeps != 3 {
		t.Errorf("expected 3 sleeps, got %d", *sleeps)
	}
	if len(sources) != 1 || sources[0].URL != "https://a.example.com" {
		t.Errorf("unexpected sources: %+v", sources)
	}
}

func TestPoller_WaitExhaustsAtBound(t *testing.T) {
	client := &fakeClient{pollResponses: []*PollResponse{pending()}}

	poller := NewPoller(client, PollPolicy{MaxAttempts: 5, Delay: time.Second})
	sleeps := noSleep(poller)

	_, err := poller.Wait(context.Background(), "job-1")
	if !errors.Is(err, ErrPollExhausted) {
		t.Fatalf("expected ErrPollExhausted, got %v", err)
	}

	if client.pollCalls != 5 {
		t.Errorf("expected exactly 5 poll calls at the bound, got %d", client.pollCalls)
	}
	// No sleep after the final attempt.
	if *sleeps != 4 {
		t.Errorf("expected 4 sleeps, got %d", *sleeps)
	}
}

func TestPoller_WaitImmediateSuccess(t *testing.T) {
	client := &fakeClient{pollResponses: []*PollResponse{succeeded()}}

	poller := NewPoller(client, PollPolicy{MaxAttempts: 5, Delay: time.Second})
	sleeps := noSleep(poller)

	if _, err := poller.Wait(context.Background(), "job-1"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if client.pollCalls != 1 {
		t.Errorf("expected 1 poll call, got %d", client.pollCalls)
	}
	if *sleeps != 0 {
		t.Errorf("expected no sleeps, got %d", *sleeps)
	}
}

func TestPoller_WaitUnexpectedStatus(t *testing.T) {
	client := &fakeClient{pollResponses: []*PollResponse{{Status: "exploded"}}}

	poller := NewPoller(client, PollPolicy{MaxAttempts: 5, Delay: time.Second})
	noSleep(poller)

	_, err := poller.Wait(context.Background(), "job-1")
	if err == nil {
		t.Fatal("expected error on unexpected job status")
	}
	if errors.Is(err, ErrPollExhausted) {
		t.Error("unexpected status must not report as exhaustion")
	}
}

func TestPoller_WaitStopsOnCancelledContext(t *testing.T) {
	client := &fakeClient{pollResponses: []*PollResponse{pending()}}

	poller := NewPoller(client, PollPolicy{MaxAttempts: 5, Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := poller.Wait(ctx, "job-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.pollCalls != 1 {
		t.Errorf("expected 1 poll before cancellation surfaced, got %d", client.pollCalls)
	}
}

func TestResolver_ImmediatePathSkipsPolling(t *testing.T) {
	client := &fakeClient{
		submitResp: &SubmitResponse{
			ExistingSources: []ClassifiedURL{
				{URL: "https://a.example.com", Status: StatusSuccess},
				{URL: "https://b.example.com", Status: StatusFailure},
			},
			AsyncJobUUID: nil,
		},
	}

	resolver := NewResolver(client, PollPolicy{MaxAttempts: 5, Delay: time.Second})
	noSleep(resolver.poller)

	classified, err := resolver.Resolve(context.Background(), "rss-feed", []string{"https://a.example.com", "https://b.example.com"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if client.pollCalls != 0 {
		t.Errorf("expected zero polls when no job was deferred, got %d", client.pollCalls)
	}
	if len(classified) != 2 {
		t.Fatalf("expected 2 classifications, got %d", len(classified))
	}
}

func TestResolver_CombinesInlineAndDeferred(t *testing.T) {
	jobUUID := "job-9"
	client := &fakeClient{
		submitResp: &SubmitResponse{
			ExistingSources: []ClassifiedURL{{URL: "https://a.example.com", Status: StatusSuccess}},
			AsyncJobUUID:    &jobUUID,
		},
		pollResponses: []*PollResponse{
			pending(),
			succeeded(
				ClassifiedURL{URL: "https://b.example.com", Status: StatusSuccess},
				ClassifiedURL{URL: "https://c.example.com", Status: StatusFailure},
			),
		},
	}

	resolver := NewResolver(client, PollPolicy{MaxAttempts: 5, Delay: time.Second})
	noSleep(resolver.poller)

	classified, err := resolver.Resolve(context.Background(), "rss-feed",
		[]string{"https://a.example.com", "https://b.example.com", "https://c.example.com"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(classified) != 3 {
		t.Fatalf("expected 3 classifications, got %d", len(classified))
	}
	byURL := make(map[string]string, len(classified))
	for _, c := range classified {
		byURL[c.URL] = c.Status
	}
	if byURL["https://a.example.com"] != StatusSuccess ||
		byURL["https://b.example.com"] != StatusSuccess ||
		byURL["https://c.example.com"] != StatusFailure {
		t.Errorf("unexpected classifications: %v", byURL)
	}
}

func TestResolver_EmptyBatchSkipsSubmit(t *testing.T) {
	client := &fakeClient{}
	resolver := NewResolver(client, DefaultPollPolicy())

	classified, err := resolver.Resolve(context.Background(), "rss-feed", nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if classified != nil {
		t.Errorf("expected nil result for empty batch, got %v", classified)
	}
	if client.submitCalls != 0 {
		t.Errorf("expected no submit for empty batch, got %d", client.submitCalls)
	}
}

func TestResolver_PollExhaustionSurfaces(t *testing.T) {
	jobUUID := "job-9"
	client := &fakeClient{
		submitResp: &SubmitResponse{AsyncJobUUID: &jobUUID},
		pollResponses: []*PollResponse{pending()},
	}

	resolver := NewResolver(client, PollPolicy{MaxAttempts: 3, Delay: time.Second})
	noSleep(resolver.poller)

	_, err := resolver.Resolve(context.Background(), "rss-feed", []string{"https://a.example.com"})
	if !errors.Is(err, ErrPollExhausted) {
		t.Fatalf("expected ErrPollExhausted, got %v", err)
	}
}
