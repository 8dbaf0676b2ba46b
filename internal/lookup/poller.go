package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollExhausted indicates an async classification job stayed pending
// past the attempt bound. The batch is treated as a source-level failure;
// its URLs stay unresolved and get picked up again on the next trigger.
var ErrPollExhausted = errors.New("classification job still pending after poll bound")

// PollPolicy bounds how long a deferred classification job is waited on.
type PollPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPollPolicy returns the poll bound used unless configured otherwise.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxAttempts: 10,
		Delay:       2 * time.Second,
	}
}

// Poller waits out async classification jobs. The sleep function is
// injectable so tests run without wall-clock delays.
type Poller struct {
	client    Client
	policy    PollPolicy
	sleep     func(ctx context.Context, d time.Duration) error
	onAttempt func()
}

// NewPoller creates a poller over client with the given bound.
func NewPoller(client Client, policy PollPolicy) *Poller {
	return &Poller{
		client: client,
		policy: policy,
		sleep:  sleepCtx,
	}
}

// OnAttempt registers a hook invoked before every poll request, used to
// count attempts in metrics.
func (p *Poller) OnAttempt(fn func()) {
	p.onAttempt = fn
}

// Wait polls the job until it resolves or the attempt bound is reached.
// Pending is neither success nor failure; only a terminal response ends
// the wait early. Callers must not hold database transactions across Wait.
func (p *Poller) Wait(ctx context.Context, jobUUID string) ([]ClassifiedURL, error) {
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		if p.onAttempt != nil {
			p.onAttempt()
		}
		resp, err := p.client.Poll(ctx, jobUUID)
		if err != nil {
			return nil, fmt.Errorf("poll attempt %d: %w", attempt, err)
		}

		switch resp.Status {
		case StatusSuccess:
			return resp.Sources, nil
		case StatusPending:
			if attempt == p.policy.MaxAttempts {
				break
			}
			if err := p.sleep(ctx, p.policy.Delay); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unexpected job status %q", resp.Status)
		}
	}

	return nil, fmt.Errorf("job %s: %w", jobUUID, ErrPollExhausted)
}

// Resolver runs the full classification round trip: submit the batch,
// then wait out the async job when one was deferred. A nil asyncJobUuid
// means everything resolved inline and no poll is issued.
type Resolver struct {
	client Client
	poller *Poller
}

// NewResolver creates a resolver over client with the given poll bound.
func NewResolver(client Client, policy PollPolicy) *Resolver {
	return &Resolver{
		client: client,
		poller: NewPoller(client, policy),
	}
}

// OnPollAttempt registers a hook invoked before every poll request.
func (r *Resolver) OnPollAttempt(fn func()) {
	r.poller.OnAttempt(fn)
}

// Resolve submits urls for sourceKey and returns every classification the
// service produced, inline and async combined. URLs absent from the result
// are unresolved and carry no classification.
func (r *Resolver) Resolve(ctx context.Context, sourceKey string, urls []string) ([]ClassifiedURL, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	resp, err := r.client.Submit(ctx, sourceKey, urls)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}

	classified := append([]ClassifiedURL(nil), resp.ExistingSources...)
	if resp.AsyncJobUUID == nil {
		return classified, nil
	}

	deferred, err := r.poller.Wait(ctx, *resp.AsyncJobUUID)
	if err != nil {
		return nil, err
	}
	return append(classified, deferred...), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
