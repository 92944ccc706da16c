package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReplayFunc re-issues an original request with the given access token. It
// calls dispatched once the request has been written; the next queued replay
// is held until then.
type ReplayFunc func(ctx context.Context, token string, dispatched func()) (*http.Response, error)

// PendingRequest is a request waiting on the in-flight refresh. Exactly one of
// its continuations runs, once, when the refresh settles.
type PendingRequest struct {
	ID        string
	onSuccess func(token string, dispatched func())
	onFailure func(err error)
}

// coordinator allows at most one refresh call at a time; every 401 seen while
// it runs is queued behind it and replayed in arrival order.
type coordinator struct {
	mu         sync.Mutex
	refreshing bool
	queue      []*PendingRequest

	// renew performs the refresh call, persists the new pair and updates the
	// default header. It returns the new access token.
	renew   func(ctx context.Context) (string, error)
	signOut func(ctx context.Context)
	logger  zerolog.Logger
}

func newCoordinator(renew func(ctx context.Context) (string, error), signOut func(ctx context.Context), logger zerolog.Logger) *coordinator {
	return &coordinator{
		renew:   renew,
		signOut: signOut,
		logger:  logger,
	}
}

// Refreshing reports whether a refresh cycle is in flight
func (c *coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Pending returns how many requests wait on the in-flight refresh
func (c *coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Enqueue handles a 401. Non-refreshable codes sign out and return apiErr.
// Otherwise the call is queued, a refresh is started if none is running, and
// Enqueue blocks until the queued entry settles or ctx is done.
func (c *coordinator) Enqueue(ctx context.Context, apiErr *APIError, replay ReplayFunc) (*http.Response, error) {
	if !apiErr.Code.Refreshable() {
		c.logger.Info().Str("code", string(apiErr.Code)).Msg("unauthorized, signing out")
		if c.signOut != nil {
			c.signOut(ctx)
		}
		return nil, apiErr
	}

	result := newDeferred[*http.Response]()
	pending := &PendingRequest{
		ID: uuid.NewString(),
		onSuccess: func(token string, dispatched func()) {
			resp, err := replay(ctx, token, dispatched)
			if err == nil && ctx.Err() != nil {
				resp.Body.Close()
				resp, err = nil, ctx.Err()
			}
			result.settle(resp, err)
		},
		onFailure: result.reject,
	}

	c.mu.Lock()
	c.queue = append(c.queue, pending)
	start := !c.refreshing
	if start {
		c.refreshing = true
	}
	c.mu.Unlock()

	c.logger.Debug().
		Str("pending_id", pending.ID).
		Str("code", string(apiErr.Code)).
		Bool("started_refresh", start).
		Msg("request queued for refresh")

	if start {
		// the refresh serves every queued caller, so it must outlive this one
		go c.refresh(context.WithoutCancel(ctx))
	}

	return result.wait(ctx)
}

func (c *coordinator) refresh(ctx context.Context) {
	token, err := c.safeRenew(ctx)

	// Resetting the flag and taking the queue happen together: a 401 arriving
	// before this point is drained below, one arriving after starts a new cycle.
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.refreshing = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Int("queued", len(queue)).Msg("token refresh failed")
		refreshErr := &RefreshError{Err: err}
		for _, p := range queue {
			p.onFailure(refreshErr)
		}
		return
	}

	c.logger.Debug().Int("queued", len(queue)).Msg("token refreshed, replaying requests")
	prev := make(chan struct{})
	close(prev)
	for _, p := range queue {
		sent := make(chan struct{})
		go replayAfter(p, token, prev, sent)
		prev = sent
	}
}

// replayAfter issues p's replay once the previous entry has been written and
// closes sent when p's own request is written or its replay returns. Replays
// go out in queue order but complete independently.
func replayAfter(p *PendingRequest, token string, prev <-chan struct{}, sent chan struct{}) {
	<-prev
	var once sync.Once
	dispatched := func() { once.Do(func() { close(sent) }) }
	defer dispatched()
	p.onSuccess(token, dispatched)
}

func (c *coordinator) safeRenew(ctx context.Context) (token string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during refresh: %v", r)
		}
	}()
	return c.renew(ctx)
}
