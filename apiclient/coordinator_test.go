package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var expiredErr = &APIError{StatusCode: http.StatusUnauthorized, Code: CodeTokenExpired, Message: "Token has expired."}

type renewStub struct {
	calls   atomic.Int32
	release chan struct{}
	token   string
	err     error
}

func newRenewStub(token string, err error) *renewStub {
	return &renewStub{release: make(chan struct{}), token: token, err: err}
}

func (r *renewStub) renew(ctx context.Context) (string, error) {
	r.calls.Add(1)
	<-r.release
	return r.token, r.err
}

type replayLog struct {
	mu     sync.Mutex
	names  []string
	tokens []string
}

func (l *replayLog) replay(name string) ReplayFunc {
	return func(ctx context.Context, token string, _ func()) (*http.Response, error) {
		l.mu.Lock()
		l.names = append(l.names, name)
		l.tokens = append(l.tokens, token)
		l.mu.Unlock()
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(name))}, nil
	}
}

func (l *replayLog) snapshot() ([]string, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...), append([]string(nil), l.tokens...)
}

type outcome struct {
	resp *http.Response
	err  error
}

func enqueueAsync(c *coordinator, replay ReplayFunc) <-chan outcome {
	ch := make(chan outcome, 1)
	go func() {
		resp, err := c.Enqueue(context.Background(), expiredErr, replay)
		ch <- outcome{resp, err}
	}()
	return ch
}

func waitForPending(t *testing.T, c *coordinator, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Pending() == n }, time.Second, time.Millisecond)
}

func TestCoordinator_SingleRefreshForConcurrentFailures(t *testing.T) {
	stub := newRenewStub("T2", nil)
	c := newCoordinator(stub.renew, nil, zerolog.Nop())
	log := &replayLog{}

	const n = 10
	results := make([]<-chan outcome, n)
	for i := 0; i < n; i++ {
		results[i] = enqueueAsync(c, log.replay("req"))
	}
	waitForPending(t, c, n)
	require.True(t, c.Refreshing())

	close(stub.release)

	for _, ch := range results {
		out := <-ch
		require.NoError(t, out.err)
		require.Equal(t, http.StatusOK, out.resp.StatusCode)
		out.resp.Body.Close()
	}
	require.Equal(t, int32(1), stub.calls.Load())
	require.False(t, c.Refreshing())
	require.Equal(t, 0, c.Pending())

	_, tokens := log.snapshot()
	require.Len(t, tokens, n)
	for _, tok := range tokens {
		require.Equal(t, "T2", tok)
	}
}

func TestCoordinator_ReplaysInArrivalOrder(t *testing.T) {
	stub := newRenewStub("T2", nil)
	c := newCoordinator(stub.renew, nil, zerolog.Nop())
	log := &replayLog{}

	var results []<-chan outcome
	for i, name := range []string{"A", "B", "C"} {
		results = append(results, enqueueAsync(c, log.replay(name)))
		waitForPending(t, c, i+1)
	}
	close(stub.release)

	for i, ch := range results {
		out := <-ch
		require.NoError(t, out.err)
		body, _ := io.ReadAll(out.resp.Body)
		require.Equal(t, []string{"A", "B", "C"}[i], string(body))
	}

	names, _ := log.snapshot()
	require.Equal(t, []string{"A", "B", "C"}, names)
}

func TestCoordinator_FailedRefreshRejectsAllAndResets(t *testing.T) {
	refreshErr := errors.New("refresh rejected")
	stub := newRenewStub("", refreshErr)
	c := newCoordinator(stub.renew, nil, zerolog.Nop())
	log := &replayLog{}

	results := []<-chan outcome{
		enqueueAsync(c, log.replay("A")),
		enqueueAsync(c, log.replay("B")),
	}
	waitForPending(t, c, 2)
	close(stub.release)

	for _, ch := range results {
		out := <-ch
		require.Nil(t, out.resp)
		require.ErrorIs(t, out.err, refreshErr)
		require.ErrorIs(t, out.err, autherrors.ErrRefreshFailed)
		var re *RefreshError
		require.ErrorAs(t, out.err, &re)
	}
	names, _ := log.snapshot()
	require.Empty(t, names)
	require.False(t, c.Refreshing())

	// the next 401 starts a fresh cycle
	stub.err = nil
	stub.token = "T3"
	out := <-enqueueAsync(c, log.replay("D"))
	require.NoError(t, out.err)
	out.resp.Body.Close()
	require.Equal(t, int32(2), stub.calls.Load())
}

func TestCoordinator_OtherCodeSignsOutWithoutRefresh(t *testing.T) {
	stub := newRenewStub("T2", nil)
	var signedOut atomic.Int32
	c := newCoordinator(stub.renew, func(context.Context) { signedOut.Add(1) }, zerolog.Nop())
	log := &replayLog{}

	denied := &APIError{StatusCode: http.StatusUnauthorized, Code: "permission.denied"}
	resp, err := c.Enqueue(context.Background(), denied, log.replay("A"))

	require.Nil(t, resp)
	require.Same(t, denied, err)
	require.ErrorIs(t, err, autherrors.ErrUnauthorized)
	require.Equal(t, int32(1), signedOut.Load())
	require.Equal(t, int32(0), stub.calls.Load())
	require.False(t, c.Refreshing())
}

func TestCoordinator_CancelledWaiterDoesNotBlockOthers(t *testing.T) {
	stub := newRenewStub("T2", nil)
	c := newCoordinator(stub.renew, nil, zerolog.Nop())
	log := &replayLog{}

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := c.Enqueue(ctx, expiredErr, log.replay("A"))
		cancelled <- err
	}()
	waitForPending(t, c, 1)
	other := enqueueAsync(c, log.replay("B"))
	waitForPending(t, c, 2)

	cancel()
	require.ErrorIs(t, <-cancelled, context.Canceled)

	close(stub.release)
	out := <-other
	require.NoError(t, out.err)
	out.resp.Body.Close()
	require.Equal(t, int32(1), stub.calls.Load())
}

func TestCoordinator_PanickingRefreshRejects(t *testing.T) {
	c := newCoordinator(func(context.Context) (string, error) { panic("boom") }, nil, zerolog.Nop())

	_, err := c.Enqueue(context.Background(), expiredErr, (&replayLog{}).replay("A"))
	require.ErrorIs(t, err, autherrors.ErrRefreshFailed)
	require.Contains(t, err.Error(), "boom")
	require.False(t, c.Refreshing())
}

func TestCoordinator_SlowReplayDoesNotHoldLaterOnes(t *testing.T) {
	stub := newRenewStub("T2", nil)
	c := newCoordinator(stub.renew, nil, zerolog.Nop())

	unblockA := make(chan struct{})
	defer close(unblockA)
	slow := func(ctx context.Context, token string, dispatched func()) (*http.Response, error) {
		dispatched()
		<-unblockA
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("A"))}, nil
	}
	log := &replayLog{}

	a := enqueueAsync(c, slow)
	waitForPending(t, c, 1)
	b := enqueueAsync(c, log.replay("B"))
	waitForPending(t, c, 2)
	close(stub.release)

	select {
	case out := <-b:
		require.NoError(t, out.err)
		out.resp.Body.Close()
	case <-time.After(time.Second):
		t.Fatal("B waited on A's replay")
	}

	select {
	case <-a:
		t.Fatal("A settled before its replay returned")
	default:
	}
}

func TestCoordinator_ReplayWaitsForPreviousDispatch(t *testing.T) {
	stub := newRenewStub("T2", nil)
	c := newCoordinator(stub.renew, nil, zerolog.Nop())
	log := &replayLog{}

	dispatchA := make(chan struct{})
	held := func(ctx context.Context, token string, dispatched func()) (*http.Response, error) {
		<-dispatchA
		resp, err := log.replay("A")(ctx, token, nil)
		dispatched()
		return resp, err
	}

	a := enqueueAsync(c, held)
	waitForPending(t, c, 1)
	b := enqueueAsync(c, log.replay("B"))
	waitForPending(t, c, 2)
	close(stub.release)

	time.Sleep(20 * time.Millisecond)
	names, _ := log.snapshot()
	require.Empty(t, names)

	close(dispatchA)
	for _, ch := range []<-chan outcome{a, b} {
		out := <-ch
		require.NoError(t, out.err)
		out.resp.Body.Close()
	}
	names, _ = log.snapshot()
	require.Equal(t, []string{"A", "B"}, names)
}
