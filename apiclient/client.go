// Package apiclient is an HTTP client for the auth API that attaches the bearer
// token to every call and silently refreshes it when the API reports expiry.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const contentTypeJSON = "application/json"

// Client is safe for concurrent use. One Client owns one refresh coordinator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      cookies.Store
	cookieOpts cookies.Options
	signOut    func(ctx context.Context)
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string

	refresh *coordinator
}

type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSignOut sets the hook run when the API rejects the session outright
func WithSignOut(signOut func(ctx context.Context)) Option {
	return func(c *Client) {
		c.signOut = signOut
	}
}

// WithCookieOptions sets the policy used when persisting refreshed tokens
func WithCookieOptions(opts cookies.Options) Option {
	return func(c *Client) {
		c.cookieOpts = opts
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API at baseURL. The default authorization header
// starts from the access token cookie, if any.
func New(baseURL string, store cookies.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		cookieOpts: cookies.DefaultOptions(),
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if token, ok := cookies.AccessToken(store); ok {
		c.token = token
	}
	c.refresh = newCoordinator(c.renewSession, c.signOut, c.logger)
	return c
}

// Token returns the access token used for the authorization header
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the access token used for the authorization header
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Refreshing reports whether a refresh cycle is in flight
func (c *Client) Refreshing() bool {
	return c.refresh.Refreshing()
}

// Pending returns how many requests wait on the in-flight refresh
func (c *Client) Pending() int {
	return c.refresh.Pending()
}

// Get issues an authenticated GET and decodes the JSON response into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST of in and decodes the JSON response into out
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// Do issues an authenticated request. A 401 with an expired or invalid token
// code waits for a refresh and is replayed once; other errors are returned as is.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	req, err := newRequest(method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

type request struct {
	method string
	path   string
	body   []byte
}

func newRequest(method, path string, in any) (*request, error) {
	req := &request{method: method, path: path}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s %s body", method, path)
		}
		req.body = body
	}
	return req, nil
}

func (c *Client) roundTrip(ctx context.Context, req *request) (*http.Response, error) {
	resp, err := c.send(ctx, req, c.Token())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	apiErr := readAPIError(resp)
	if apiErr.StatusCode != http.StatusUnauthorized {
		return nil, apiErr
	}

	return c.refresh.Enqueue(ctx, apiErr, func(ctx context.Context, token string, dispatched func()) (*http.Response, error) {
		return c.replay(ctx, req, token, dispatched)
	})
}

// replay sends the request once more; a failure is final.
func (c *Client) replay(ctx context.Context, req *request, token string, dispatched func()) (*http.Response, error) {
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { dispatched() },
	})
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req *request, token string) (*http.Response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", req.method, req.path)
	}
	httpReq.Header.Set("Accept", contentTypeJSON)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	return c.httpClient.Do(httpReq)
}

// sendDirect issues a request outside the refresh pipeline
func (c *Client) sendDirect(ctx context.Context, method, path string, in, out any) error {
	req, err := newRequest(method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, req, c.Token())
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return readAPIError(resp)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
