package apiclient

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-auth-client/cookies"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/validation"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// API routes
const (
	RouteSessions = "/sessions"
	RouteMe       = "/me"
	RouteRefresh  = "/refresh"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionResponse is validated so that a half pair never reaches the cookies
type sessionResponse struct {
	Token        string   `json:"token" validate:"required"`
	RefreshToken string   `json:"refreshToken" validate:"required"`
	Permissions  []string `json:"permissions"`
	Roles        []string `json:"roles"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionResult is a successful login
type SessionResult struct {
	Token       *oauth2.Token
	Permissions []string
	Roles       []string
}

// CreateSession exchanges credentials for a token pair (POST /sessions).
// A rejected login returns ErrInvalidCredentials.
func (c *Client) CreateSession(ctx context.Context, email, password string) (*SessionResult, error) {
	var resp sessionResponse
	err := c.sendDirect(ctx, http.MethodPost, RouteSessions, credentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isCredentialsRejection(apiErr.StatusCode) {
			return nil, errors.Wrap(autherrors.ErrInvalidCredentials, apiErr.Message)
		}
		return nil, err
	}
	if err := validation.Struct(resp); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidResponse, "sessions: %v", err)
	}

	return &SessionResult{
		Token: &oauth2.Token{
			AccessToken:  resp.Token,
			RefreshToken: resp.RefreshToken,
			TokenType:    "Bearer",
		},
		Permissions: resp.Permissions,
		Roles:       resp.Roles,
	}, nil
}

func isCredentialsRejection(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden
}

// Me fetches the profile of the current access token (GET /me)
func (c *Client) Me(ctx context.Context) (*users.Profile, error) {
	var profile users.Profile
	if err := c.Get(ctx, RouteMe, &profile); err != nil {
		return nil, err
	}
	if err := validation.Struct(profile); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidResponse, "me: %v", err)
	}
	return &profile, nil
}

// RefreshSession exchanges a refresh token for a new pair (POST /refresh). It
// goes straight to the API so a failing refresh never queues behind itself.
// The current access token is still sent, the API uses it to identify the user.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	var resp sessionResponse
	if err := c.sendDirect(ctx, http.MethodPost, RouteRefresh, refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	if err := validation.Struct(resp); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidResponse, "refresh: %v", err)
	}
	return &oauth2.Token{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}

// renewSession is the refresh cycle body: refresh, persist both cookies, then
// update the default header.
func (c *Client) renewSession(ctx context.Context) (string, error) {
	refreshToken, ok := cookies.RefreshToken(c.store)
	if !ok {
		return "", autherrors.ErrNoSession
	}

	tok, err := c.RefreshSession(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if err := cookies.SaveSession(c.store, tok, c.cookieOpts); err != nil {
		return "", err
	}
	c.SetToken(tok.AccessToken)
	return tok.AccessToken, nil
}
