// Package auth holds the signed-in user and the sign-in/sign-out operations.
package auth

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/cookies"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/validation"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog/log"
)

const (
	// EntryPath is where signed-out users land
	EntryPath = "/"
	// LandingPath is where users land after signing in
	LandingPath = "/dashboard"
)

// Navigator performs client-side navigation
type Navigator interface {
	Push(ctx context.Context, path string)
}

// Credentials is the login form
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service is the session state holder for one client
type Service struct {
	client     *apiclient.Client
	store      cookies.Store
	nav        Navigator
	cookieOpts cookies.Options

	mu   sync.RWMutex
	user *users.Profile
}

type Option func(*Service)

// WithCookieOptions sets the policy used when persisting tokens
func WithCookieOptions(opts cookies.Options) Option {
	return func(s *Service) {
		s.cookieOpts = opts
	}
}

// NewService creates a state holder over an API client and its cookie store
func NewService(client *apiclient.Client, store cookies.Store, nav Navigator, opts ...Option) *Service {
	s := &Service{
		client:     client,
		store:      store,
		nav:        nav,
		cookieOpts: cookies.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession creates an API client over store together with its state holder.
// The client's sign-out hook runs the holder's SignOut, so a rejected session
// also drops the loaded user and the bearer token.
func NewSession(baseURL string, store cookies.Store, nav Navigator, cookieOpts cookies.Options, clientOpts ...apiclient.Option) *Service {
	var s *Service
	clientOpts = append(clientOpts,
		apiclient.WithCookieOptions(cookieOpts),
		apiclient.WithSignOut(func(ctx context.Context) {
			s.SignOut(ctx)
		}),
	)
	client := apiclient.New(baseURL, store, clientOpts...)
	s = NewService(client, store, nav, WithCookieOptions(cookieOpts))
	return s
}

// Client returns the API client the holder signs in with
func (s *Service) Client() *apiclient.Client {
	return s.client
}

// SignIn logs in, persists both tokens, points the client at the new access
// token and navigates to the landing page. Nothing is persisted on failure.
func (s *Service) SignIn(ctx context.Context, email, password string) (*users.Profile, error) {
	creds := Credentials{Email: email, Password: password}
	if err := validation.Struct(creds); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrInvalidRequest, "%v", err)
	}

	res, err := s.client.CreateSession(ctx, creds.Email, creds.Password)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str("email", creds.Email).Msg("sign in rejected")
		return nil, err
	}

	if err := cookies.SaveSession(s.store, res.Token, s.cookieOpts); err != nil {
		return nil, err
	}

	profile := &users.Profile{
		Email:       creds.Email,
		Permissions: res.Permissions,
		Roles:       res.Roles,
	}
	s.setUser(profile)
	s.client.SetToken(res.Token.AccessToken)

	log.Ctx(ctx).Info().Str("email", creds.Email).Msg("signed in")
	s.nav.Push(ctx, LandingPath)
	return profile, nil
}

// SignOut clears the session and navigates to the entry page
func (s *Service) SignOut(ctx context.Context) {
	s.setUser(nil)
	s.client.SetToken("")
	SignOut(ctx, s.store, s.nav)
}

// SignOut clears both token cookies and navigates to the entry page. It is
// the hook the API client runs when the API rejects the session.
func SignOut(ctx context.Context, store cookies.Store, nav Navigator) {
	cookies.ClearSession(store)
	if nav != nil {
		nav.Push(ctx, EntryPath)
	}
}

// LoadUser fetches the profile when an access token cookie exists. A failed
// fetch is treated as an invalid session and signs out; there is no retry.
func (s *Service) LoadUser(ctx context.Context) (*users.Profile, error) {
	if _, ok := cookies.AccessToken(s.store); !ok {
		return nil, autherrors.ErrNoSession
	}

	profile, err := s.client.Me(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("profile fetch failed, signing out")
		s.SignOut(ctx)
		return nil, err
	}

	s.setUser(profile)
	return profile, nil
}

// User returns the current profile, nil when signed out
func (s *Service) User() *users.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether a user is loaded
func (s *Service) IsAuthenticated() bool {
	return s.User() != nil
}

func (s *Service) setUser(p *users.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = p
}
