package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/apiclient/apifake"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/cookies"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "diego@rocketseat.team"
	testPassword = "123456"
)

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Push(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type testFixture struct {
	api     *apifake.API
	url     string
	store   *cookies.MemoryStore
	nav     *recordingNavigator
	client  *apiclient.Client
	service *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	api, server, err := apifake.NewServer(apifake.User{
		Email:       testEmail,
		Password:    testPassword,
		Permissions: []string{"users.list", "metrics.list"},
		Roles:       []string{"administrator"},
	})
	require.NoError(t, err)
	t.Cleanup(server.Close)

	store := cookies.NewMemoryStore()
	nav := &recordingNavigator{}
	client := apiclient.New(server.URL, store, apiclient.WithSignOut(func(ctx context.Context) {
		auth.SignOut(ctx, store, nav)
	}))

	return &testFixture{
		api:     api,
		url:     server.URL,
		store:   store,
		nav:     nav,
		client:  client,
		service: auth.NewService(client, store, nav),
	}
}

// reload builds a new client and holder over the same cookies
func (f *testFixture) reload() *auth.Service {
	client := apiclient.New(f.url, f.store, apiclient.WithSignOut(func(ctx context.Context) {
		auth.SignOut(ctx, f.store, f.nav)
	}))
	return auth.NewService(client, f.store, f.nav)
}

func TestService_SignIn(t *testing.T) {
	f := setupTestFixture(t)

	profile, err := f.service.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, profile.Email)
	require.Equal(t, []string{"users.list", "metrics.list"}, profile.Permissions)
	require.Equal(t, []string{"administrator"}, profile.Roles)

	require.True(t, f.service.IsAuthenticated())
	require.Equal(t, profile, f.service.User())

	tok, ok := cookies.LoadSession(f.store)
	require.True(t, ok)
	require.Equal(t, tok.AccessToken, f.client.Token())

	for _, name := range []string{cookies.TokenCookie, cookies.RefreshTokenCookie} {
		expiresAt, ok := f.store.ExpiresAt(name)
		require.True(t, ok)
		require.WithinDuration(t, time.Now().Add(30*24*time.Hour), expiresAt, time.Minute)
	}

	require.Equal(t, []string{auth.LandingPath}, f.nav.Paths())
}

func TestService_SignInRejected(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("invalid credentials", func(t *testing.T) {
		profile, err := f.service.SignIn(context.Background(), testEmail, "wrong")
		require.Nil(t, profile)
		require.ErrorIs(t, err, autherrors.ErrInvalidCredentials)
	})

	t.Run("invalid form", func(t *testing.T) {
		_, err := f.service.SignIn(context.Background(), "not-an-email", "")
		require.ErrorIs(t, err, autherrors.ErrInvalidRequest)
		require.Contains(t, err.Error(), "email must be a valid email address")
	})

	_, ok := cookies.AccessToken(f.store)
	require.False(t, ok)
	require.False(t, f.service.IsAuthenticated())
	require.Empty(t, f.nav.Paths())
}

func TestService_SignOutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.service.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	f.service.SignOut(context.Background())
	f.service.SignOut(context.Background())

	_, ok := cookies.LoadSession(f.store)
	require.False(t, ok)
	require.False(t, f.service.IsAuthenticated())
	require.Empty(t, f.client.Token())
	require.Equal(t, []string{auth.LandingPath, auth.EntryPath, auth.EntryPath}, f.nav.Paths())
}

func TestNewSession_RejectedSessionClearsHolder(t *testing.T) {
	f := setupTestFixture(t)
	svc := auth.NewSession(f.url, f.store, f.nav, cookies.DefaultOptions())

	_, err := svc.SignIn(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.True(t, svc.IsAuthenticated())
	require.NotEmpty(t, svc.Client().Token())

	f.api.Deny("permission.denied")
	var out map[string]any
	err = svc.Client().Get(context.Background(), "/items", &out)
	require.ErrorIs(t, err, autherrors.ErrUnauthorized)

	require.False(t, svc.IsAuthenticated())
	require.Nil(t, svc.User())
	require.Empty(t, svc.Client().Token())
	_, ok := cookies.LoadSession(f.store)
	require.False(t, ok)
	require.Equal(t, []string{auth.LandingPath, auth.EntryPath}, f.nav.Paths())
	require.Zero(t, f.api.RefreshCalls())
}

func TestService_LoadUser(t *testing.T) {
	t.Run("no cookie does nothing", func(t *testing.T) {
		f := setupTestFixture(t)
		profile, err := f.service.LoadUser(context.Background())
		require.Nil(t, profile)
		require.ErrorIs(t, err, autherrors.ErrNoSession)
		require.Empty(t, f.nav.Paths())
	})

	t.Run("existing session loads profile", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.SignIn(context.Background(), testEmail, testPassword)
		require.NoError(t, err)

		// a fresh holder over the same cookies, as on a new page load
		reloaded := f.reload()
		require.False(t, reloaded.IsAuthenticated())

		profile, err := reloaded.LoadUser(context.Background())
		require.NoError(t, err)
		require.Equal(t, testEmail, profile.Email)
		require.True(t, reloaded.IsAuthenticated())
	})

	t.Run("expired token refreshes silently", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.SignIn(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		f.api.ExpireTokens()

		profile, err := f.reload().LoadUser(context.Background())
		require.NoError(t, err)
		require.Equal(t, testEmail, profile.Email)
		require.Equal(t, 1, f.api.RefreshCalls())
	})

	t.Run("failed fetch signs out", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.SignIn(context.Background(), testEmail, testPassword)
		require.NoError(t, err)
		f.api.ExpireTokens()
		f.api.FailRefresh(true)

		profile, err := f.service.LoadUser(context.Background())
		require.Nil(t, profile)
		require.ErrorIs(t, err, autherrors.ErrRefreshFailed)

		_, ok := cookies.LoadSession(f.store)
		require.False(t, ok)
		require.False(t, f.service.IsAuthenticated())
		require.Equal(t, auth.EntryPath, f.nav.Paths()[len(f.nav.Paths())-1])
	})
}
