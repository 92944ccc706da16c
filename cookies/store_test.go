package cookies_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/cookies"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRequestStore_ReadsIncomingCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookies.TokenCookie, Value: "t1"})
	store := cookies.NewRequestStore(httptest.NewRecorder(), r)

	v, ok := store.Get(cookies.TokenCookie)
	require.True(t, ok)
	require.Equal(t, "t1", v)

	_, ok = store.Get(cookies.RefreshTokenCookie)
	require.False(t, ok)
}

func TestRequestStore_SetOverlaysAndWritesHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookies.TokenCookie, Value: "old"})
	rec := httptest.NewRecorder()
	store := cookies.NewRequestStore(rec, r)

	store.Set(cookies.TokenCookie, "new", cookies.DefaultOptions())

	v, ok := store.Get(cookies.TokenCookie)
	require.True(t, ok)
	require.Equal(t, "new", v)

	c := findCookie(t, rec, cookies.TokenCookie)
	require.NotNil(t, c)
	require.Equal(t, "new", c.Value)
	require.Equal(t, "/", c.Path)
	require.Equal(t, 60*60*24*30, c.MaxAge)
}

func TestRequestStore_Destroy(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: cookies.TokenCookie, Value: "t1"})
	rec := httptest.NewRecorder()
	store := cookies.NewRequestStore(rec, r)

	store.Destroy(cookies.TokenCookie)

	_, ok := store.Get(cookies.TokenCookie)
	require.False(t, ok)

	c := findCookie(t, rec, cookies.TokenCookie)
	require.NotNil(t, c)
	require.Equal(t, -1, c.MaxAge)
}

func TestRequestStore_CloseStopsHeaderWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	store := cookies.NewRequestStore(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	store.Close()

	store.Set(cookies.TokenCookie, "late", cookies.DefaultOptions())

	v, ok := store.Get(cookies.TokenCookie)
	require.True(t, ok)
	require.Equal(t, "late", v)
	require.Nil(t, findCookie(t, rec, cookies.TokenCookie))
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cookies.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { cookies.NowTimeFunc = time.Now })

	store := cookies.NewMemoryStore()
	store.Set("a", "1", cookies.Options{MaxAge: time.Hour, Path: "/"})

	v, ok := store.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	expiresAt, ok := store.ExpiresAt("a")
	require.True(t, ok)
	require.Equal(t, now.Add(time.Hour), expiresAt)

	now = now.Add(2 * time.Hour)
	_, ok = store.Get("a")
	require.False(t, ok)
}

func TestSession_SaveLoadClear(t *testing.T) {
	store := cookies.NewMemoryStore()

	err := cookies.SaveSession(store, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}, cookies.DefaultOptions())
	require.NoError(t, err)

	tok, ok := cookies.LoadSession(store)
	require.True(t, ok)
	require.Equal(t, "a1", tok.AccessToken)
	require.Equal(t, "r1", tok.RefreshToken)

	accessExpiry, _ := store.ExpiresAt(cookies.TokenCookie)
	refreshExpiry, _ := store.ExpiresAt(cookies.RefreshTokenCookie)
	require.WithinDuration(t, time.Now().Add(30*24*time.Hour), accessExpiry, time.Minute)
	require.Equal(t, accessExpiry, refreshExpiry)

	cookies.ClearSession(store)
	_, ok = cookies.LoadSession(store)
	require.False(t, ok)

	// idempotent
	cookies.ClearSession(store)
}

func TestSession_BothCookiesShareOneExpiry(t *testing.T) {
	start := time.Now()
	calls := 0
	cookies.NowTimeFunc = func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * time.Millisecond)
	}
	t.Cleanup(func() { cookies.NowTimeFunc = time.Now })

	store := cookies.NewMemoryStore()
	tok := &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}
	require.NoError(t, cookies.SaveSession(store, tok, cookies.DefaultOptions()))

	accessExpiry, ok := store.ExpiresAt(cookies.TokenCookie)
	require.True(t, ok)
	refreshExpiry, ok := store.ExpiresAt(cookies.RefreshTokenCookie)
	require.True(t, ok)
	require.Equal(t, accessExpiry, refreshExpiry)
	require.Equal(t, accessExpiry, tok.Expiry)
}

func TestRequestStore_WritesExpires(t *testing.T) {
	rec := httptest.NewRecorder()
	store := cookies.NewRequestStore(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, cookies.SaveSession(store, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}, cookies.DefaultOptions()))

	access := findCookie(t, rec, cookies.TokenCookie)
	refresh := findCookie(t, rec, cookies.RefreshTokenCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	require.False(t, access.Expires.IsZero())
	require.Equal(t, access.Expires, refresh.Expires)
}

func TestSession_RejectsPartialPair(t *testing.T) {
	store := cookies.NewMemoryStore()

	err := cookies.SaveSession(store, &oauth2.Token{AccessToken: "a1"}, cookies.DefaultOptions())
	require.ErrorIs(t, err, autherrors.ErrPartialSession)

	_, ok := store.Get(cookies.TokenCookie)
	require.False(t, ok)

	store.Set(cookies.TokenCookie, "lonely", cookies.DefaultOptions())
	_, ok = cookies.LoadSession(store)
	require.False(t, ok)
}
