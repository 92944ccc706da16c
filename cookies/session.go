package cookies

import (
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/oauth2"
)

// SaveSession persists both tokens with identical options. The expiry is fixed
// once so both cookies lapse at the same instant, and is copied onto the token.
func SaveSession(store Store, tok *oauth2.Token, opts Options) error {
	if tok == nil || tok.AccessToken == "" || tok.RefreshToken == "" {
		return autherrors.ErrPartialSession
	}

	if opts.Expires.IsZero() && opts.MaxAge > 0 {
		opts.Expires = NowTimeFunc().Add(opts.MaxAge)
	}
	store.Set(TokenCookie, tok.AccessToken, opts)
	store.Set(RefreshTokenCookie, tok.RefreshToken, opts)
	tok.Expiry = opts.Expires
	return nil
}

// LoadSession returns the stored token pair. A lone access or refresh token is
// not a session.
func LoadSession(store Store) (*oauth2.Token, bool) {
	access, ok := store.Get(TokenCookie)
	if !ok {
		return nil, false
	}
	refresh, ok := store.Get(RefreshTokenCookie)
	if !ok {
		return nil, false
	}
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}, true
}

// AccessToken returns the access token cookie on its own
func AccessToken(store Store) (string, bool) {
	return store.Get(TokenCookie)
}

// RefreshToken returns the refresh token cookie on its own
func RefreshToken(store Store) (string, bool) {
	return store.Get(RefreshTokenCookie)
}

// ClearSession destroys both token cookies. Safe to call without a session.
func ClearSession(store Store) {
	store.Destroy(TokenCookie)
	store.Destroy(RefreshTokenCookie)
}
