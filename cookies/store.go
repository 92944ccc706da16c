// Package cookies reads and writes the browser cookies that carry the session.
package cookies

import (
	"time"
)

const (
	// TokenCookie holds the access token sent as the bearer credential
	TokenCookie = "auth.token"
	// RefreshTokenCookie holds the token exchanged for a new pair
	RefreshTokenCookie = "auth.refreshToken"
)

// Options controls how a cookie is persisted
type Options struct {
	MaxAge   time.Duration
	Expires  time.Time // absolute expiry, wins over MaxAge when set
	Path     string
	HTTPOnly bool
	Secure   bool
}

// DefaultOptions is the policy applied to both session cookies: 30 days on path "/".
func DefaultOptions() Options {
	return Options{
		MaxAge:   30 * 24 * time.Hour,
		Path:     "/",
		HTTPOnly: true,
	}
}

// Store is a key/value view over named cookies.
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string, opts Options)
	Destroy(name string)
}
