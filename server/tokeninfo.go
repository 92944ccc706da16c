package server

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// TokenInfo is what the dashboard shows about the current access token
type TokenInfo struct {
	Subject   string
	Roles     []string
	ExpiresAt time.Time
}

// ExpiresIn is the time left before expiry, zero once expired
func (t TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() || !now.Before(t.ExpiresAt) {
		return 0
	}
	return t.ExpiresAt.Sub(now).Round(time.Second)
}

// readTokenInfo decodes the access token claims without verifying the
// signature. The API is the authority on validity; this is display only.
func readTokenInfo(token string) (TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, err
	}

	info := TokenInfo{}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	info.Roles = utils.ToStringSlice(claims["roles"])
	return info, nil
}
