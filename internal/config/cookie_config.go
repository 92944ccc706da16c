package config

import (
	"strconv"
	"time"
)

const cookieSecureVar = "COOKIE_SECURE"

// CookieConfig is the persistence policy shared by both session cookies
type CookieConfig interface {
	GetCookieMaxAge() time.Duration
	GetCookiePath() string
	GetCookieSecure() bool
}

type Cookies struct{}

var _ CookieConfig = Cookies{}

func (Cookies) GetCookieMaxAge() time.Duration {
	return 30 * 24 * time.Hour // 30 days
}

func (Cookies) GetCookiePath() string {
	return "/"
}

func (Cookies) GetCookieSecure() bool {
	secure, err := strconv.ParseBool(GetEnv(cookieSecureVar, "false"))
	if err != nil {
		return false
	}
	return secure
}
