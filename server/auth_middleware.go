package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/rs/zerolog/log"
)

// RequireGuest sends visitors that already hold an access token cookie to the dashboard
func (s *Server) RequireGuest() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(cookies.TokenCookie); err == nil && c.Value != "" {
				redirectSuccess(w, r, RouteDashboard)
				return
			}
			next(w, r)
		}
	}
}

// RequireSession sends visitors without both token cookies to the entry page.
// The tokens themselves are checked by the API, not here.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			store := cookies.NewRequestStore(w, r)
			if _, ok := cookies.LoadSession(store); !ok {
				log.Ctx(r.Context()).Debug().Str("path", r.URL.Path).Msg("no session, redirecting")
				cookies.ClearSession(store)
				redirectSuccess(w, r, RouteEntry)
				return
			}
			next(w, r)
		}
	}
}
