package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/auth"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/validation"
	"github.com/rs/zerolog/log"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgLoginFailed        = "Login failed, please try again"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName string
	Error   string
	Email   string // Preserve email on error
}

// LoginPageHandler displays the login page (GET /)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := LoginPageData{
			AppName: s.config.GetAppName(),
			Error:   r.URL.Query().Get("error"),
			Email:   r.URL.Query().Get("email"),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.loginTmpl.Execute(w, data); err != nil {
			log.Ctx(r.Context()).Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// LoginSubmissionHandler processes the login form submission (POST /)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := auth.Credentials{
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
		if err := validation.Struct(creds); err != nil {
			redirectWithError(w, r, RouteEntry, err.Error(), creds.Email)
			return
		}

		sess := s.newRequestSession(w, r)
		defer sess.store.Close()
		if _, err := sess.auth.SignIn(r.Context(), creds.Email, creds.Password); err != nil {
			msg := msgLoginFailed
			if autherrors.Is(err, autherrors.ErrInvalidCredentials) {
				msg = msgInvalidCredentials
			} else {
				log.Ctx(r.Context()).Error().Err(err).Str("email", creds.Email).Msg("sign in failed")
			}
			redirectWithError(w, r, RouteEntry, msg, creds.Email)
			return
		}

		target := sess.nav.Target()
		if target == "" {
			target = RouteDashboard
		}
		redirectSuccess(w, r, target)
	}
}

// SignOutHandler clears the session cookies and returns to the entry page
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.newRequestSession(w, r)
		defer sess.store.Close()
		sess.auth.SignOut(r.Context())

		target := sess.nav.Target()
		if target == "" {
			target = RouteEntry
		}
		redirectSuccess(w, r, target)
	}
}
