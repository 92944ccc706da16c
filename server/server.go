package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/server/ui"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	apiBaseURL string
	httpClient *http.Client
	cookieOpts cookies.Options

	loginTmpl     *template.Template
	dashboardTmpl *template.Template
}

type Option func(*Server)

// WithAPIBaseURL overrides the configured API location
func WithAPIBaseURL(url string) Option {
	return func(s *Server) {
		s.apiBaseURL = url
	}
}

// WithHTTPClient sets the client used for API calls
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		s.httpClient = hc
	}
}

func New(config config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		env:        config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     config,
		apiBaseURL: config.GetAPIBaseURL(),
		httpClient: &http.Client{Timeout: config.GetAPITimeout()},
		cookieOpts: cookies.Options{
			MaxAge:   config.GetCookieMaxAge(),
			Path:     config.GetCookiePath(),
			HTTPOnly: true,
			Secure:   config.GetCookieSecure(),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.loginTmpl, err = ParseTemplate("login.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse login template: %w", err)
	}
	if s.dashboardTmpl, err = ParseTemplate("dashboard.html"); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse dashboard template: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// requestSession is the per-request view of the browser session: its cookies,
// an API client over them and the state holder.
type requestSession struct {
	store  *cookies.RequestStore
	client *apiclient.Client
	auth   *auth.Service
	nav    *redirector
}

func (s *Server) newRequestSession(w http.ResponseWriter, r *http.Request) *requestSession {
	store := cookies.NewRequestStore(w, r)
	nav := &redirector{}
	cookieOpts := s.cookieOpts
	cookieOpts.Secure = cookieOpts.Secure || getScheme(r) == "https"

	svc := auth.NewSession(s.apiBaseURL, store, nav, cookieOpts,
		apiclient.WithHTTPClient(s.httpClient),
		apiclient.WithLogger(*log.Ctx(r.Context())),
	)
	return &requestSession{
		store:  store,
		client: svc.Client(),
		auth:   svc,
		nav:    nav,
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", displayMethod(method), path)
}

func displayMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := ui.MethodColors[method]; ok {
		return color + paddedMethod + ui.ResetColor
	}
	return ui.Gray + paddedMethod + ui.ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
