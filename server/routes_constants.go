package server

import "github.com/jrsteele09/go-auth-client/auth"

// Route path constants
const (
	// Pages
	RouteEntry     = auth.EntryPath
	RouteDashboard = auth.LandingPath
	RouteSignOut   = "/signout"

	// Monitoring
	RouteHealth = "/healthz"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)
