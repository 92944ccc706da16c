package server

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
)

// redirector records where the auth service wants the browser to go. The
// handler turns the last recorded target into a redirect response.
type redirector struct {
	mu     sync.Mutex
	target string
}

func (n *redirector) Push(ctx context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	log.Ctx(ctx).Debug().Str("target", path).Msg("navigate")
	n.target = path
}

// Target returns the last pushed path, empty when nothing navigated
func (n *redirector) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects. The email is
// carried along so the form can be refilled.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg, email string) {
	q := url.Values{}
	q.Set("error", errorMsg)
	if email != "" {
		q.Set("email", email)
	}
	fullPath := path + "?" + q.Encode()

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
