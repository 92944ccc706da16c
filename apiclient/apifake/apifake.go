// Package apifake is an in-process stand-in for the auth API, used by tests and
// local development. It issues short HS256 tokens and lets callers force the
// 401 codes the client reacts to.
package apifake

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an account known to the fake API
type User struct {
	Email       string
	Password    string
	Permissions []string
	Roles       []string
}

type storedUser struct {
	User
	passwordHash []byte
}

// RecordedRequest is an authenticated call as seen by the fake API
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
}

type claims struct {
	Generation  int      `json:"gen"`
	Permissions []string `json:"permissions,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	jwtlib.RegisteredClaims
}

// API implements POST /sessions, GET /me, POST /refresh and echoes any other
// authenticated path.
type API struct {
	mu            sync.Mutex
	secret        []byte
	tokenTTL      time.Duration
	users         map[string]storedUser
	refreshTokens map[string]string // refresh token -> email
	generation    int
	expiredBelow  int
	deniedCode    string
	failRefresh   bool
	refreshGate   chan struct{}

	refreshCalls int
	unauthorized int
	requests     []RecordedRequest
}

// New creates an empty fake API
func New() *API {
	return &API{
		secret:        []byte(uuid.NewString()),
		tokenTTL:      15 * time.Minute,
		users:         make(map[string]storedUser),
		refreshTokens: make(map[string]string),
		generation:    1,
	}
}

// NewServer starts the fake API on a local listener
func NewServer(users ...User) (*API, *httptest.Server, error) {
	api := New()
	for _, u := range users {
		if err := api.AddUser(u); err != nil {
			return nil, nil, err
		}
	}
	return api, httptest.NewServer(api.Handler()), nil
}

// AddUser registers an account
func (a *API) AddUser(u User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[u.Email] = storedUser{User: u, passwordHash: hash}
	return nil
}

// ExpireTokens makes every access token issued so far answer token.expired
func (a *API) ExpireTokens() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expiredBelow = a.generation + 1
	a.generation++
}

// Deny makes every authenticated call answer 401 with code until Allow
func (a *API) Deny(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deniedCode = code
}

// Allow clears Deny
func (a *API) Allow() {
	a.Deny("")
}

// FailRefresh makes POST /refresh answer 401
func (a *API) FailRefresh(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failRefresh = fail
}

// HoldRefresh blocks POST /refresh until the returned release func is called
func (a *API) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.refreshGate = gate
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.refreshGate = nil
			a.mu.Unlock()
			close(gate)
		})
	}
}

// RefreshCalls is the number of POST /refresh calls received
func (a *API) RefreshCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshCalls
}

// Unauthorized is the number of 401 responses sent by authenticated routes
func (a *API) Unauthorized() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unauthorized
}

// Requests returns the authenticated calls in arrival order
func (a *API) Requests() []RecordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]RecordedRequest(nil), a.requests...)
}

// Handler returns the routes of the fake API
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", a.sessionsHandler)
	mux.HandleFunc("POST /refresh", a.refreshHandler)
	mux.HandleFunc("GET /me", a.authenticated(a.meHandler))
	mux.HandleFunc("/", a.authenticated(a.echoHandler))
	return mux
}

func (a *API) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body.")
		return
	}

	a.mu.Lock()
	user, ok := a.users[body.Email]
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(user.passwordHash, []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "", "E-mail or password incorrect.")
		return
	}

	token, refreshToken, err := a.issue(user.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        token,
		"refreshToken": refreshToken,
		"permissions":  user.Permissions,
		"roles":        user.Roles,
	})
}

func (a *API) refreshHandler(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.refreshCalls++
	gate := a.refreshGate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body.")
		return
	}

	a.mu.Lock()
	email, ok := a.refreshTokens[body.RefreshToken]
	user, known := a.users[email]
	fail := a.failRefresh
	if ok && !fail {
		delete(a.refreshTokens, body.RefreshToken)
	}
	a.mu.Unlock()

	if fail || !ok || !known {
		writeError(w, http.StatusUnauthorized, "refresh_token.invalid", "Refresh token is invalid.")
		return
	}

	token, refreshToken, err := a.issue(user.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":        token,
		"refreshToken": refreshToken,
	})
}

func (a *API) meHandler(w http.ResponseWriter, r *http.Request, email string) {
	a.mu.Lock()
	user, ok := a.users[email]
	a.mu.Unlock()
	if !ok {
		writeError(w, http.StatusBadRequest, "", "User not found.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":       user.Email,
		"permissions": user.Permissions,
		"roles":       user.Roles,
	})
}

func (a *API) echoHandler(w http.ResponseWriter, r *http.Request, email string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":  r.URL.Path,
		"email": email,
	})
}

func (a *API) authenticated(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := r.Header.Get("Authorization")

		a.mu.Lock()
		a.requests = append(a.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Authorization: authorization})
		a.mu.Unlock()

		email, code, message := a.verify(authorization)
		if code != "" {
			a.mu.Lock()
			a.unauthorized++
			a.mu.Unlock()
			writeError(w, http.StatusUnauthorized, code, message)
			return
		}
		next(w, r, email)
	}
}

// verify returns the token subject, or the 401 code and message
func (a *API) verify(authorization string) (string, string, string) {
	a.mu.Lock()
	denied := a.deniedCode
	expiredBelow := a.expiredBelow
	a.mu.Unlock()

	if denied != "" {
		return "", denied, "Access denied."
	}

	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", "token.invalid", "Token not present."
	}

	var c claims
	_, err := jwtlib.ParseWithClaims(parts[1], &c, func(*jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return "", "token.expired", "Token has expired."
	case err != nil:
		return "", "token.invalid", "Invalid token."
	case c.Generation < expiredBelow:
		return "", "token.expired", "Token has expired."
	}
	return c.Subject, "", ""
}

func (a *API) issue(user User) (string, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims{
		Generation:  a.generation,
		Permissions: user.Permissions,
		Roles:       user.Roles,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.Email,
			ID:        uuid.NewString(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}).SignedString(a.secret)
	if err != nil {
		return "", "", err
	}

	refreshToken := uuid.NewString()
	a.refreshTokens[refreshToken] = user.Email
	return signed, refreshToken, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]any{"error": true, "message": message}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}
