package cookies

import (
	"net/http"
	"sync"
)

var _ Store = (*RequestStore)(nil)

// RequestStore is bound to a single HTTP request/response pair. Reads see the
// incoming cookies overlaid with anything written during the request.
type RequestStore struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	r       *http.Request
	written map[string]*string // nil value means destroyed
	closed  bool
}

// NewRequestStore creates a store for the given request.
func NewRequestStore(w http.ResponseWriter, r *http.Request) *RequestStore {
	return &RequestStore{
		w:       w,
		r:       r,
		written: make(map[string]*string),
	}
}

func (s *RequestStore) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.written[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *RequestStore) Set(name, value string, opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written[name] = &value
	if s.closed {
		return
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		MaxAge:   int(opts.MaxAge.Seconds()),
		Expires:  opts.Expires,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Destroy expires the cookie in the browser. Path "/" matches where Set writes it.
func (s *RequestStore) Destroy(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written[name] = nil
	if s.closed {
		return
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// Close stops writes from reaching the response. Call it before the handler
// returns; a refresh still running for an abandoned request must not touch
// the finished response.
func (s *RequestStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
