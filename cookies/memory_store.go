package cookies

import (
	"sync"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var _ Store = (*MemoryStore)(nil)

type memoryCookie struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps cookies in process memory, honouring MaxAge.
type MemoryStore struct {
	mu      sync.RWMutex
	cookies map[string]memoryCookie
}

// NewMemoryStore creates an empty in-memory cookie store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cookies: make(map[string]memoryCookie),
	}
}

func (s *MemoryStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cookies[name]
	if !ok {
		return "", false
	}
	if !c.expiresAt.IsZero() && !NowTimeFunc().Before(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

func (s *MemoryStore) Set(name, value string, opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := opts.Expires
	if expiresAt.IsZero() && opts.MaxAge > 0 {
		expiresAt = NowTimeFunc().Add(opts.MaxAge)
	}
	s.cookies[name] = memoryCookie{value: value, expiresAt: expiresAt}
}

func (s *MemoryStore) Destroy(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cookies, name)
}

// ExpiresAt reports when a stored cookie lapses. Zero means session-only.
func (s *MemoryStore) ExpiresAt(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cookies[name]
	return c.expiresAt, ok
}
