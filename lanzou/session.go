package lanzou

import (
	"net/http"
	"strings"
	"sync"
)

// Session holds the cookies of one mirror attempt. Later values for a name
// replace earlier ones; the first-seen order of names is kept so the Cookie
// header is stable. A Session must not be shared between attempts.
type Session struct {
	mu     sync.RWMutex
	order  []string
	values map[string]string
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{values: make(map[string]string)}
}

// Set stores or replaces a cookie value
func (s *Session) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = value
}

// Get returns a cookie value and whether it exists
func (s *Session) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Len returns the number of cookies held
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Absorb merges cookies set by a response
func (s *Session) Absorb(cookies []*http.Cookie) {
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		s.Set(c.Name, c.Value)
	}
}

// Header renders the Cookie header value, "" when empty
func (s *Session) Header() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts := make([]string, 0, len(s.order))
	for _, name := range s.order {
		parts = append(parts, name+"="+s.values[name])
	}
	return strings.Join(parts, "; ")
}

// Apply writes the Cookie header into h when the session is non-empty
func (s *Session) Apply(h http.Header) http.Header {
	if s == nil {
		return h
	}
	if cookie := s.Header(); cookie != "" {
		h.Set("Cookie", cookie)
	}
	return h
}
