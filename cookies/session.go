package cookies

import (
	"fmt"
	"sync"
)

// SessionStorage is an in-memory Store with sessionStorage semantics: items
// never expire on their own and path, domain and secure are ignored.
type SessionStorage struct {
	mu        sync.RWMutex
	data      map[string]string
	supported bool
}

// NewSessionStorage returns storage that reports itself as supported.
func NewSessionStorage() *SessionStorage {
	return &SessionStorage{data: make(map[string]string), supported: true}
}

// UnsupportedSessionStorage returns storage for environments without
// sessionStorage. Callers are expected to fall back to cookies.
func UnsupportedSessionStorage() *SessionStorage {
	return &SessionStorage{data: make(map[string]string)}
}

// Supported reports whether the environment offers session storage.
func (s *SessionStorage) Supported() bool { return s != nil && s.supported }

func (s *SessionStorage) GetItem(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *SessionStorage) HasItem(key string) bool {
	_, ok := s.GetItem(key)
	return ok
}

func (s *SessionStorage) SetItem(key, value string, _ Expiry, _, _ string, _ bool) error {
	if key == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *SessionStorage) RemoveItem(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Preferred returns session storage when it is supported and the cookie jar
// otherwise.
func Preferred(session *SessionStorage, jar Store) Store {
	if session.Supported() {
		return session
	}
	return jar
}
