// Package cookies provides the string-keyed persistence the page scripts
// share: a cookie jar scoped to the site origin and an in-memory session
// storage.
package cookies

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidKey is returned for empty keys and for keys that collide with
// cookie attribute names.
var ErrInvalidKey = errors.New("cookies: invalid key")

// Store is a string key/value store.
type Store interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string, exp Expiry, path, domain string, secure bool) error
	HasItem(key string) bool
	RemoveItem(key string)
}

type expiryKind uint8

const (
	expirySession expiryKind = iota
	expiryMaxAge
	expiryUntil
	expiryRaw
)

// Expiry describes when a stored item lapses.
type Expiry struct {
	kind   expiryKind
	maxAge int
	until  time.Time
	raw    string
}

// Session items live until the browsing session ends.
func Session() Expiry { return Expiry{} }

// MaxAge expires the item seconds from now. Non-positive values mean session.
func MaxAge(seconds int) Expiry {
	if seconds <= 0 {
		return Session()
	}
	return Expiry{kind: expiryMaxAge, maxAge: seconds}
}

// Until expires the item at t. A zero time means session.
func Until(t time.Time) Expiry {
	if t.IsZero() {
		return Session()
	}
	return Expiry{kind: expiryUntil, until: t}
}

// ExpiresAt takes an HTTP date string as the expiry. Empty means session.
func ExpiresAt(date string) Expiry {
	date = strings.TrimSpace(date)
	if date == "" {
		return Session()
	}
	return Expiry{kind: expiryRaw, raw: date}
}

// IsSession reports whether the expiry is session-only.
func (e Expiry) IsSession() bool { return e.kind == expirySession }

// Attribute renders the expiry as a cookie attribute ("; max-age=60"), or ""
// for session items.
func (e Expiry) Attribute() string {
	switch e.kind {
	case expiryMaxAge:
		return "; max-age=" + strconv.Itoa(e.maxAge)
	case expiryUntil:
		return "; expires=" + e.until.UTC().Format(http.TimeFormat)
	case expiryRaw:
		return "; expires=" + e.raw
	}
	return ""
}

var reservedKeys = map[string]struct{}{
	"expires": {},
	"max-age": {},
	"path":    {},
	"domain":  {},
	"secure":  {},
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	_, reserved := reservedKeys[key]
	return !reserved
}
