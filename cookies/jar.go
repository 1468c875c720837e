package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"sync"
)

// Jar is a Store backed by net/http/cookiejar and bound to one page URL, the
// way document.cookie is bound to the document.
type Jar struct {
	mu   sync.Mutex
	page *url.URL
	jar  http.CookieJar
}

// NewJar returns an empty jar for the page at pageURL.
func NewJar(pageURL string) (*Jar, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, fmt.Errorf("cookies: page url %q: %w", pageURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("cookies: page url %q has no host", pageURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	jar, _ := cookiejar.New(nil)
	return &Jar{page: u, jar: jar}, nil
}

// URL returns the page URL the jar is scoped to.
func (j *Jar) URL() *url.URL {
	u := *j.page
	return &u
}

// HTTPJar exposes the underlying jar for an http.Client, so requests made on
// behalf of the page carry its cookies.
func (j *Jar) HTTPJar() http.CookieJar { return j.jar }

// GetItem returns the unescaped value stored under key.
func (j *Jar) GetItem(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	name := escape(key)
	for _, c := range j.Cookies() {
		if c.Name == name {
			return unescape(c.Value), true
		}
	}
	return "", false
}

// HasItem reports whether key is present.
func (j *Jar) HasItem(key string) bool {
	_, ok := j.GetItem(key)
	return ok
}

// SetItem stores value under key. Reserved attribute names and empty keys are
// rejected with ErrInvalidKey.
func (j *Jar) SetItem(key, value string, exp Expiry, cookiePath, domain string, secure bool) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	c := &http.Cookie{
		Name:   escape(key),
		Value:  escape(value),
		Path:   cookiePath,
		Domain: domain,
		Secure: secure,
	}
	switch exp.kind {
	case expiryMaxAge:
		c.MaxAge = exp.maxAge
	case expiryUntil:
		c.Expires = exp.until
	case expiryRaw:
		if t, err := http.ParseTime(exp.raw); err == nil {
			c.Expires = t
		}
	}
	j.SetCookies([]*http.Cookie{c})
	return nil
}

// RemoveItem expires key at the root path and at the page's default path.
func (j *Jar) RemoveItem(key string) {
	if !j.HasItem(key) {
		return
	}
	name := escape(key)
	paths := []string{"/", defaultPath(j.page.Path)}
	expired := make([]*http.Cookie, 0, len(paths))
	for _, p := range paths {
		expired = append(expired, &http.Cookie{Name: name, Path: p, MaxAge: -1})
	}
	j.SetCookies(expired)
}

// Cookies returns the cookies visible to the page.
func (j *Jar) Cookies() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(j.page)
}

// SetCookies stores raw cookies as if the page had received them.
func (j *Jar) SetCookies(cs []*http.Cookie) {
	if len(cs) == 0 {
		return
	}
	j.mu.Lock()
	j.jar.SetCookies(j.page, cs)
	j.mu.Unlock()
}

// String renders the jar like document.cookie: "a=1; b=2".
func (j *Jar) String() string {
	cs := j.Cookies()
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// defaultPath follows RFC 6265 section 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	return path.Dir(p)
}

func escape(s string) string { return url.PathEscape(s) }

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}
