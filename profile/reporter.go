package profile

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"decadecity/cookies"
)

// Reporter sends the profile to the site once per browsing session.
type Reporter struct {
	// Endpoint is the profiler URL; relative URLs resolve against PageURL.
	Endpoint string
	PageURL  string
	// Debug suppresses sending entirely.
	Debug  bool
	Client *http.Client
	// Cookies and Session hold the profile cookie and the "already sent" mark.
	// Session is preferred when supported.
	Cookies cookies.Store
	Session *cookies.SessionStorage
	// Delay postpones the send so it does not compete with page load.
	Delay  time.Duration
	Logger *log.Logger
}

// Send saves p, then requests Endpoint with the profile as query parameters
// unless it was already sent this session. force sends regardless. It
// reports whether a request was made.
func (r *Reporter) Send(ctx context.Context, p *Profile, force bool) (bool, error) {
	if r.Debug || p == nil {
		return false, nil
	}
	if r.Delay > 0 {
		t := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	p.SessionStorage = r.Session.Supported()
	if err := p.Save(r.Cookies); err != nil {
		logger.Printf("PROFILE %v", err)
	}
	marks := r.marks()
	if marks != nil && marks.HasItem(SentKey) && !force {
		return false, nil
	}
	target, err := r.target(p)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("profile: request: %w", err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("profile: send: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	logger.Printf("PROFILE sent %s status=%d", target, resp.StatusCode)
	if marks != nil {
		if err := marks.SetItem(SentKey, "1", cookies.Session(), "/", "", false); err != nil {
			logger.Printf("PROFILE mark sent: %v", err)
		}
	}
	return true, nil
}

func (r *Reporter) marks() cookies.Store {
	if r.Session.Supported() {
		return r.Session
	}
	return r.Cookies
}

func (r *Reporter) target(p *Profile) (string, error) {
	endpoint := strings.TrimSpace(r.Endpoint)
	if endpoint == "" {
		endpoint = DefaultPath
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("profile: endpoint %q: %w", endpoint, err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(r.PageURL)
		if err != nil || base.Host == "" {
			return "", fmt.Errorf("profile: cannot resolve %q without a page url", endpoint)
		}
		u = base.ResolveReference(u)
	}
	u.RawQuery = p.Query().Encode()
	return u.String(), nil
}
