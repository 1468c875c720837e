// Package beacon collects page-load timings and reports them to a tracking
// URL as query parameters.
package beacon

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"decadecity/cookies"
	"decadecity/dom"
)

// NavigationStartKey is where the unload time is kept for the next page when
// the timing API is unavailable.
const NavigationStartKey = "t_navigation_start"

// DefaultDelay is how long Send waits before reporting.
const DefaultDelay = 500 * time.Millisecond

type Config struct {
	// URL is the beacon endpoint. Nothing is sent when it is empty.
	URL     string
	Delay   time.Duration
	Client  *http.Client
	Cookies cookies.Store
	Session *cookies.SessionStorage
	Clock   func() time.Time
	Logger  *log.Logger
}

// Beacon is the variable register plus the send logic.
type Beacon struct {
	cfg Config

	mu       sync.Mutex
	vars     map[string]string
	domReady int64
}

func New(cfg Config) *Beacon {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Beacon{cfg: cfg, vars: make(map[string]string)}
}

// AddVar sets a single variable, replacing any previous value.
func (b *Beacon) AddVar(name string, value any) {
	b.mu.Lock()
	b.vars[name] = formatValue(value)
	b.mu.Unlock()
}

// AddVars merges vars into the register.
func (b *Beacon) AddVars(vars map[string]any) {
	b.mu.Lock()
	for k, v := range vars {
		b.vars[k] = formatValue(v)
	}
	b.mu.Unlock()
}

// Vars returns a copy of the register.
func (b *Beacon) Vars() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.vars))
	for k, v := range b.vars {
		out[k] = v
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// Init records what is known about the page at DOM-ready, including the
// DOM-ready time itself for browsers without navigation timing.
func (b *Beacon) Init(doc *dom.Document) {
	b.mu.Lock()
	b.domReady = b.cfg.Clock().UnixMilli()
	b.mu.Unlock()
	w := doc.Window
	b.AddVars(map[string]any{
		"noscript": 0,
		"r":        w.Referrer,
		"u":        w.Href,
		"b_height": w.ClientHeight,
		"b_width":  w.ClientWidth,
	})
}

// Finish computes the timing variables and adds them to the register. When
// the timing API is unavailable the navigation start left by the previous
// page is read back from storage.
func (b *Beacon) Finish(t Timing) {
	if t.Now == 0 {
		t.Now = b.cfg.Clock().UnixMilli()
	}
	if store := b.store(); t.Navigation == nil && t.NavigationStart == 0 && store != nil {
		if v, ok := store.GetItem(NavigationStartKey); ok {
			t.NavigationStart = parseMillis(v)
		}
	}
	if t.Navigation == nil && t.Marks.DOMReady == 0 {
		b.mu.Lock()
		t.Marks.DOMReady = b.domReady
		b.mu.Unlock()
	}
	t.Prepare()
	vars := make(map[string]any)
	for k, v := range Compute(t) {
		vars[k] = v
	}
	b.AddVars(vars)
}

// RecordNavigationStart stores the time the page is being left so the next
// page can work out how long it took to arrive.
func (b *Beacon) RecordNavigationStart() error {
	now := strconv.FormatInt(b.cfg.Clock().UnixMilli(), 10)
	store := b.store()
	if store == nil {
		return nil
	}
	if err := store.SetItem(NavigationStartKey, now, cookies.Session(), "/", "", false); err != nil {
		return fmt.Errorf("beacon: record navigation start: %w", err)
	}
	return nil
}

func (b *Beacon) store() cookies.Store {
	if b.cfg.Session.Supported() {
		return b.cfg.Session
	}
	if b.cfg.Cookies == nil {
		return nil
	}
	return b.cfg.Cookies
}

// URL builds the beacon request URL, or "" when no endpoint is configured.
// Keys are sorted so the same register always yields the same URL.
func (b *Beacon) URL() string {
	if b.cfg.URL == "" {
		return ""
	}
	vars := b.Vars()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, 0, len(keys))
	for _, k := range keys {
		params = append(params, k+"="+encodeURIComponent(vars[k]))
	}
	sep := "?"
	if strings.Contains(b.cfg.URL, "?") {
		sep = "&"
	}
	return b.cfg.URL + sep + strings.Join(params, "&")
}

// Send waits for the configured delay, then requests the beacon URL. It
// reports whether a request was made.
func (b *Beacon) Send(ctx context.Context) (bool, error) {
	target := b.URL()
	if target == "" {
		return false, nil
	}
	t := time.NewTimer(b.cfg.Delay)
	select {
	case <-ctx.Done():
		t.Stop()
		return false, ctx.Err()
	case <-t.C:
	}
	// The register may have grown while waiting.
	target = b.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("beacon: request: %w", err)
	}
	resp, err := b.cfg.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("beacon: send: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	b.cfg.Logger.Printf("BEACON %s status=%d", target, resp.StatusCode)
	return true, nil
}

// encodeURIComponent escapes like the browser function of the same name.
func encodeURIComponent(s string) string {
	var sb strings.Builder
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&15])
	}
	return sb.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
