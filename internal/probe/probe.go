// Package probe loads a page in headless Chrome and reads back what the
// enhancement scripts would have seen: browser features, window metrics,
// navigation timing and cookies.
package probe

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"decadecity/beacon"
	"decadecity/cookies"
	"decadecity/dom"
	"decadecity/profile"
)

const defaultTimeout = 25 * time.Second

// Options describe the emulated device.
type Options struct {
	Width     int
	Height    int
	DPR       float64
	Mobile    bool
	Touch     bool
	UserAgent string
	// Slow throttles the network to roughly a 3G connection.
	Slow    bool
	Timeout time.Duration
	// Jar seeds the browser with cookies and receives the cookies it ends
	// up with.
	Jar *cookies.Jar
}

// Result is what one probe observed.
type Result struct {
	URL        string
	Status     int
	Features   profile.Features
	Window     dom.Window
	Navigation *beacon.Navigation
	Marks      beacon.Marks
	HTML       string
	Cookies    []*http.Cookie
}

// Document parses the rendered HTML with the observed window metrics.
func (r *Result) Document() (*dom.Document, error) {
	doc, err := dom.ParseString(r.HTML, r.URL)
	if err != nil {
		return nil, err
	}
	doc.Window = r.Window
	return doc, nil
}

// Prober owns a browser allocator shared by successive probes.
type Prober struct {
	allocator context.Context
	cancel    context.CancelFunc
	logger    *log.Logger
}

func New(logger *log.Logger) *Prober {
	if logger == nil {
		logger = log.Default()
	}
	// Every probe starts from an empty cache so load timings are comparable.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disk-cache-size", "1"),
		chromedp.Flag("incognito", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Prober{allocator: allocCtx, cancel: cancel, logger: logger}
}

func (p *Prober) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Probe navigates to target under opts and waits for the load event.
func (p *Prober) Probe(ctx context.Context, target string, opts Options) (*Result, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("probe: empty target url")
	}
	taskCtx, cancelBrowser := chromedp.NewContext(p.allocator)
	defer cancelBrowser()

	if ctx != nil {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithCancel(taskCtx)
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-taskCtx.Done():
			}
		}()
		defer cancel()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, timeout)
	defer cancelTimeout()

	res := &Result{URL: target}
	var mu sync.Mutex
	var mainRequestID network.RequestID
	status := 0
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Type == network.ResourceTypeDocument && mainRequestID == "" {
				mainRequestID = e.RequestID
			}
		case *network.EventResponseReceived:
			if e.RequestID == mainRequestID && e.Response != nil {
				status = int(e.Response.Status)
			}
		}
	})

	actions := []chromedp.Action{network.Enable()}
	actions = append(actions, emulate(opts)...)
	if params := cookieParams(opts.Jar, target); len(params) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookies(params).Do(ctx)
		}))
	}
	var browserCookies []*network.Cookie
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitComplete(),
		chromedp.Evaluate(featuresJS, &res.Features),
		chromedp.Evaluate(timingJS, &res.Navigation),
		chromedp.Evaluate(marksJS, &res.Marks),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var w windowMetrics
			if err := chromedp.Evaluate(windowJS, &w).Do(ctx); err != nil {
				return err
			}
			res.Window = w.window()
			return nil
		}),
		chromedp.Location(&res.URL),
		chromedp.OuterHTML("html", &res.HTML, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			browserCookies, err = network.GetCookies().WithUrls([]string{res.URL}).Do(ctx)
			return err
		}),
	)
	start := time.Now()
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("probe: %s: %w", target, err)
	}
	mu.Lock()
	res.Status = status
	mu.Unlock()
	for _, c := range browserCookies {
		if hc := jarCookie(c); hc != nil {
			res.Cookies = append(res.Cookies, hc)
		}
	}
	if opts.Jar != nil && len(res.Cookies) > 0 {
		opts.Jar.SetCookies(res.Cookies)
	}
	p.logger.Printf("PROBE %s status=%d cookies=%d in %s", res.URL, res.Status, len(res.Cookies), time.Since(start).Round(time.Millisecond))
	return res, nil
}

func emulate(opts Options) []chromedp.Action {
	var actions []chromedp.Action
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		actions = append(actions, emulation.SetUserAgentOverride(ua))
	}
	if opts.Width > 0 && opts.Height > 0 {
		dpr := opts.DPR
		if dpr <= 0 {
			dpr = 1
		}
		actions = append(actions, emulation.SetDeviceMetricsOverride(int64(opts.Width), int64(opts.Height), dpr, opts.Mobile))
	}
	if opts.Touch {
		actions = append(actions, emulation.SetTouchEmulationEnabled(true).WithMaxTouchPoints(5))
	}
	if opts.Slow {
		// 400ms latency, 50KB/s down, 20KB/s up.
		actions = append(actions, network.EmulateNetworkConditions(false, 400, 50*1024, 20*1024))
	}
	return actions
}

// waitComplete polls until the load event has fired.
func waitComplete() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			var done bool
			if err := chromedp.Evaluate(readyJS, &done).Do(ctx); err != nil {
				return err
			}
			if done {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}

// cookieParams seeds the browser with the jar's cookies for target. The jar
// only reports name and value, so every cookie is scoped to the target host.
func cookieParams(jar *cookies.Jar, target string) []*network.CookieParam {
	if jar == nil {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	var params []*network.CookieParam
	for _, c := range jar.Cookies() {
		params = append(params, &network.CookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: u.Hostname(),
			Path:   "/",
			Secure: u.Scheme == "https",
		})
	}
	return params
}

// jarCookie converts a cookie read back from the browser for the jar.
// Chrome reports expiry in fractional seconds.
func jarCookie(c *network.Cookie) *http.Cookie {
	if c == nil {
		return nil
	}
	hc := &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain, Secure: c.Secure, HttpOnly: c.HTTPOnly}
	if !c.Session && c.Expires > 0 {
		hc.Expires = time.UnixMilli(int64(math.Round(c.Expires * 1000))).UTC()
	}
	return hc
}
