package fetch

import (
	"context"
	"fmt"
	"net/http"

	"decadecity/dom"
)

// Document fetches pageURL and parses it. Non-200 responses are still parsed
// when they carry a body; the final URL after redirects becomes the base.
func Document(ctx context.Context, client *http.Client, pageURL string, hdr http.Header) (*dom.Document, error) {
	if client == nil {
		client = NewClient(Options{})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: request %s: %w", pageURL, err)
	}
	setDefaultHeaders(req, hdr, "text/html,application/xhtml+xml,*/*;q=0.8")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: get %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	body, done, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch: decode %s: %w", pageURL, err)
	}
	defer done()
	base := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}
	doc, err := dom.Parse(body, base)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse %s: %w", pageURL, err)
	}
	doc.Window.Href = base
	doc.Window.Referrer = hdr.Get("Referer")
	return doc, nil
}
