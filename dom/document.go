// Package dom models the page the site scripts operate on: a parsed HTML tree,
// the window metrics that went with it, document-level event listeners and a
// single-threaded task queue for asynchronous completions.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Window carries the viewport metrics a browser would expose to scripts.
type Window struct {
	ClientWidth      int
	ClientHeight     int
	DevicePixelRatio float64
	Href             string
	Referrer         string
}

// Document wraps a parsed HTML tree.
//
// A Document must only be mutated from one goroutine. Work that completes on
// other goroutines reaches the tree through Async, whose callbacks run inside
// Flush or Settle.
type Document struct {
	Root   *html.Node
	Window Window

	base *url.URL

	listeners map[string][]*listener
	nextID    int

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	pending int
}

type listener struct {
	id int
	fn func(Event)
}

// Parse reads HTML from r. base is used to resolve relative and
// protocol-relative URLs and may be empty.
func Parse(r io.Reader, base string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return New(root, base)
}

// ParseString is Parse for in-memory markup.
func ParseString(markup, base string) (*Document, error) {
	return Parse(strings.NewReader(markup), base)
}

// New wraps an already parsed tree.
func New(root *html.Node, base string) (*Document, error) {
	d := &Document{
		Root:      root,
		listeners: make(map[string][]*listener),
		wake:      make(chan struct{}, 1),
	}
	if base = strings.TrimSpace(base); base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("dom: base url %q: %w", base, err)
		}
		d.base = u
		d.Window.Href = u.String()
	}
	if href := findBaseHref(root); href != "" {
		if hu, err := url.Parse(href); err == nil {
			if d.base != nil {
				hu = d.base.ResolveReference(hu)
			}
			d.base = hu
		}
	}
	return d, nil
}

// findBaseHref returns the href of the first <base> element in <head>.
func findBaseHref(root *html.Node) string {
	head := FirstByTag(root, "head")
	if head == nil {
		return ""
	}
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "base") {
			if href := strings.TrimSpace(GetAttr(c, "href")); href != "" {
				return href
			}
		}
	}
	return ""
}

// HTML returns the <html> element.
func (d *Document) HTML() *html.Node { return FirstByTag(d.Root, "html") }

// Head returns the <head> element.
func (d *Document) Head() *html.Node { return FirstByTag(d.Root, "head") }

// Body returns the <body> element.
func (d *Document) Body() *html.Node { return FirstByTag(d.Root, "body") }

// QueryAll runs selector against the whole document.
func (d *Document) QueryAll(selector string) []*html.Node { return QueryAll(d.Root, selector) }

// Contains reports whether n is currently part of the document tree.
func (d *Document) Contains(n *html.Node) bool { return IsAttached(d.Root, n) }

// Resolve turns src into an absolute URL against the document base.
// Protocol-relative URLs take the base scheme, or https when there is none.
func (d *Document) Resolve(src string) string {
	src = strings.TrimSpace(src)
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	if d.base != nil {
		return d.base.ResolveReference(ref).String()
	}
	if ref.Scheme == "" && ref.Host != "" {
		ref.Scheme = "https"
	}
	return ref.String()
}

// Render serialises the document back to HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root)
}

// String renders the document, returning "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
