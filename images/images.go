// Package images swaps page images for variants that suit the viewing
// environment: a size variant for responsive images and an SVG variant where
// the browser can render one.
package images

import (
	"context"
	"log"
	"math"

	"decadecity/cookies"
	"decadecity/dom"
)

// Marker classes and the cookie the chosen suffix is published under.
const (
	ResponsiveClass = "responsive"
	SVGClass        = "svg-replace"
	SuffixCookie    = "image_suffix"
)

// Capabilities is the part of the environment profile the images module reads.
type Capabilities interface {
	SupportsSVG() bool
	LoadSpeed() string
}

// suffixRecorder is implemented by profiles that keep the chosen suffix.
type suffixRecorder interface {
	RecordImageSuffix(suffix string)
}

// Loader fetches an image so that a later request for the same URL is served
// without delay. Load blocks until the image has loaded or failed.
type Loader interface {
	Load(ctx context.Context, src string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) error

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, src string) error { return f(ctx, src) }

// Config wires the module to its collaborators.
type Config struct {
	// Bucket selects the S3 images folder; empty means DefaultBucket.
	Bucket string
	// Prefix overrides the protocol-relative image base derived from Bucket.
	Prefix string
	// Store receives the chosen suffix. Nil disables persistence.
	Store cookies.Store
	// Profile reports SVG support and load speed. Nil means neither.
	Profile Capabilities
	// Loader preloads replacement images. Nil loads instantly.
	Loader Loader
	Logger *log.Logger
}

// Images runs image replacement for one page view.
type Images struct {
	rewriter Rewriter
	session  *Session
	store    cookies.Store
	profile  Capabilities
	loader   Loader
	logger   *log.Logger
}

// New returns a module with a fresh Session.
func New(cfg Config) *Images {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Loader == nil {
		cfg.Loader = LoaderFunc(func(context.Context, string) error { return nil })
	}
	rw := NewRewriter(cfg.Bucket)
	if cfg.Prefix != "" {
		rw = Rewriter{Prefix: cfg.Prefix}
	}
	return &Images{
		rewriter: rw,
		session:  NewSession(),
		store:    cfg.Store,
		profile:  cfg.Profile,
		loader:   cfg.Loader,
		logger:   cfg.Logger,
	}
}

// Session exposes the suffix latch for inspection and resets.
func (m *Images) Session() *Session { return m.session }

// Rewriter exposes the URL rewriter.
func (m *Images) Rewriter() Rewriter { return m.rewriter }

// Ready chooses the suffix for the page view (once) and runs both
// replacement passes. Fields left zero in override are taken from the
// document window, and an empty speed from the profile; pass nil to use the
// environment for everything.
//
// Preloads started here finish asynchronously; call doc.Settle to apply them.
func (m *Images) Ready(ctx context.Context, doc *dom.Document, override *Viewport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.SelectSuffix(m.viewport(doc, override))
	m.ReplaceResponsive(ctx, doc)
	m.ReplaceSVG(doc)
	return nil
}

func (m *Images) viewport(doc *dom.Document, override *Viewport) Viewport {
	var v Viewport
	if override != nil {
		v = *override
	}
	if unset(v.Width) {
		v.Width = float64(doc.Window.ClientWidth)
	}
	if unset(v.Height) {
		v.Height = float64(doc.Window.ClientHeight)
	}
	if unset(v.PixelDensity) {
		// Truncated like the browser scripts did: a 1.5x screen counts as 1x.
		v.PixelDensity = float64(int(doc.Window.DevicePixelRatio))
	}
	if v.Speed == "" && m.profile != nil {
		v.Speed = m.profile.LoadSpeed()
	}
	return v
}

func unset(f float64) bool { return f == 0 || math.IsNaN(f) }

// SelectSuffix latches the suffix for v unless one has already been chosen
// and returns the suffix in effect.
func (m *Images) SelectSuffix(v Viewport) Suffix {
	if !m.session.latch(v.Suffix()) {
		return m.session.Suffix()
	}
	suffix := m.session.Suffix()
	if rec, ok := m.profile.(suffixRecorder); ok {
		rec.RecordImageSuffix(string(suffix))
	}
	if m.store != nil {
		if err := m.store.SetItem(SuffixCookie, string(suffix), cookies.Session(), "/", "", false); err != nil {
			m.logger.Printf("IMG suffix persist failed: %v", err)
		}
	}
	return suffix
}

// ReplaceSVG points every img.svg-replace at its SVG variant and drops the
// marker, provided the profile reports SVG support. It returns the number of
// images changed.
func (m *Images) ReplaceSVG(doc *dom.Document) int {
	if m.profile == nil || !m.profile.SupportsSVG() {
		return 0
	}
	nodes := doc.QueryAll("img." + SVGClass)
	for _, n := range nodes {
		dom.SetAttr(n, "src", SVGVariant(dom.GetAttr(n, "src")))
		dom.RemoveClass(n, SVGClass)
	}
	return len(nodes)
}
