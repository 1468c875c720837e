package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"decadecity/cookies"
	"decadecity/core"
	"decadecity/dom"
	"decadecity/images"
	"decadecity/internal/fetch"
	"decadecity/internal/site"
	"decadecity/profile"
)

func main() {
	in := flag.String("in", "-", "HTML file, http(s) URL, or - for stdin")
	out := flag.String("out", "-", "output file, or - for stdout")
	pageURL := flag.String("url", "", "page URL for files and stdin (cookie scope and relative links)")
	width := flag.Int("width", 1024, "viewport width")
	height := flag.Int("height", 768, "viewport height")
	dpr := flag.Float64("dpr", 1, "device pixel ratio")
	speed := flag.String("speed", "fast", "connection speed: fast or slow")
	svg := flag.Bool("svg", true, "browser supports SVG")
	touch := flag.Bool("touch", false, "browser supports touch")
	bucket := flag.String("bucket", "", "S3 bucket holding the images")
	configPath := flag.String("config", "", "JSON site config file")
	focusPath := flag.String("focus-css", "", "CSS file with focus styles for keyboard users")
	preload := flag.Bool("preload", false, "fetch replacement images before swapping them in")
	report := flag.Bool("report", false, "send the profile to the profiler URL")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := core.DefaultConfig()
	target := strings.TrimSpace(*pageURL)
	remote := strings.HasPrefix(*in, "http://") || strings.HasPrefix(*in, "https://")
	if remote && target == "" {
		target = *in
	}
	if target == "" {
		target = "http://localhost/"
	}
	if sc := core.NewSiteStore(cfg.SitesDir).Find(target); sc != nil {
		cfg = sc.Apply(cfg)
	}
	if *configPath != "" {
		sc, err := core.LoadConfigFile(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = sc.Apply(cfg)
	}
	if *bucket != "" {
		cfg.S3Bucket = *bucket
	}

	client, jar, err := newClient(cfg, target)
	if err != nil {
		log.Fatalf("cookies: %v", err)
	}
	hdr := cfg.Header()
	doc, err := loadDocument(ctx, client, hdr, *in, target, remote)
	if err != nil {
		log.Fatalf("load %s: %v", *in, err)
	}
	doc.Window.ClientWidth = *width
	doc.Window.ClientHeight = *height
	doc.Window.DevicePixelRatio = *dpr

	prof := profile.Detect(profile.Features{
		SVGBasicStructure: *svg,
		StyleProperties:   []string{"transform"},
		OnTouchStart:      *touch,
		JSON:              true,
		AsyncScripts:      true,
		PerformanceTiming: true,
		SessionStorage:    true,
	})
	prof.Speed = images.NormalizeSpeed(*speed)

	var focusCSS string
	if *focusPath != "" {
		b, err := os.ReadFile(*focusPath)
		if err != nil {
			log.Fatalf("focus css: %v", err)
		}
		focusCSS = string(b)
	}
	opts := site.Options{
		Config:   cfg,
		PageURL:  target,
		Client:   client,
		Jar:      jar,
		Profile:  prof,
		Report:   *report,
		FocusCSS: focusCSS,
	}
	if *preload {
		opts.Loader = &fetch.Preloader{Client: client, Header: hdr, Referer: target, Logger: cfg.Logger}
	}
	s, err := site.New(opts)
	if err != nil {
		log.Fatalf("site: %v", err)
	}
	if err := s.Run(ctx, doc); err != nil {
		log.Printf("WARN %v", err)
	}
	log.Printf("IMG suffix=%q beacon=%s", s.Images.Session().Suffix(), s.Beacon.URL())

	if err := writeDocument(doc, *out); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
}

// newClient returns an HTTP client whose cookies land in the same jar the
// modules read and write, so cookies set by the page are visible to them.
func newClient(cfg core.Config, target string) (*http.Client, *cookies.Jar, error) {
	jar, err := cookies.NewJar(target)
	if err != nil {
		return nil, nil, err
	}
	return fetch.NewClient(fetch.Options{Logger: cfg.Logger, Jar: jar.HTTPJar()}), jar, nil
}

func loadDocument(ctx context.Context, client *http.Client, hdr http.Header, in, base string, remote bool) (*dom.Document, error) {
	if remote {
		return fetch.Document(ctx, client, in, hdr)
	}
	var r io.Reader
	if in == "-" {
		r = os.Stdin
	} else {
		b, err := os.ReadFile(in)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	return dom.Parse(r, base)
}

func writeDocument(doc *dom.Document, out string) error {
	if out == "-" {
		return doc.Render(os.Stdout)
	}
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
