// Package fetch performs the outbound HTTP work: fetching pages to enhance
// and preloading replacement images.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36 decadecity/1.0"
	DefaultTimeout   = 15 * time.Second
)

// Options configure NewClient.
type Options struct {
	Timeout time.Duration
	Jar     http.CookieJar
	Logger  *log.Logger
	// Base is the transport wrapped by the logging transport.
	Base http.RoundTripper
}

// NewClient returns an http.Client that logs every request it makes.
func NewClient(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Jar:       opts.Jar,
		Transport: &LoggingTransport{Base: opts.Base, Logger: opts.Logger},
	}
}

// LoggingTransport logs each request and the status it got back.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *log.Logger
}

func (t *LoggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	logger := t.Logger
	if logger == nil {
		logger = log.Default()
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	logger.Printf("REQ %s %s UA=%q", r.Method, r.URL.String(), r.UserAgent())
	resp, err := base.RoundTrip(r)
	if err != nil {
		logger.Printf("RES %s %s error=%v", r.Method, r.URL.String(), err)
		return nil, err
	}
	logger.Printf("RES %s %s status=%d type=%q in %s", r.Method, r.URL.String(), resp.StatusCode, resp.Header.Get("Content-Type"), time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func setDefaultHeaders(req *http.Request, hdr http.Header, accept string) {
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", accept)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip")
	}
}

// decodeBody undoes Content-Encoding. net/http only does this itself when
// the caller left Accept-Encoding unset.
func decodeBody(resp *http.Response) (io.Reader, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, noop, err
		}
		return gr, func() { gr.Close() }, nil
	case "deflate":
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, noop, err
		}
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			return zr, func() { zr.Close() }, nil
		}
		fr := flate.NewReader(bytes.NewReader(body))
		return fr, func() { fr.Close() }, nil
	default:
		return resp.Body, noop, nil
	}
}
