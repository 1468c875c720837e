package fetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned when a preload fetched something that does not
// decode as an image.
var ErrNotImage = errors.New("fetch: not an image")

// ImageInfo describes a preloaded image.
type ImageInfo struct {
	URL    string
	Format string
	Width  int
	Height int
}

// Preloader fetches replacement images before they are swapped in. An image
// counts as loaded once its header decodes.
type Preloader struct {
	Client  *http.Client
	Header  http.Header
	Referer string
	Logger  *log.Logger
}

// Load implements images.Loader.
func (p *Preloader) Load(ctx context.Context, src string) error {
	_, err := p.Probe(ctx, src)
	return err
}

// Probe fetches src and decodes its dimensions.
func (p *Preloader) Probe(ctx context.Context, src string) (ImageInfo, error) {
	info := ImageInfo{URL: src}
	client := p.Client
	if client == nil {
		client = NewClient(Options{Logger: p.Logger})
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return info, fmt.Errorf("fetch: image request %s: %w", src, err)
	}
	setDefaultHeaders(req, p.Header, "image/*")
	if p.Referer != "" {
		req.Header.Set("Referer", p.Referer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return info, fmt.Errorf("fetch: image %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("fetch: image %s: status %d", src, resp.StatusCode)
	}
	body, done, err := decodeBody(resp)
	if err != nil {
		return info, fmt.Errorf("fetch: image %s: %w", src, err)
	}
	defer done()
	cfg, format, err := image.DecodeConfig(body)
	if err != nil {
		return info, fmt.Errorf("%w: %s (%s): %v", ErrNotImage, src, resp.Header.Get("Content-Type"), err)
	}
	info.Format = format
	info.Width = cfg.Width
	info.Height = cfg.Height
	return info, nil
}
