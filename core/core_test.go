package core

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"decadecity/dom"
)

func quietConfig() Config {
	return Config{Logger: log.New(io.Discard, "", 0)}
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("DECADECITY_BEACON_URL", " https://t.example/b ")
	t.Setenv("DECADECITY_S3_BUCKET", "assets")
	t.Setenv("DECADECITY_DEBUG", "true")
	t.Setenv("DECADECITY_SITES_DIR", "")
	cfg := DefaultConfig()
	if cfg.BeaconURL != "https://t.example/b" || cfg.S3Bucket != "assets" || !cfg.Debug {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SitesDir != defaultSitesDir {
		t.Fatalf("SitesDir = %q", cfg.SitesDir)
	}
	if cfg.Logger == nil || cfg.Clock == nil {
		t.Fatal("logger and clock should default")
	}
}

func TestDefaultConfigBadDebug(t *testing.T) {
	t.Setenv("DECADECITY_DEBUG", "sometimes")
	if DefaultConfig().Debug {
		t.Fatal("unparsable debug should stay off")
	}
}

func writeSite(t *testing.T, dir, host, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, host+".json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSiteStoreFind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeSite(t, dir, "example.com", `{"s3_bucket":"shared","debug":true}`)
	writeSite(t, dir, "blog.example.com", `{"beacon_url":"https://t.example/blog"}`)
	writeSite(t, dir, "broken.org", `{`)
	s := NewSiteStore(dir)

	if sc := s.Find("https://www.example.com/x"); sc == nil || sc.S3Bucket != "shared" {
		t.Fatalf("www.example.com = %+v", sc)
	}
	if sc := s.Find("https://blog.example.com:8443/"); sc == nil || sc.BeaconURL != "https://t.example/blog" {
		t.Fatalf("blog.example.com = %+v", sc)
	}
	if sc := s.Find("https://broken.org/"); sc != nil {
		t.Fatalf("broken config should be ignored: %+v", sc)
	}
	if sc := s.Find("not a url"); sc != nil {
		t.Fatalf("hostless target = %+v", sc)
	}
}

func TestSiteConfigApply(t *testing.T) {
	t.Parallel()
	off := false
	base := Config{BeaconURL: "https://a/", S3Bucket: "one", Debug: true}
	got := (&SiteConfig{S3Bucket: "two", Debug: &off}).Apply(base)
	if got.BeaconURL != "https://a/" || got.S3Bucket != "two" || got.Debug {
		t.Fatalf("Apply = %+v", got)
	}
	var nilSite *SiteConfig
	if got := nilSite.Apply(base); got.S3Bucket != "one" {
		t.Fatalf("nil Apply = %+v", got)
	}
}

func TestSiteConfigApplyHeaders(t *testing.T) {
	t.Parallel()
	base := Config{Headers: map[string]string{"X-Site": "base", "Accept-Language": "en"}}
	got := (&SiteConfig{Headers: map[string]string{"x-site": "override", "X-Extra": "1"}}).Apply(base)
	h := got.Header()
	if h.Get("X-Site") != "override" || h.Get("Accept-Language") != "en" || h.Get("X-Extra") != "1" {
		t.Fatalf("Header = %v", h)
	}
	if base.Headers["X-Site"] != "base" || len(base.Headers) != 2 {
		t.Fatalf("Apply mutated the base headers: %v", base.Headers)
	}
	if (Config{}).Header() != nil {
		t.Fatal("empty config should have no header")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	t.Parallel()
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHooksRunInOrder(t *testing.T) {
	t.Parallel()
	c := New(quietConfig())
	var order []string
	record := func(name string) Hook {
		return func(context.Context, *dom.Document) error {
			order = append(order, name)
			return nil
		}
	}
	c.Register("a", record("ready-a"))
	c.RegisterLoad("c", record("load-c"))
	c.Register("b", record("ready-b"))
	ctx := context.Background()
	if err := c.Ready(ctx, nil); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := c.Load(ctx, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := []string{"ready-a", "ready-b", "load-c"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestHookErrorsJoined(t *testing.T) {
	t.Parallel()
	c := New(quietConfig())
	errA := errors.New("a broke")
	errB := errors.New("b broke")
	ran := false
	c.Register("a", func(context.Context, *dom.Document) error { return errA })
	c.Register("ok", func(context.Context, *dom.Document) error { ran = true; return nil })
	c.Register("b", func(context.Context, *dom.Document) error { return errB })
	err := c.Ready(context.Background(), nil)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("err = %v", err)
	}
	if !ran {
		t.Fatal("a failing hook should not stop later hooks")
	}
}

func TestHooksStopOnCancel(t *testing.T) {
	t.Parallel()
	c := New(quietConfig())
	c.Register("never", func(context.Context, *dom.Document) error {
		t.Error("hook ran after cancel")
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Ready(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
