package core

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultSitesDir = "config/sites"

// Config is the site configuration shared by every module.
type Config struct {
	BeaconURL    string
	ProfilerURL  string
	S3Bucket     string
	SpeedTestURL string
	Debug        bool
	SitesDir     string
	// Headers are sent with every page and image request.
	Headers map[string]string
	Logger  *log.Logger
	Clock        func() time.Time
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		BeaconURL:    strings.TrimSpace(os.Getenv("DECADECITY_BEACON_URL")),
		ProfilerURL:  strings.TrimSpace(os.Getenv("DECADECITY_PROFILER_URL")),
		S3Bucket:     strings.TrimSpace(os.Getenv("DECADECITY_S3_BUCKET")),
		SpeedTestURL: strings.TrimSpace(os.Getenv("DECADECITY_SPEED_TEST_URL")),
		SitesDir:     strings.TrimSpace(os.Getenv("DECADECITY_SITES_DIR")),
		Logger:       log.Default(),
		Clock:        time.Now,
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("DECADECITY_DEBUG"))); err == nil {
		cfg.Debug = v
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	return cfg
}

// SiteConfig is the JSON form of per-site overrides. Unset fields keep the
// value already in Config.
type SiteConfig struct {
	BeaconURL    string            `json:"beacon_url,omitempty"`
	ProfilerURL  string            `json:"profiler_url,omitempty"`
	S3Bucket     string            `json:"s3_bucket,omitempty"`
	SpeedTestURL string            `json:"speed_test_url,omitempty"`
	Debug        *bool             `json:"debug,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Apply returns cfg with the non-empty fields of sc laid over it.
func (sc *SiteConfig) Apply(cfg Config) Config {
	if sc == nil {
		return cfg
	}
	if sc.BeaconURL != "" {
		cfg.BeaconURL = sc.BeaconURL
	}
	if sc.ProfilerURL != "" {
		cfg.ProfilerURL = sc.ProfilerURL
	}
	if sc.S3Bucket != "" {
		cfg.S3Bucket = sc.S3Bucket
	}
	if sc.SpeedTestURL != "" {
		cfg.SpeedTestURL = sc.SpeedTestURL
	}
	if sc.Debug != nil {
		cfg.Debug = *sc.Debug
	}
	if len(sc.Headers) > 0 {
		merged := make(map[string]string, len(cfg.Headers)+len(sc.Headers))
		for k, v := range cfg.Headers {
			merged[http.CanonicalHeaderKey(k)] = v
		}
		for k, v := range sc.Headers {
			merged[http.CanonicalHeaderKey(k)] = v
		}
		cfg.Headers = merged
	}
	return cfg
}

// Header returns Headers as an http.Header, or nil when there are none.
func (c Config) Header() http.Header {
	if len(c.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		if k = strings.TrimSpace(k); k != "" {
			h.Set(k, v)
		}
	}
	return h
}

// LoadConfigFile reads a SiteConfig from a JSON file.
func LoadConfigFile(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("core: read config: %w", err)
	}
	var sc SiteConfig
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("core: parse config %s: %w", path, err)
	}
	sc.S3Bucket = strings.TrimSpace(sc.S3Bucket)
	return &sc, nil
}

// SiteStore finds per-host SiteConfig files in a directory. A file named
// example.com.json serves example.com and all of its subdomains.
type SiteStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]*SiteConfig
}

func NewSiteStore(dir string) *SiteStore {
	return &SiteStore{
		dir:   dir,
		cache: make(map[string]*SiteConfig),
	}
}

// Find returns the most specific config for the host of target, or nil.
func (s *SiteStore) Find(target string) *SiteConfig {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	s.mu.RLock()
	if cfg, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		if cfg := s.load(candidate); cfg != nil {
			s.mu.Lock()
			s.cache[host] = cfg
			s.mu.Unlock()
			return cfg
		}
	}
	s.mu.Lock()
	s.cache[host] = nil
	s.mu.Unlock()
	return nil
}

func (s *SiteStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	cfg, err := LoadConfigFile(filepath.Join(s.dir, host+".json"))
	if err != nil {
		return nil
	}
	return cfg
}
