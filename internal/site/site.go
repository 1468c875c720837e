// Package site wires every enhancement module onto one core.Core the way a
// page includes them, and runs a page view through it.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"decadecity/accessibility"
	"decadecity/beacon"
	"decadecity/cookies"
	"decadecity/core"
	"decadecity/dom"
	"decadecity/images"
	"decadecity/profile"
)

// Options select the collaborators for one page view.
type Options struct {
	Config  core.Config
	PageURL string
	Client  *http.Client
	Jar     *cookies.Jar
	Session *cookies.SessionStorage
	Profile *profile.Profile
	Loader  images.Loader
	// Viewport replaces the document window when choosing image sizes.
	Viewport *images.Viewport
	// Report sends the profile to the profiler URL.
	Report bool
	// FocusCSS, when set, is scoped to keyboard users and added to <head>.
	FocusCSS string
	// Timing feeds the beacon at load. Nil means only marks taken from the
	// clock are available.
	Timing *beacon.Timing
}

// Site is one page view's worth of wired modules.
type Site struct {
	Core     *core.Core
	Images   *images.Images
	Beacon   *beacon.Beacon
	Reporter *profile.Reporter
	Profile  *profile.Profile

	opts Options
}

func New(opts Options) (*Site, error) {
	cfg := opts.Config
	c := core.New(cfg)
	cfg = c.Config()
	if opts.Jar == nil {
		if opts.PageURL == "" {
			return nil, errors.New("site: a page url or cookie jar is required")
		}
		jar, err := cookies.NewJar(opts.PageURL)
		if err != nil {
			return nil, fmt.Errorf("site: %w", err)
		}
		opts.Jar = jar
	}
	if opts.PageURL == "" {
		opts.PageURL = opts.Jar.URL().String()
	}
	if opts.Session == nil {
		opts.Session = cookies.NewSessionStorage()
	}
	if opts.Profile == nil {
		opts.Profile = &profile.Profile{Profile: true}
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	s := &Site{
		Core:    c,
		Profile: opts.Profile,
		opts:    opts,
		Images: images.New(images.Config{
			Bucket:  cfg.S3Bucket,
			Store:   opts.Jar,
			Profile: opts.Profile,
			Loader:  opts.Loader,
			Logger:  cfg.Logger,
		}),
		Beacon: beacon.New(beacon.Config{
			URL:     cfg.BeaconURL,
			Client:  opts.Client,
			Cookies: opts.Jar,
			Session: opts.Session,
			Clock:   cfg.Clock,
			Logger:  cfg.Logger,
		}),
		Reporter: &profile.Reporter{
			Endpoint: cfg.ProfilerURL,
			PageURL:  opts.PageURL,
			Debug:    cfg.Debug,
			Client:   opts.Client,
			Cookies:  opts.Jar,
			Session:  opts.Session,
			Delay:    100 * time.Millisecond,
			Logger:   cfg.Logger,
		},
	}
	s.register()
	return s, nil
}

func (s *Site) register() {
	cfg := s.Core.Config()
	s.Core.Register("accessibility", func(_ context.Context, doc *dom.Document) error {
		accessibility.Init(doc)
		if s.opts.FocusCSS != "" {
			return accessibility.InjectFocusStyles(doc, s.opts.FocusCSS)
		}
		return nil
	})
	s.Core.Register("beacon", func(_ context.Context, doc *dom.Document) error {
		s.Beacon.Init(doc)
		return nil
	})
	s.Core.Register("profile", func(_ context.Context, doc *dom.Document) error {
		s.Profile.ApplyClasses(doc)
		return s.Profile.Save(s.opts.Jar)
	})
	if cfg.SpeedTestURL != "" {
		s.Core.Register("speed", func(ctx context.Context, _ *dom.Document) error {
			res, err := profile.MeasureSpeed(ctx, s.opts.Client, cfg.SpeedTestURL, 0)
			s.Profile.Speed = res.Speed
			if err != nil {
				cfg.Logger.Printf("PROFILE speed test: %v", err)
			}
			return nil
		})
	}
	s.Core.Register("images", func(ctx context.Context, doc *dom.Document) error {
		return s.Images.Ready(ctx, doc, s.opts.Viewport)
	})
	if s.opts.Report {
		s.Core.Register("report", func(ctx context.Context, _ *dom.Document) error {
			_, err := s.Reporter.Send(ctx, s.Profile, false)
			return err
		})
	}
	s.Core.RegisterLoad("beacon", func(ctx context.Context, _ *dom.Document) error {
		var t beacon.Timing
		if s.opts.Timing != nil {
			t = *s.opts.Timing
		}
		s.Beacon.Finish(t)
		if _, err := s.Beacon.Send(ctx); err != nil {
			cfg.Logger.Printf("BEACON send failed: %v", err)
		}
		return nil
	})
}

// Run takes doc through a full page view: the ready hooks, every pending
// image preload, the load hooks, and finally leaving the page.
func (s *Site) Run(ctx context.Context, doc *dom.Document) error {
	var errs []error
	if err := s.Core.Ready(ctx, doc); err != nil {
		errs = append(errs, err)
	}
	if err := doc.Settle(ctx); err != nil {
		errs = append(errs, fmt.Errorf("site: settle: %w", err))
	}
	if err := s.Core.Load(ctx, doc); err != nil {
		errs = append(errs, err)
	}
	if err := s.Unload(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Unload is the page being left. It stores the navigation start the next
// page's beacon falls back on when the browser has no navigation timing.
func (s *Site) Unload() error {
	if err := s.Beacon.RecordNavigationStart(); err != nil {
		return fmt.Errorf("site: unload: %w", err)
	}
	return nil
}
