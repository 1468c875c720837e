// Package core holds the site configuration and the registry of hooks that
// run when a document is ready and when it has finished loading.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"decadecity/dom"
)

// Hook is run against a document at one of the two page stages.
type Hook func(ctx context.Context, doc *dom.Document) error

type namedHook struct {
	name string
	fn   Hook
}

// Core runs registered hooks in registration order.
type Core struct {
	cfg    Config
	logger *log.Logger
	clock  func() time.Time

	mu    sync.Mutex
	ready []namedHook
	load  []namedHook
}

func New(cfg Config) *Core {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Core{cfg: cfg, logger: cfg.Logger, clock: cfg.Clock}
}

func (c *Core) Config() Config { return c.cfg }

// Register adds a hook run by Ready.
func (c *Core) Register(name string, h Hook) {
	c.mu.Lock()
	c.ready = append(c.ready, namedHook{name: name, fn: h})
	c.mu.Unlock()
}

// RegisterLoad adds a hook run by Load.
func (c *Core) RegisterLoad(name string, h Hook) {
	c.mu.Lock()
	c.load = append(c.load, namedHook{name: name, fn: h})
	c.mu.Unlock()
}

// Ready runs the DOM-ready hooks. A failing hook does not stop the others;
// all failures are returned together.
func (c *Core) Ready(ctx context.Context, doc *dom.Document) error {
	return c.run(ctx, doc, "ready", c.hooks(&c.ready))
}

// Load runs the onload hooks, after Ready.
func (c *Core) Load(ctx context.Context, doc *dom.Document) error {
	return c.run(ctx, doc, "load", c.hooks(&c.load))
}

func (c *Core) hooks(list *[]namedHook) []namedHook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]namedHook(nil), (*list)...)
}

func (c *Core) run(ctx context.Context, doc *dom.Document, stage string, hooks []namedHook) error {
	var errs []error
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		start := c.clock()
		if err := h.fn(ctx, doc); err != nil {
			c.logger.Printf("HOOK %s %s failed: %v", stage, h.name, err)
			errs = append(errs, fmt.Errorf("core: %s hook %s: %w", stage, h.name, err))
			continue
		}
		if c.cfg.Debug {
			c.logger.Printf("HOOK %s %s %s", stage, h.name, c.clock().Sub(start))
		}
	}
	return errors.Join(errs...)
}
