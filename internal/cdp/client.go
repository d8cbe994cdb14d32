// Package cdp is a thin request/response and event-subscription layer over
// the Chrome DevTools Protocol, built on chromedp's exec allocator and
// cdproto's typed domain packages. Higher-level components (screencast,
// input, cursor probe, browser session) drive Chrome exclusively through
// this client; none of them talks to chromedp directly.
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/vibepilot/agentd/internal/errs"
)

// Client owns one headless Chrome process and its devtools connection.
type Client struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	ctx         context.Context
	cancelCtx   context.CancelFunc
}

// LaunchOptions configures the Chrome process this client drives.
type LaunchOptions struct {
	ExecPath   string
	ProfileDir string
	Headless   bool
	WindowW    int
	WindowH    int
}

// Launch starts Chrome under the given options and establishes the devtools
// connection. The returned Client must be closed with Close.
func Launch(ctx context.Context, opts LaunchOptions) (*Client, error) {
	if opts.ExecPath == "" {
		return nil, errs.Resource("chrome executable not found")
	}
	if opts.WindowW == 0 {
		opts.WindowW = 1280
	}
	if opts.WindowH == 0 {
		opts.WindowH = 720
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(opts.ExecPath),
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.WindowW, opts.WindowH),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, errs.Resourcef("launch chrome", err)
	}

	return &Client{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
	}, nil
}

// Context returns the chromedp browser context actions should run against.
func (c *Client) Context() context.Context { return c.ctx }

// Run executes one or more chromedp actions against this client's browser
// context, translating a failure into a TransientError (a CDP hiccup is
// never fatal on its own). Run does not retry a failed action.
func (c *Client) Run(actions ...chromedp.Action) error {
	if err := chromedp.Run(c.ctx, actions...); err != nil {
		return errs.Transientf("cdp request", err)
	}
	return nil
}

// ListenTarget subscribes fn to every CDP event on this client's target.
// fn should type-switch on the concrete cdproto event type it cares about
// and ignore the rest; this mirrors chromedp.ListenTarget's own contract.
func (c *Client) ListenTarget(fn func(ev any)) {
	chromedp.ListenTarget(c.ctx, fn)
}

// Close tears down the devtools connection and kills the Chrome process.
func (c *Client) Close() error {
	var err error
	if c.cancelCtx != nil {
		if e := chromedp.Cancel(c.ctx); e != nil {
			err = fmt.Errorf("cdp cancel: %w", e)
		}
		c.cancelCtx()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
	return err
}
