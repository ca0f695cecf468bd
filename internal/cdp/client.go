// Package cdp attaches to the inspected browser tab over the Chrome DevTools
// Protocol and exposes it as the panel's host: finished-request
// notifications, page-load notifications and script enumeration.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/repplus/internal/capture"
	"github.com/dgnsrekt/repplus/internal/fanout"
	"github.com/dgnsrekt/repplus/internal/signature"
)

// Options configures a Client.
type Options struct {
	CDPURL          string
	TabURLFilter    string
	ReloadOnAttach  bool
	MaxPayloadBytes int
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
}

// Client manages the CDP connection to one browser tab.
type Client struct {
	opts     Options
	listener *capture.Listener

	allocCtx    context.Context
	allocCancel context.CancelFunc

	tabMu     sync.RWMutex
	tabCtx    context.Context
	tabCancel context.CancelFunc
	targetID  target.ID
	tabURL    string

	finished  fanout.Set[capture.Observed]
	navigated fanout.Set[struct{}]
}

// NewClient creates a Client. Call Connect before using it.
func NewClient(opts Options) *Client {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	c := &Client{opts: opts}
	c.listener = capture.NewListener(c.finished.Dispatch, opts.MaxPayloadBytes)
	return c
}

// Connect attaches to the first page target matching the tab URL filter,
// retrying with exponential backoff until ConnectTimeout elapses.
func (c *Client) Connect(ctx context.Context) error {
	cdpURL := c.opts.CDPURL
	slog.Info("Connecting to Chromium", "url", cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.opts.ConnectTimeout
	attempt := 0
	op := func() error {
		attempt++
		err := c.attach()
		if err != nil {
			slog.Warn("Attach attempt failed", "attempt", attempt, "error", err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}
	return nil
}

func (c *Client) attach() error {
	tempCtx, tempCancel := chromedp.NewContext(c.allocCtx)
	defer tempCancel()

	if err := chromedp.Run(tempCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}
	slog.Info("Found browser targets", "count", len(targets))

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if !matchesTabURL(c.opts.TabURLFilter, t.URL) {
			slog.Debug("Skipping tab (url filter)", "url", t.URL)
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", t.URL, "error", err)
			continue
		}
		return nil
	}
	return backoff.Permanent(fmt.Errorf("no page target matches REPPLUS_TAB_URL_FILTER=%q", c.opts.TabURLFilter))
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))

	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		tabCancel()
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	c.tabMu.Lock()
	c.tabCtx, c.tabCancel = tabCtx, tabCancel
	c.targetID, c.tabURL = targetID, url
	c.tabMu.Unlock()

	slog.Info("Attached to tab", "target_id", targetID, "url", truncateURL(url))
	chromedp.ListenTarget(tabCtx, c.handleEvent)

	if c.opts.ReloadOnAttach {
		reloadCtx, reloadCancel := context.WithTimeout(tabCtx, 30*time.Second)
		defer reloadCancel()
		if err := chromedp.Run(reloadCtx, chromedp.Reload()); err != nil {
			slog.Warn("Failed to reload tab (continuing)", "target_id", targetID, "error", err)
		} else {
			slog.Info("Reloaded tab after attach", "target_id", targetID)
		}
	}
	return nil
}

// handleEvent runs on chromedp's event goroutine and must not block on CDP
// calls.
func (c *Client) handleEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			c.tabMu.Lock()
			c.tabURL = e.Frame.URL
			c.tabMu.Unlock()
			slog.Info("Tab navigated", "url", truncateURL(e.Frame.URL))
		}
	case *page.EventLoadEventFired:
		go c.navigated.Dispatch(struct{}{})
	case *network.EventRequestWillBeSent:
		c.listener.OnRequestWillBeSent(e)
	case *network.EventLoadingFinished:
		c.listener.OnLoadingFinished(e)
	case *network.EventLoadingFailed:
		c.listener.OnLoadingFailed(e)
	}
}

// OnRequestFinished registers fn for every request that finishes loading.
func (c *Client) OnRequestFinished(fn func(capture.Observed)) func() {
	return c.finished.Add(fn)
}

// OnNavigated registers fn to run once per page load.
func (c *Client) OnNavigated(fn func()) func() {
	return c.navigated.Add(func(struct{}) { fn() })
}

// TabURL returns the URL of the attached tab.
func (c *Client) TabURL() string {
	c.tabMu.RLock()
	defer c.tabMu.RUnlock()
	return c.tabURL
}

// Connected reports whether a tab is attached.
func (c *Client) Connected() bool {
	c.tabMu.RLock()
	defer c.tabMu.RUnlock()
	return c.tabCtx != nil && c.tabCtx.Err() == nil
}

func (c *Client) tab() (context.Context, error) {
	c.tabMu.RLock()
	defer c.tabMu.RUnlock()
	if c.tabCtx == nil {
		return nil, fmt.Errorf("no tab attached")
	}
	return c.tabCtx, nil
}

// Scripts lists the script resources currently loaded in the tab.
func (c *Client) Scripts(ctx context.Context) ([]signature.Source, error) {
	tabCtx, err := c.tab()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithTimeout(tabCtx, c.opts.ReadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var tree *page.FrameResourceTree
	if err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetResourceTree().Do(ctx)
		return err
	})); err != nil {
		return nil, fmt.Errorf("get resource tree: %w", err)
	}

	refs := collectScripts(tree)
	sources := make([]signature.Source, len(refs))
	for i, ref := range refs {
		sources[i] = &scriptSource{client: c, frameID: ref.frameID, url: ref.url}
	}
	return sources, nil
}

func (c *Client) readResource(ctx context.Context, frameID cdp.FrameID, url string) (string, error) {
	tabCtx, err := c.tab()
	if err != nil {
		return "", err
	}
	runCtx, cancel := context.WithTimeout(tabCtx, c.opts.ReadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var content []byte
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		content, err = page.GetResourceContent(frameID, url).Do(ctx)
		return err
	}))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Close detaches from the tab and stops the capture listener.
func (c *Client) Close() error {
	c.listener.Close()

	c.tabMu.Lock()
	if c.tabCancel != nil {
		c.tabCancel()
	}
	c.tabCtx, c.tabCancel = nil, nil
	c.tabMu.Unlock()

	if c.allocCancel != nil {
		c.allocCancel()
	}
	slog.Info("CDP client closed")
	return nil
}

func matchesTabURL(filter, url string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(filter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
