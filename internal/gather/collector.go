// Package gather drives a Chrome instance over the DevTools protocol and
// records the protocol events pagelens analysis consumes into a telemetry
// bundle.
package gather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pagelens/internal/devtools"
	"pagelens/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser configuration.
type Config struct {
	ChromeBin           string `json:"chrome_bin" yaml:"chrome_bin"`
	DebuggerURL         string `json:"debugger_url" yaml:"debugger_url"`
	Headless            bool   `json:"headless" yaml:"headless"`
	ViewportWidth       int    `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height" yaml:"viewport_height"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms" yaml:"navigation_timeout_ms"`
	SettleMs            int    `json:"settle_ms" yaml:"settle_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		SettleMs:            3000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SettleDuration returns how long to keep recording after page load, so
// late-arriving requests (analytics beacons, lazy resources) are captured.
func (c Config) SettleDuration() time.Duration {
	if c.SettleMs == 0 {
		return 3 * time.Second
	}
	return time.Duration(c.SettleMs) * time.Millisecond
}

// Collector owns the Chrome instance used to capture telemetry.
type Collector struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
}

// NewCollector creates a collector.
func NewCollector(cfg Config) *Collector {
	return &Collector{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		return nil
	}

	controlURL := c.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(c.cfg.Headless)
		if c.cfg.ChromeBin != "" {
			launch = launch.Bin(c.cfg.ChromeBin)
		}
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	c.browser = browser
	logging.Gather("connected to chrome at %s", controlURL)
	return nil
}

// Shutdown closes the browser.
func (c *Collector) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	return err
}

// Collect navigates to targetURL and records protocol events until the page
// has loaded and the settle window has elapsed.
func (c *Collector) Collect(ctx context.Context, targetURL string) (*devtools.Bundle, error) {
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	browser := c.browser
	c.mu.Unlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	timer := logging.StartTimer(logging.CategoryGather, "Collect")
	defer timer.StopWithInfo()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.GetViewportWidth(),
		Height:            c.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.Get(logging.CategoryGather).Warn("failed to set viewport: %v", err)
	}

	var (
		logMu      sync.Mutex
		entries    []devtools.LogEntry
		mainDocURL string
	)
	start := time.Now()

	appendEntry := func(method string, params any) {
		raw, err := json.Marshal(params)
		if err != nil {
			return
		}
		logMu.Lock()
		entries = append(entries, devtools.LogEntry{Method: method, Params: raw})
		logMu.Unlock()
	}

	eventCtx, stopEvents := context.WithCancel(ctx)
	defer stopEvents()

	wait := page.Context(eventCtx).EachEvent(
		func(ev *proto.RuntimeExecutionContextCreated) {
			if ev.Context == nil {
				return
			}
			appendEntry(devtools.MethodExecutionContextCreated, devtools.ExecutionContextCreatedParams{
				Context: devtools.ExecutionContextDescription{
					Origin: ev.Context.Origin,
					Name:   ev.Context.Name,
				},
			})
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if ev.Request == nil {
				return
			}
			appendEntry(devtools.MethodRequestWillBeSent, devtools.RequestWillBeSentParams{
				RequestID:   string(ev.RequestID),
				DocumentURL: ev.DocumentURL,
				Timestamp:   time.Since(start).Seconds(),
				Request: devtools.Request{
					URL:    ev.Request.URL,
					Method: ev.Request.Method,
				},
			})
			// The main-document URL is the latest document request on the
			// page's own frame; redirects re-fire the event and update it.
			if ev.Type == proto.NetworkResourceTypeDocument && ev.FrameID == page.FrameID {
				logMu.Lock()
				mainDocURL = ev.Request.URL
				logMu.Unlock()
			}
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame == nil {
				return
			}
			appendEntry(devtools.MethodFrameNavigated, map[string]any{
				"frame": map[string]any{"id": string(ev.Frame.ID), "url": ev.Frame.URL},
			})
		},
	)
	go wait()

	if err := page.Timeout(c.cfg.NavigationTimeout()).Navigate(targetURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", targetURL, err)
	}
	if err := page.Timeout(c.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		logging.Get(logging.CategoryGather).Warn("load wait ended early: %v", err)
	}

	select {
	case <-time.After(c.cfg.SettleDuration()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	stopEvents()

	finalURL := targetURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	logMu.Lock()
	defer logMu.Unlock()
	logging.Gather("captured %d protocol events for %s", len(entries), targetURL)
	return &devtools.Bundle{
		FinalDisplayedURL: finalURL,
		MainDocumentURL:   mainDocURL,
		Log:               entries,
	}, nil
}
