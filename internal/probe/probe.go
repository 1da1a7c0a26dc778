// Package probe measures page behavior in a real browser: load timing,
// console errors, and screenshots. It drives Chrome over CDP via rod,
// either attaching to a running instance or launching its own.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// settleDelay gives late resources and console output a moment to land
// after the load event before metrics are read.
const settleDelay = 500 * time.Millisecond

// Config holds browser probe configuration.
type Config struct {
	// Bin is the browser binary. Empty lets the launcher find one.
	Bin string `json:"bin"`

	// DebuggerURL attaches to a running browser instead of launching.
	DebuggerURL string `json:"debugger_url"`

	// Launch holds extra browser flags, "--name" or "--name=value".
	Launch []string `json:"launch"`

	Headless            bool   `json:"headless"`
	ViewportWidth       int    `json:"viewport_width"`
	ViewportHeight      int    `json:"viewport_height"`
	NavigationTimeoutMs int    `json:"navigation_timeout_ms"`
	ScreenshotDir       string `json:"screenshot_dir"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1280,
		ViewportHeight:      800,
		NavigationTimeoutMs: 30000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Viewport returns the viewport dimensions.
func (c Config) Viewport() (width, height int) {
	width, height = c.ViewportWidth, c.ViewportHeight
	if width == 0 {
		width = 1280
	}
	if height == 0 {
		height = 800
	}
	return width, height
}

// LoadMetrics holds navigation timing for one page load.
type LoadMetrics struct {
	URL                string  `json:"url"`
	FirstByteMs        float64 `json:"first_byte_ms"`
	DOMContentLoadedMs float64 `json:"dom_content_loaded_ms"`
	LoadEventMs        float64 `json:"load_event_ms"`
	TransferBytes      int64   `json:"transfer_bytes"`
	Requests           int     `json:"requests"`
}

// ConsoleMessage is one error or warning captured from the page console.
type ConsoleMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Manager owns the browser connection behind the probes.
type Manager struct {
	cfg      Config
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	started  bool
}

// NewManager creates a probe manager. The browser is not started until
// the first probe needs it.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Started reports whether a browser connection is live.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Start connects to an existing browser or launches a new one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started && m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		_ = m.browser.Close()
		m.browser = nil
		m.started = false
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			launch = launch.Bin(m.cfg.Bin)
		}
		for _, rawFlag := range m.cfg.Launch {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}

		u, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("probe: launch browser: %w", err)
		}
		m.launcher = launch
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if m.launcher != nil {
			m.launcher.Kill()
			m.launcher = nil
		}
		return fmt.Errorf("probe: connect to browser: %w", err)
	}

	m.browser = browser
	m.started = true
	return nil
}

func (m *Manager) ensureStarted(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		return nil
	}
	return m.Start(ctx)
}

// Shutdown closes the browser and kills a launched process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher.Cleanup()
		m.launcher = nil
	}
	m.started = false
	return err
}

// newPage opens a fresh blank page with the configured viewport.
func (m *Manager) newPage(ctx context.Context) (*rod.Page, error) {
	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()
	if browser == nil {
		return nil, fmt.Errorf("probe: browser not connected")
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("probe: create page: %w", err)
	}
	page = page.Context(ctx)

	width, height := m.cfg.Viewport()
	_ = (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page)

	return page, nil
}

const navTimingJS = `
() => {
	const nav = performance.getEntriesByType('navigation')[0];
	if (!nav) return null;
	let bytes = nav.transferSize || 0;
	for (const r of performance.getEntriesByType('resource')) {
		bytes += r.transferSize || 0;
	}
	return {
		first_byte_ms: nav.responseStart,
		dom_content_loaded_ms: nav.domContentLoadedEventEnd,
		load_event_ms: nav.loadEventEnd,
		transfer_bytes: bytes
	};
}
`

// MeasureLoadTime loads a page in a fresh tab and reads its navigation
// timing entry, counting network responses along the way.
func (m *Manager) MeasureLoadTime(ctx context.Context, rawURL string) (*LoadMetrics, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}

	page, err := m.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	var requests int64
	wait := page.EachEvent(func(ev *proto.NetworkResponseReceived) {
		atomic.AddInt64(&requests, 1)
	})
	go wait()

	if err := m.loadPage(page, rawURL); err != nil {
		return nil, err
	}
	time.Sleep(settleDelay)

	res, err := page.Evaluate(&rod.EvalOptions{ByValue: true, JS: navTimingJS})
	if err != nil {
		return nil, fmt.Errorf("probe: read navigation timing: %w", err)
	}
	if res == nil || res.Value.Nil() {
		return nil, fmt.Errorf("probe: no navigation timing entry for %s", rawURL)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("probe: marshal timing: %w", err)
	}

	metrics := &LoadMetrics{URL: rawURL}
	if err := json.Unmarshal(raw, metrics); err != nil {
		return nil, fmt.Errorf("probe: decode timing: %w", err)
	}
	metrics.URL = rawURL
	metrics.Requests = int(atomic.LoadInt64(&requests))
	return metrics, nil
}

// ConsoleErrors loads a page and collects console error and warning
// output emitted during the load.
func (m *Manager) ConsoleErrors(ctx context.Context, rawURL string) ([]ConsoleMessage, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}

	page, err := m.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	var mu sync.Mutex
	messages := make([]ConsoleMessage, 0)
	wait := page.EachEvent(func(ev *proto.RuntimeConsoleAPICalled) {
		if ev.Type != proto.RuntimeConsoleAPICalledTypeError && ev.Type != proto.RuntimeConsoleAPICalledTypeWarning {
			return
		}
		mu.Lock()
		messages = append(messages, ConsoleMessage{
			Type: string(ev.Type),
			Text: formatConsoleArgs(ev.Args),
		})
		mu.Unlock()
	})
	go wait()

	if err := m.loadPage(page, rawURL); err != nil {
		return nil, err
	}
	time.Sleep(settleDelay)

	mu.Lock()
	defer mu.Unlock()
	out := make([]ConsoleMessage, len(messages))
	copy(out, messages)
	return out, nil
}

// Screenshot loads a page and captures a full-page screenshot. Relative
// paths land under the configured screenshot directory. Returns the
// resolved path written.
func (m *Manager) Screenshot(ctx context.Context, rawURL, path string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}
	if err := m.ensureStarted(ctx); err != nil {
		return "", err
	}

	page, err := m.newPage(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	if err := m.loadPage(page, rawURL); err != nil {
		return "", err
	}

	data, err := page.Screenshot(true, nil)
	if err != nil {
		return "", fmt.Errorf("probe: capture screenshot: %w", err)
	}

	if !filepath.IsAbs(path) && m.cfg.ScreenshotDir != "" {
		path = filepath.Join(m.cfg.ScreenshotDir, path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("probe: create screenshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("probe: write screenshot: %w", err)
	}
	return path, nil
}

func (m *Manager) loadPage(page *rod.Page, rawURL string) error {
	timeout := m.cfg.NavigationTimeout()
	if err := page.Timeout(timeout).Navigate(rawURL); err != nil {
		return fmt.Errorf("probe: navigate to %s: %w", rawURL, err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return fmt.Errorf("probe: wait for load of %s: %w", rawURL, err)
	}
	return nil
}

func formatConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("probe: invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("probe: url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("probe: url %q has no host", raw)
	}
	return nil
}
