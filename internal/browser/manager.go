// Package browser drives headless Chrome through rod and exposes loaded
// tabs as page.Page values for the traversal strategies.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"imgscraper/pkg/config"
	"imgscraper/pkg/logger"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	RemoteURL string
	Headless  bool
	// Stealth opens tabs through go-rod/stealth.
	Stealth           bool
	UserAgent         string
	NavigationTimeout time.Duration
	// BlockResources lists resource types to refuse (fonts, media,
	// stylesheets). Images are never blocked.
	BlockResources []string
	Logger         logger.Logger
}

// FromConfig maps the browser config section.
func FromConfig(c config.BrowserConfig, log logger.Logger) Config {
	return Config{
		RemoteURL:         c.RemoteURL,
		Headless:          c.Headless,
		Stealth:           c.Stealth,
		UserAgent:         c.UserAgent,
		NavigationTimeout: c.NavigationTimeout,
		BlockResources:    c.BlockResources,
		Logger:            log,
	}
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger()
	}
}

// Manager owns the Chrome process for one run.
type Manager struct {
	cfg     Config
	log     logger.Logger
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, log: cfg.Logger.WithField("component", "browser")}
}

// Start launches Chrome, or connects to the remote instance, and returns
// the rod handle. Calling Start again returns the running browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		m.log.WithField("url", wsURL).Info("Connecting to remote browser")
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.WithFields(map[string]interface{}{
			"url":      wsURL,
			"headless": m.cfg.Headless,
		}).Info("Launched local browser")
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Browser returns the running browser, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Close shuts Chrome down. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanup()
	return nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.log.WithError(err).Debug("Browser close failed")
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
