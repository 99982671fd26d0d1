package browser

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// OpenOptions customizes one tab.
type OpenOptions struct {
	// Cookies are installed before navigation.
	Cookies []*http.Cookie
	// UserAgent overrides the manager's configured user agent.
	UserAgent string
}

// Open creates a tab, navigates it to url and waits for the load event.
// The returned Page owns the tab; Close releases it.
func (m *Manager) Open(ctx context.Context, url string, opts OpenOptions) (*Page, error) {
	b, err := m.Start(ctx)
	if err != nil {
		return nil, err
	}

	var rp *rod.Page
	if m.cfg.Stealth {
		rp, err = stealth.Page(b)
	} else {
		rp, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	p := newPage(rp, m.log.WithField("url", url))
	if err := p.prepare(m.cfg, url, opts); err != nil {
		p.Close()
		return nil, err
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	defer cancel()

	if err := rp.Context(navCtx).Navigate(url); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := rp.Context(navCtx).WaitLoad(); err != nil {
		p.Close()
		return nil, fmt.Errorf("browser: wait load %s: %w", url, err)
	}

	p.log.Debug("Page loaded")
	return p, nil
}

func (p *Page) prepare(cfg Config, url string, opts OpenOptions) error {
	ua := opts.UserAgent
	if ua == "" {
		ua = cfg.UserAgent
	}
	if ua != "" {
		if err := p.rp.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return fmt.Errorf("browser: set user agent: %w", err)
		}
	}

	if len(opts.Cookies) > 0 {
		if err := p.rp.SetCookies(cookieParams(opts.Cookies, url)); err != nil {
			return fmt.Errorf("browser: set cookies: %w", err)
		}
		p.log.WithField("count", len(opts.Cookies)).Debug("Installed cookies")
	}

	if len(cfg.BlockResources) > 0 {
		p.router = applyResourceBlocking(p.rp, cfg.BlockResources)
	}
	return nil
}
