// Package static serves pages without a browser: HTML is fetched over
// HTTP and queried with goquery. Clicking a control follows its href.
// Nothing loads lazily, so every image counts as decoded and the viewport
// always reaches the bottom of the document.
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"imgscraper/pkg/logger"
)

// Config configures a Loader.
type Config struct {
	Client        *http.Client
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	Logger        logger.Logger
}

// Loader opens pages over HTTP.
type Loader struct {
	client    *http.Client
	userAgent string
	robots    *robotsGate
	log       logger.Logger
}

func NewLoader(cfg Config) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Client == nil {
		jar, _ := cookiejar.New(nil)
		cfg.Client = &http.Client{Timeout: cfg.Timeout, Jar: jar}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	l := &Loader{
		client:    cfg.Client,
		userAgent: cfg.UserAgent,
		log:       cfg.Logger.WithField("component", "static"),
	}
	if cfg.RespectRobots {
		l.robots = newRobotsGate(cfg.Client, cfg.UserAgent)
	}
	return l
}

// Open fetches rawURL and returns it as a Page. Cookies are added to the
// client's jar when it has one.
func (l *Loader) Open(ctx context.Context, rawURL string, cookies []*http.Cookie) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	if len(cookies) > 0 && l.client.Jar != nil {
		l.client.Jar.SetCookies(u, cookies)
	}

	p := &Page{loader: l, watches: make(map[int]chan struct{})}
	if err := p.load(ctx, u); err != nil {
		return nil, err
	}
	return p, nil
}

func (l *Loader) document(ctx context.Context, u *url.URL, referer string) (*goquery.Document, *url.URL, error) {
	if l.robots != nil {
		if err := l.robots.Check(ctx, u); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	l.log.WithFields(map[string]interface{}{
		"url":         u.String(),
		"status_code": resp.StatusCode,
		"duration":    time.Since(start),
	}).Debug("Fetched page")

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, nil, fmt.Errorf("failed to fetch %s: status %d", u, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, resp.Request.URL, nil
}
