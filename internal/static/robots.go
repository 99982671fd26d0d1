package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// ErrDisallowed is returned when robots.txt forbids a page.
var ErrDisallowed = errors.New("blocked by robots.txt")

// robotsGate caches robots.txt per origin.
type robotsGate struct {
	client    *http.Client
	userAgent string

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsGate(client *http.Client, userAgent string) *robotsGate {
	return &robotsGate{client: client, userAgent: userAgent, cache: make(map[string]*robotstxt.RobotsData)}
}

// Check returns ErrDisallowed when the page may not be fetched. A missing
// or unreachable robots.txt allows everything.
func (g *robotsGate) Check(ctx context.Context, target *url.URL) error {
	origin := target.Scheme + "://" + target.Host

	g.mu.RLock()
	data, ok := g.cache[origin]
	g.mu.RUnlock()

	if !ok {
		var err error
		data, err = g.fetch(ctx, origin)
		if err != nil {
			return err
		}
		g.mu.Lock()
		g.cache[origin] = data
		g.mu.Unlock()
	}

	if data == nil {
		return nil
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if !data.FindGroup(g.userAgent).Test(path) {
		return fmt.Errorf("%w: %s", ErrDisallowed, target.String())
	}
	return nil
}

func (g *robotsGate) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}
	return data, nil
}
