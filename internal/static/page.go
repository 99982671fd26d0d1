package static

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"imgscraper/pkg/page"
)

var _ page.Page = (*Page)(nil)

// Page is a parsed HTML document. Click replaces it with the document the
// control links to and notifies every observer.
type Page struct {
	loader *Loader

	mu      sync.RWMutex
	doc     *goquery.Document
	url     *url.URL
	watches map[int]chan struct{}
	nextID  int
}

func (p *Page) load(ctx context.Context, u *url.URL) error {
	referer := ""
	p.mu.RLock()
	if p.url != nil {
		referer = p.url.String()
	}
	p.mu.RUnlock()

	doc, final, err := p.loader.document(ctx, u, referer)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.doc = doc
	p.url = final
	watches := make([]chan struct{}, 0, len(p.watches))
	for _, ch := range p.watches {
		watches = append(watches, ch)
	}
	p.mu.Unlock()

	for _, ch := range watches {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *Page) snapshot() (*goquery.Document, *url.URL) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc, p.url
}

func (p *Page) URL(context.Context) (string, error) {
	_, u := p.snapshot()
	return u.String(), nil
}

func (p *Page) Title(context.Context) (string, error) {
	doc, _ := p.snapshot()
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

func (p *Page) QueryImage(_ context.Context, selector string) (*page.Image, error) {
	doc, base := p.snapshot()
	sel, err := find(doc, selector)
	if err != nil {
		return nil, err
	}
	if sel.Length() == 0 {
		return nil, nil
	}
	img := toImage(sel.First(), base)
	return &img, nil
}

func (p *Page) QueryImages(_ context.Context, selector string) ([]page.Image, error) {
	doc, base := p.snapshot()
	sel, err := find(doc, selector)
	if err != nil {
		return nil, err
	}
	imgs := make([]page.Image, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		imgs = append(imgs, toImage(s, base))
	})
	return imgs, nil
}

func (p *Page) Count(_ context.Context, selector string) (int, error) {
	doc, _ := p.snapshot()
	sel, err := find(doc, selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

// CountInViewport treats the whole document as visible.
func (p *Page) CountInViewport(ctx context.Context, selector string) (int, error) {
	return p.Count(ctx, selector)
}

func (p *Page) InViewport(ctx context.Context, selector string) (bool, error) {
	return page.Exists(ctx, p, selector)
}

func (p *Page) Viewport(context.Context) (page.Viewport, error) {
	return page.Viewport{}, nil
}

// Click follows the href of the first match, resolved against the page.
func (p *Page) Click(ctx context.Context, selector string) error {
	doc, base := p.snapshot()
	sel, err := find(doc, selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return fmt.Errorf("click: no element matches %q", selector)
	}
	href, ok := sel.First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return fmt.Errorf("click: %q has no followable href", selector)
	}
	next, err := base.Parse(href)
	if err != nil {
		return fmt.Errorf("click: invalid href %q: %w", href, err)
	}
	return p.load(ctx, next)
}

func (p *Page) ScrollIntoView(context.Context, string, int) error { return nil }
func (p *Page) ScrollBy(context.Context, int) error              { return nil }
func (p *Page) ScrollTo(context.Context, int) error              { return nil }

// Observe fires whenever Click loads a new document. The target is only
// checked for existence.
func (p *Page) Observe(ctx context.Context, target string) (*page.Subscription, error) {
	if target != "" {
		ok, err := page.Exists(ctx, p, target)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("observe: no element matches %q", target)
		}
	}

	ch := make(chan struct{}, 1)
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.watches[id] = ch
	p.mu.Unlock()

	return page.NewSubscription(ch, func() {
		p.mu.Lock()
		delete(p.watches, id)
		p.mu.Unlock()
	}), nil
}

// find runs a CSS selector. goquery matches nothing for selectors it
// cannot compile, so those are reported instead of read as "absent".
func find(doc *goquery.Document, selector string) (*goquery.Selection, error) {
	if _, err := cascadia.Compile(selector); err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return doc.Find(selector), nil
}

func toImage(s *goquery.Selection, base *url.URL) page.Image {
	img := page.Image{Complete: true, NaturalWidth: 1, NaturalHeight: 1}
	if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
		if u, err := base.Parse(strings.TrimSpace(src)); err == nil {
			img.Src = u.String()
		}
	}
	img.DataSrc, _ = s.Attr("data-src")
	if w, err := strconv.Atoi(s.AttrOr("width", "")); err == nil && w > 0 {
		img.NaturalWidth = w
	}
	if h, err := strconv.Atoi(s.AttrOr("height", "")); err == nil && h > 0 {
		img.NaturalHeight = h
	}
	return img
}
