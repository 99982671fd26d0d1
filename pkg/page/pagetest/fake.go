// Package pagetest provides an in-memory page.Page for strategy tests.
package pagetest

import (
	"context"
	"fmt"
	"sync"

	"imgscraper/pkg/page"
)

// Fake is a scripted document. Elements are keyed by the exact selector
// string a profile uses; there is no CSS engine. Every mutation made
// through its setters notifies open subscriptions.
type Fake struct {
	mu       sync.Mutex
	url      string
	title    string
	images   map[string][]page.Image
	counts   map[string]int
	visible  map[string]int
	inView   map[string]bool
	viewport page.Viewport
	onClick  map[string]func(*Fake)
	onScroll func(*Fake)
	subs     map[int]chan struct{}
	nextSub  int

	clicks  []string
	scrolls []int
}

// New returns an empty page at url.
func New(url, title string) *Fake {
	return &Fake{
		url:      url,
		title:    title,
		images:   make(map[string][]page.Image),
		counts:   make(map[string]int),
		visible:  make(map[string]int),
		inView:   make(map[string]bool),
		onClick:  make(map[string]func(*Fake)),
		subs:     make(map[int]chan struct{}),
		viewport: page.Viewport{Height: 800, DocumentHeight: 800},
	}
}

// ReadyImage builds a fully decoded image.
func ReadyImage(src string) page.Image {
	return page.Image{Src: src, Complete: true, NaturalWidth: 640, NaturalHeight: 480}
}

// SetImages replaces the images matched by selector.
func (f *Fake) SetImages(selector string, imgs ...page.Image) {
	f.mu.Lock()
	f.images[selector] = append([]page.Image(nil), imgs...)
	f.mu.Unlock()
	f.Notify()
}

// AppendImages adds images to those matched by selector.
func (f *Fake) AppendImages(selector string, imgs ...page.Image) {
	f.mu.Lock()
	f.images[selector] = append(f.images[selector], imgs...)
	f.mu.Unlock()
	f.Notify()
}

// SetCount sets how many non-image elements match selector.
func (f *Fake) SetCount(selector string, n int) {
	f.mu.Lock()
	f.counts[selector] = n
	f.mu.Unlock()
	f.Notify()
}

// SetVisible sets how many matches of selector lie inside the viewport.
func (f *Fake) SetVisible(selector string, n int) {
	f.mu.Lock()
	f.visible[selector] = n
	f.mu.Unlock()
}

// SetInViewport marks whether the first match of selector is in view.
func (f *Fake) SetInViewport(selector string, in bool) {
	f.mu.Lock()
	f.inView[selector] = in
	f.mu.Unlock()
}

// SetTitle changes the document title.
func (f *Fake) SetTitle(title string) {
	f.mu.Lock()
	f.title = title
	f.mu.Unlock()
}

// SetViewport replaces the scroll geometry.
func (f *Fake) SetViewport(v page.Viewport) {
	f.mu.Lock()
	f.viewport = v
	f.mu.Unlock()
}

// OnClick registers the effect of clicking selector. Clicking a selector
// without a handler fails as if the element were missing.
func (f *Fake) OnClick(selector string, fn func(*Fake)) {
	f.mu.Lock()
	f.onClick[selector] = fn
	f.mu.Unlock()
}

// OnScroll registers a hook run after every scroll.
func (f *Fake) OnScroll(fn func(*Fake)) {
	f.mu.Lock()
	f.onScroll = fn
	f.mu.Unlock()
}

// Notify wakes every open subscription.
func (f *Fake) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}

// Clicks returns the selectors clicked so far.
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

// Scrolls returns the ScrollBy deltas applied so far.
func (f *Fake) Scrolls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.scrolls...)
}

// Subscribers returns the number of open subscriptions.
func (f *Fake) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Fake) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *Fake) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, nil
}

func (f *Fake) QueryImage(ctx context.Context, selector string) (*page.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	imgs := f.images[selector]
	if len(imgs) == 0 {
		return nil, nil
	}
	img := imgs[0]
	return &img, nil
}

func (f *Fake) QueryImages(ctx context.Context, selector string) ([]page.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]page.Image(nil), f.images[selector]...), nil
}

func (f *Fake) Count(ctx context.Context, selector string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if imgs, ok := f.images[selector]; ok {
		return len(imgs), nil
	}
	return f.counts[selector], nil
}

func (f *Fake) CountInViewport(ctx context.Context, selector string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[selector], nil
}

func (f *Fake) InViewport(ctx context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inView[selector], nil
}

func (f *Fake) Viewport(ctx context.Context) (page.Viewport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewport, nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	fn, ok := f.onClick[selector]
	f.clicks = append(f.clicks, selector)
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("pagetest: no element matches %q", selector)
	}
	if fn != nil {
		fn(f)
	}
	return nil
}

func (f *Fake) ScrollIntoView(ctx context.Context, selector string, margin int) error {
	f.mu.Lock()
	f.inView[selector] = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) ScrollBy(ctx context.Context, dy int) error {
	f.mu.Lock()
	f.scrolls = append(f.scrolls, dy)
	f.viewport.ScrollY += dy
	f.clampLocked()
	hook := f.onScroll
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *Fake) ScrollTo(ctx context.Context, y int) error {
	f.mu.Lock()
	f.viewport.ScrollY = y
	f.clampLocked()
	hook := f.onScroll
	f.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *Fake) clampLocked() {
	maxY := f.viewport.DocumentHeight - f.viewport.Height
	if f.viewport.ScrollY > maxY {
		f.viewport.ScrollY = maxY
	}
	if f.viewport.ScrollY < 0 {
		f.viewport.ScrollY = 0
	}
}

func (f *Fake) Observe(ctx context.Context, target string) (*page.Subscription, error) {
	c := make(chan struct{}, 1)
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = c
	f.mu.Unlock()

	return page.NewSubscription(c, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}), nil
}

var _ page.Page = (*Fake)(nil)
