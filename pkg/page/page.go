// Package page defines the live document a traversal strategy drives.
//
// Strategies never talk to a browser directly. They query elements by CSS
// selector, perform the two permitted mutations (clicking a control and
// scrolling), and subscribe to DOM mutation notifications. The rod engine
// in internal/browser and the HTML engine in internal/static both satisfy
// Page.
package page

import (
	"context"
	"sync"
)

// Image is a snapshot of an <img> element.
type Image struct {
	// Src is the resolved src property (absolute URL).
	Src string
	// DataSrc is the raw data-src attribute, empty when absent.
	DataSrc string
	// Complete mirrors HTMLImageElement.complete.
	Complete bool
	// NaturalWidth and NaturalHeight are zero until the image has decoded.
	NaturalWidth  int
	NaturalHeight int
}

// Ready reports whether the image finished loading with real content.
func (i Image) Ready() bool {
	return i.Complete && i.NaturalHeight != 0
}

// Viewport describes the scroll state of the document.
type Viewport struct {
	Height         int
	ScrollY        int
	DocumentHeight int
}

// AtBottom reports whether the viewport reaches the end of the document.
func (v Viewport) AtBottom() bool {
	return v.Height+v.ScrollY >= v.DocumentHeight
}

// Document answers read-only questions about the page.
type Document interface {
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// QueryImage returns the first match, or nil when nothing matches.
	QueryImage(ctx context.Context, selector string) (*Image, error)
	QueryImages(ctx context.Context, selector string) ([]Image, error)
	Count(ctx context.Context, selector string) (int, error)
	// CountInViewport counts matches lying entirely inside the viewport.
	CountInViewport(ctx context.Context, selector string) (int, error)
	// InViewport reports whether the first match lies entirely inside the
	// viewport. It is false when nothing matches.
	InViewport(ctx context.Context, selector string) (bool, error)
	Viewport(ctx context.Context) (Viewport, error)
}

// Driver performs the page mutations a traversal is allowed to make.
type Driver interface {
	Click(ctx context.Context, selector string) error
	// ScrollIntoView scrolls so the first match sits margin pixels below
	// the top of the viewport.
	ScrollIntoView(ctx context.Context, selector string, margin int) error
	ScrollBy(ctx context.Context, dy int) error
	ScrollTo(ctx context.Context, y int) error
}

// MutationSource delivers DOM mutation notifications.
type MutationSource interface {
	// Observe watches the subtree rooted at the first match of target
	// (child list, attributes, descendants). An empty target means the
	// document body.
	Observe(ctx context.Context, target string) (*Subscription, error)
}

// Page is everything a traversal strategy needs.
type Page interface {
	Document
	Driver
	MutationSource
}

// Subscription is a live mutation watch. C receives a value whenever the
// watched subtree changes; bursts may be coalesced.
type Subscription struct {
	C <-chan struct{}

	once   sync.Once
	cancel func()
}

// NewSubscription wraps a notification channel and its teardown.
func NewSubscription(c <-chan struct{}, cancel func()) *Subscription {
	return &Subscription{C: c, cancel: cancel}
}

// Close stops the watch. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Exists reports whether selector matches anything.
func Exists(ctx context.Context, d Document, selector string) (bool, error) {
	n, err := d.Count(ctx, selector)
	return n > 0, err
}
