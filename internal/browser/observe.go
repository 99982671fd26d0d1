package browser

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"imgscraper/pkg/page"
)

//go:embed observe.js
var observeJS string

const (
	bindingName = "__imgscraperMutation"
	jsUnobserve = `(id) => {
		const w = window.__imgscraperWatches && window.__imgscraperWatches[id];
		if (w) { w.disconnect(); delete window.__imgscraperWatches[id]; }
	}`
)

// Observe installs a MutationObserver on target and forwards its
// callbacks over a CDP binding.
func (p *Page) Observe(ctx context.Context, target string) (*page.Subscription, error) {
	if err := p.ensureBinding(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.nextID++
	id := "w" + strconv.Itoa(p.nextID)
	ch := make(chan struct{}, 1)
	p.watches[id] = ch
	p.mu.Unlock()

	res, err := p.eval(ctx, observeJS, id, target, bindingName)
	if err == nil && !res.Value.Bool() {
		err = fmt.Errorf("browser: observe: no element matches %q", target)
	}
	if err != nil {
		p.forget(id)
		return nil, err
	}

	return page.NewSubscription(ch, func() {
		p.forget(id)
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := p.eval(cctx, jsUnobserve, id); err != nil {
			p.log.WithError(err).Debug("Mutation observer teardown failed")
		}
	}), nil
}

func (p *Page) forget(id string) {
	p.mu.Lock()
	delete(p.watches, id)
	p.mu.Unlock()
}

// ensureBinding registers the page binding and starts the listener once.
func (p *Page) ensureBinding() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bound {
		return nil
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(p.rp); err != nil {
		return fmt.Errorf("browser: add binding: %w", err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	wait := p.rp.Context(lctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		p.notify(e.Payload)
	})
	go wait()

	p.stop = cancel
	p.bound = true
	return nil
}

// notify wakes the subscriber for id. A full buffer already holds a
// pending wake-up, so extra notifications are dropped.
func (p *Page) notify(id string) {
	p.mu.Lock()
	ch, ok := p.watches[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
