package scraper

import (
	"context"

	"imgscraper/pkg/page"
	"imgscraper/pkg/poll"
	"imgscraper/pkg/profile"
)

// scroll discovers images on an infinite-scroll page. It alternates
// between collecting new images, clicking the load-more control when one
// exists and scrolling down, until the bottom yields nothing new.
func (r *run) scroll(ctx context.Context) (Reason, error) {
	opts := r.profile.Options
	loadingImage := r.profile.Selector(profile.LoadingImage)
	loadMore := r.profile.Selector(profile.LoadMoreControl)

	if err := r.page.ScrollTo(ctx, 0); err != nil {
		return r.fail(ctx, err)
	}
	if err := r.sleep(ctx, opts.InitialDelay); err != nil {
		return r.fail(ctx, err)
	}
	r.report(Event{Kind: EventStarted, Message: "Starting to load images..."})

	for {
		if loadingImage != "" {
			if err := r.waitForLoadingImages(ctx, loadingImage); err != nil {
				return r.fail(ctx, err)
			}
		}

		if err := r.collect(ctx); err != nil {
			return r.fail(ctx, err)
		}

		if loadMore != "" {
			clicked, err := r.clickLoadMore(ctx, loadMore)
			if err != nil {
				return r.fail(ctx, err)
			}
			if clicked {
				cleared, err := r.waitForLoadMore(ctx)
				if err != nil {
					return r.fail(ctx, err)
				}
				if !cleared {
					return ReasonLoadMoreTimeout, nil
				}
				if err := r.sleep(ctx, opts.LoadMoreSettle); err != nil {
					return r.fail(ctx, err)
				}
				continue
			}
		}

		atBottom, err := r.scrollStep(ctx)
		if err != nil {
			return r.fail(ctx, err)
		}
		if !atBottom {
			continue
		}

		if err := r.sleep(ctx, opts.BottomWait); err != nil {
			return r.fail(ctx, err)
		}
		fresh, err := r.hasUnseen(ctx)
		if err != nil {
			return r.fail(ctx, err)
		}
		if !fresh {
			return ReasonExhausted, nil
		}
	}
}

// waitForLoadingImages waits, bounded by MaxWait, while placeholder images
// are on the page. It only waits when one is fully in view; running out
// of time is not fatal.
func (r *run) waitForLoadingImages(ctx context.Context, sel string) error {
	visible, err := r.page.CountInViewport(ctx, sel)
	if err != nil || visible == 0 {
		return err
	}

	r.report(Event{Kind: EventWaiting, Message: "Waiting for images to finish loading..."})
	_, err = poll.WaitFor(ctx, r.clock, r.profile.Options.PollInterval, r.profile.Options.MaxWait,
		func(ctx context.Context) (bool, error) {
			n, err := r.page.Count(ctx, sel)
			return n == 0, err
		})
	return err
}

// collect emits every listed image whose URL has not been seen.
func (r *run) collect(ctx context.Context) error {
	pageURL, err := r.page.URL(ctx)
	if err != nil {
		return err
	}
	imgs, err := r.page.QueryImages(ctx, r.profile.Selector(profile.ImageList))
	if err != nil {
		return err
	}

	for _, img := range imgs {
		if img.Src != "" && r.seen.Seen(img.Src) {
			continue
		}
		url := r.profile.NormalizeURL(img, pageURL)
		if url == "" || r.seen.Seen(url) {
			continue
		}
		if err := r.emit(ctx, url, pageURL); err != nil {
			return err
		}
	}
	return nil
}

// hasUnseen reports whether any listed image would produce a new URL.
func (r *run) hasUnseen(ctx context.Context) (bool, error) {
	pageURL, err := r.page.URL(ctx)
	if err != nil {
		return false, err
	}
	imgs, err := r.page.QueryImages(ctx, r.profile.Selector(profile.ImageList))
	if err != nil {
		return false, err
	}
	for _, img := range imgs {
		if url := r.profile.NormalizeURL(img, pageURL); url != "" && !r.seen.Seen(url) {
			return true, nil
		}
	}
	return false, nil
}

// clickLoadMore brings the control fully into view and clicks it. It
// reports false when there is no control to click.
func (r *run) clickLoadMore(ctx context.Context, sel string) (bool, error) {
	present, err := page.Exists(ctx, r.page, sel)
	if err != nil || !present {
		return false, err
	}

	inView, err := r.page.InViewport(ctx, sel)
	if err != nil {
		return false, err
	}
	if !inView {
		if err := r.page.ScrollIntoView(ctx, sel, r.profile.Options.ViewportMargin); err != nil {
			return false, err
		}
		if err := r.sleep(ctx, r.profile.Options.ScrollSettle); err != nil {
			return false, err
		}
		// Scrolling can replace the control.
		present, err = page.Exists(ctx, r.page, sel)
		if err != nil || !present {
			return false, err
		}
	}

	if err := r.page.Click(ctx, sel); err != nil {
		return false, err
	}
	r.report(Event{Kind: EventLoadMore, Message: "Clicked load more..."})
	return true, nil
}

// waitForLoadMore waits for the loading indicator to go away. A profile
// without an indicator counts as cleared.
func (r *run) waitForLoadMore(ctx context.Context) (bool, error) {
	sel := r.profile.Selector(profile.LoadingIndicator)
	if sel == "" {
		return true, nil
	}
	return poll.WaitFor(ctx, r.clock, r.profile.Options.PollInterval, r.profile.Options.LoadMoreWait,
		func(ctx context.Context) (bool, error) {
			present, err := page.Exists(ctx, r.page, sel)
			return !present, err
		})
}

// scrollStep scrolls down one step and reports whether the viewport now
// reaches the end of the document.
func (r *run) scrollStep(ctx context.Context) (bool, error) {
	opts := r.profile.Options

	vp, err := r.page.Viewport(ctx)
	if err != nil {
		return false, err
	}
	step := opts.ScrollStep
	if step <= 0 {
		step = vp.Height - 100
	}
	if opts.ScrollStepCap > 0 && step > opts.ScrollStepCap {
		step = opts.ScrollStepCap
	}
	if step < 1 {
		step = 1
	}

	if err := r.page.ScrollBy(ctx, step); err != nil {
		return false, err
	}
	if err := r.sleep(ctx, opts.ScrollInterval); err != nil {
		return false, err
	}

	vp, err = r.page.Viewport(ctx)
	if err != nil {
		return false, err
	}
	return vp.AtBottom(), nil
}
