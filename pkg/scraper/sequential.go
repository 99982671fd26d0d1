package scraper

import (
	"context"
	"errors"

	"imgscraper/pkg/detect"
	"imgscraper/pkg/page"
	"imgscraper/pkg/poll"
	"imgscraper/pkg/profile"
)

// sequential walks a one-image-per-page gallery by clicking "next" until
// an image repeats, the control disappears or a wait times out.
func (r *run) sequential(ctx context.Context) (Reason, error) {
	opts := r.profile.Options
	imageSel := r.profile.Selector(profile.PrimaryImage)
	nextSel := r.profile.Selector(profile.NextControl)

	for {
		img, err := poll.Until(ctx, r.clock, opts.PollInterval, opts.ImageTimeout,
			func(ctx context.Context) (*page.Image, bool, error) {
				img, err := r.page.QueryImage(ctx, imageSel)
				if err != nil {
					return nil, false, err
				}
				return img, img != nil && img.Ready(), nil
			})
		if errors.Is(err, poll.ErrTimeout) {
			return ReasonLoadTimeout, nil
		}
		if err != nil {
			return r.fail(ctx, err)
		}

		pageURL, err := r.page.URL(ctx)
		if err != nil {
			return r.fail(ctx, err)
		}
		url := r.profile.NormalizeURL(*img, pageURL)
		if r.seen.Seen(url) {
			return ReasonDuplicate, nil
		}
		if err := r.emit(ctx, url, pageURL); err != nil {
			return r.fail(ctx, err)
		}

		hasNext, err := page.Exists(ctx, r.page, nextSel)
		if err != nil {
			return r.fail(ctx, err)
		}
		if !hasNext {
			return ReasonNoNextControl, nil
		}
		if err := r.page.Click(ctx, nextSel); err != nil {
			return r.fail(ctx, err)
		}

		previous := img.Src
		changed, err := detect.WaitForChange(ctx, r.page, r.profile.Selector(profile.ImageContainer),
			func(ctx context.Context) (bool, error) {
				cur, err := r.page.QueryImage(ctx, imageSel)
				if err != nil {
					return false, err
				}
				return cur != nil && cur.Src != previous, nil
			},
			detect.Options{Timeout: opts.PageChangeTimeout, Settle: opts.SettleDelay, Clock: r.clock})
		if err != nil {
			return r.fail(ctx, err)
		}
		if !changed {
			return ReasonPageChangeTimeout, nil
		}

		if err := r.sleep(ctx, opts.DownloadDelay); err != nil {
			return r.fail(ctx, err)
		}
	}
}
