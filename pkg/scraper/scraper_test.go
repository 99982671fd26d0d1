package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/page"
	"imgscraper/pkg/page/pagetest"
	"imgscraper/pkg/poll"
	"imgscraper/pkg/profile"
	"imgscraper/pkg/sink"
)

const (
	imageSel    = "#slideshow img"
	nextSel     = "a.next"
	listSel     = ".grid img"
	moreSel     = ".more a"
	spinnerSel  = ".spinner"
	loadingSel  = `img[src$="loading.gif"]`
	galleryURL  = "https://gallery.example.com/photos/1"
	galleryName = "Summer: Beach/Day"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Report(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []EventKind
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

type harness struct {
	scraper *Scraper
	sink    *sink.Recorder
	clock   *poll.FakeClock
	events  *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{sink: &sink.Recorder{}, clock: poll.NewFakeClock(), events: &eventLog{}}
	s, err := New(Config{Sink: h.sink, Reporter: h.events, Logger: logger.NewNopLogger(), Clock: h.clock})
	require.NoError(t, err)
	h.scraper = s
	return h
}

func sequentialProfile() profile.SiteProfile {
	return profile.SiteProfile{
		MatchKey:  "gallery.example.com",
		Strategy:  profile.SequentialPagination,
		Selectors: profile.Selectors{profile.PrimaryImage: imageSel, profile.NextControl: nextSel},
		Options:   profile.SequentialDefaults(),
	}
}

func scrollProfile() profile.SiteProfile {
	opts := profile.ScrollDefaults()
	return profile.SiteProfile{
		MatchKey: "gallery.example.com",
		Strategy: profile.IncrementalScroll,
		Selectors: profile.Selectors{
			profile.ImageList:        listSel,
			profile.LoadMoreControl:  moreSel,
			profile.LoadingIndicator: spinnerSel,
			profile.LoadingImage:     loadingSel,
		},
		Options: opts,
	}
}

func assertNoDuplicates(t *testing.T, urls []string) {
	t.Helper()
	seen := map[string]bool{}
	for _, u := range urls {
		assert.False(t, seen[u], "url %s emitted twice", u)
		seen[u] = true
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSequentialStopsOnDuplicate(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	urls := []string{
		"https://cdn.example.com/full/1.jpg?w=1200",
		"https://cdn.example.com/full/2.jpg",
		"https://cdn.example.com/full/3.jpg",
	}
	pagetest.Slideshow(f, imageSel, nextSel, urls)

	res := h.scraper.Run(context.Background(), f, sequentialProfile())

	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.True(t, res.Success())
	assert.Equal(t, 3, res.Emitted)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, urls, h.sink.URLs())
	assertNoDuplicates(t, h.sink.URLs())

	reqs := h.sink.Requests()
	assert.Equal(t, "Summer_ Beach_Day/1.jpg", reqs[0].Filename)
	assert.Equal(t, galleryURL, reqs[0].Referer)
	assert.Equal(t, []string{nextSel, nextSel, nextSel}, f.Clicks())
	assert.Equal(t, 0, f.Subscribers(), "every change watch must be closed")

	done := h.events.last()
	assert.Equal(t, EventDone, done.Kind)
	assert.Equal(t, ReasonDuplicate, done.Reason)
	assert.Equal(t, 3, done.Count)
	assert.Contains(t, done.Message, "3 images")
}

func TestSequentialWaitsBetweenPages(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	pagetest.Slideshow(f, imageSel, nextSel, []string{"https://e.com/a.jpg", "https://e.com/b.jpg"})

	h.scraper.Run(context.Background(), f, sequentialProfile())

	// settle then download delay after each of the two page changes
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, 500 * time.Millisecond,
		500 * time.Millisecond, 500 * time.Millisecond,
	}, h.clock.Sleeps())
}

func TestSequentialNoNextControl(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	pages := []string{"https://e.com/1.jpg", "https://e.com/2.jpg", "https://e.com/3.jpg"}
	idx := 0
	f.SetImages(imageSel, pagetest.ReadyImage(pages[0]))
	f.SetCount(nextSel, 1)
	f.OnClick(nextSel, func(f *pagetest.Fake) {
		idx++
		f.SetImages(imageSel, pagetest.ReadyImage(pages[idx]))
		if idx == len(pages)-1 {
			f.SetCount(nextSel, 0)
		}
	})

	res := h.scraper.Run(context.Background(), f, sequentialProfile())

	assert.Equal(t, ReasonNoNextControl, res.Reason)
	assert.False(t, res.Success())
	assert.Equal(t, errs.ErrorTypeMissingControl, res.Reason.Kind())
	assert.Equal(t, 3, res.Emitted)
	assert.Equal(t, pages, h.sink.URLs())
}

func TestSequentialLoadTimeout(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(imageSel, page.Image{Src: "https://e.com/broken.jpg", Complete: true, NaturalHeight: 0})
	f.SetCount(nextSel, 1)

	res := h.scraper.Run(context.Background(), f, sequentialProfile())

	assert.Equal(t, ReasonLoadTimeout, res.Reason)
	assert.Equal(t, errs.ErrorTypeTimeout, res.Reason.Kind())
	assert.Zero(t, res.Emitted)
	assert.Empty(t, h.sink.URLs())
	assert.Len(t, h.clock.Sleeps(), 20, "10s timeout at 500ms spacing")
	assert.Equal(t, 10*time.Second, h.clock.Elapsed())
}

func TestSequentialImageAppearsLate(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetCount(nextSel, 0)
	h.clock.OnSleep(func(elapsed time.Duration) {
		if elapsed == 2*time.Second {
			f.SetImages(imageSel, pagetest.ReadyImage("https://e.com/late.jpg"))
		}
	})

	res := h.scraper.Run(context.Background(), f, sequentialProfile())

	assert.Equal(t, ReasonNoNextControl, res.Reason)
	assert.Equal(t, []string{"https://e.com/late.jpg"}, h.sink.URLs())
}

func TestSequentialPageChangeTimeout(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(imageSel, pagetest.ReadyImage("https://e.com/stuck.jpg"))
	f.SetCount(nextSel, 1)
	f.OnClick(nextSel, func(*pagetest.Fake) {})

	res := h.scraper.Run(context.Background(), f, sequentialProfile())

	assert.Equal(t, ReasonPageChangeTimeout, res.Reason)
	assert.Equal(t, 1, res.Emitted)
	assert.Equal(t, 0, f.Subscribers())
}

func TestSequentialCancelled(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	pagetest.Slideshow(f, imageSel, nextSel, []string{"https://e.com/1.jpg", "https://e.com/2.jpg"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.scraper.Run(ctx, f, sequentialProfile())

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.False(t, res.Success())
}

type failingClick struct {
	*pagetest.Fake
}

func (failingClick) Click(context.Context, string) error { return errors.New("target closed") }

func TestSequentialPageError(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	pagetest.Slideshow(f, imageSel, nextSel, []string{"https://e.com/1.jpg", "https://e.com/2.jpg"})

	res := h.scraper.Run(context.Background(), failingClick{f}, sequentialProfile())

	assert.Equal(t, ReasonPageError, res.Reason)
	assert.EqualError(t, res.Err, "target closed")
	assert.Equal(t, 1, res.Emitted)
}

func TestSinkErrorsAreNotFatal(t *testing.T) {
	h := newHarness(t)
	h.sink.Err = errors.New("queue full")
	f := pagetest.New(galleryURL, galleryName)
	pagetest.Slideshow(f, imageSel, nextSel, []string{"https://e.com/1.jpg", "https://e.com/2.jpg"})

	res := h.scraper.Run(context.Background(), f, sequentialProfile())

	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.Equal(t, 0, res.Emitted)
	assert.Equal(t, 2, res.SinkErrors)
	assert.Len(t, h.sink.Requests(), 2)
}

func TestInvalidProfile(t *testing.T) {
	h := newHarness(t)
	p := sequentialProfile()
	delete(p.Selectors, profile.NextControl)

	res := h.scraper.Run(context.Background(), pagetest.New(galleryURL, ""), p)
	assert.Equal(t, ReasonPageError, res.Reason)
	assert.ErrorContains(t, res.Err, "nextControl")
}

func TestScrollLoadMoreThenExhausted(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"), pagetest.ReadyImage("https://e.com/2.jpg"))
	f.SetCount(moreSel, 1)
	f.SetInViewport(moreSel, true)
	f.OnClick(moreSel, func(f *pagetest.Fake) {
		f.AppendImages(listSel, pagetest.ReadyImage("https://e.com/3.jpg"), pagetest.ReadyImage("https://e.com/2.jpg"))
		f.SetCount(moreSel, 0)
	})

	res := h.scraper.Run(context.Background(), f, scrollProfile())

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.True(t, res.Success())
	assert.Equal(t, 3, res.Emitted)
	assert.Equal(t, []string{"https://e.com/1.jpg", "https://e.com/2.jpg", "https://e.com/3.jpg"}, h.sink.URLs())
	assert.Equal(t, []string{moreSel}, f.Clicks())

	kinds := h.events.kinds()
	assert.Equal(t, EventStarted, kinds[0])
	assert.Contains(t, kinds, EventLoadMore)
	assert.Equal(t, EventDone, kinds[len(kinds)-1])
	assert.Equal(t, "No more images to load, 3 images downloaded", h.events.last().Message)
}

func TestScrollLoadMoreOutOfView(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"))
	f.SetCount(moreSel, 1)
	f.OnClick(moreSel, func(f *pagetest.Fake) { f.SetCount(moreSel, 0) })

	res := h.scraper.Run(context.Background(), f, scrollProfile())

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, []string{moreSel}, f.Clicks())
	sleeps := h.clock.Sleeps()
	require.GreaterOrEqual(t, len(sleeps), 2)
	assert.Equal(t, time.Second, sleeps[0], "initial delay")
	assert.Equal(t, 500*time.Millisecond, sleeps[1], "settle after scrolling the control into view")
}

func TestScrollLoadMoreIndicatorClears(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"), pagetest.ReadyImage("https://e.com/2.jpg"))
	f.SetCount(moreSel, 1)
	f.SetInViewport(moreSel, true)

	var clickedAt time.Duration
	loading := false
	f.OnClick(moreSel, func(f *pagetest.Fake) {
		clickedAt = h.clock.Elapsed()
		loading = true
		f.SetCount(spinnerSel, 1)
	})
	h.clock.OnSleep(func(elapsed time.Duration) {
		if loading && elapsed-clickedAt >= 3*time.Second {
			loading = false
			f.SetCount(spinnerSel, 0)
			f.SetCount(moreSel, 0)
			f.AppendImages(listSel, pagetest.ReadyImage("https://e.com/3.jpg"))
		}
	})

	res := h.scraper.Run(context.Background(), f, scrollProfile())

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, 3, res.Emitted)
	urls := h.sink.URLs()
	assert.Equal(t, []string{"https://e.com/1.jpg", "https://e.com/2.jpg", "https://e.com/3.jpg"}, urls)
	assertNoDuplicates(t, urls)
	assert.Equal(t, []string{moreSel}, f.Clicks())
	assert.False(t, loading, "indicator should have cleared before the run ended")
}

func TestScrollLoadMoreTimeout(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"))
	f.SetCount(moreSel, 1)
	f.SetInViewport(moreSel, true)
	f.OnClick(moreSel, func(f *pagetest.Fake) { f.SetCount(spinnerSel, 1) })

	res := h.scraper.Run(context.Background(), f, scrollProfile())

	assert.Equal(t, ReasonLoadMoreTimeout, res.Reason)
	assert.Equal(t, 1, res.Emitted)
	// initial delay, then 50 polls of 200ms within the 10s bound
	assert.Equal(t, time.Second+10*time.Second, h.clock.Elapsed())
}

func TestScrollWaitsForLoadingImages(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(listSel, page.Image{Src: "https://e.com/loading.gif"})
	f.SetImages(loadingSel, page.Image{Src: "https://e.com/loading.gif"})
	f.SetVisible(loadingSel, 1)
	h.clock.OnSleep(func(elapsed time.Duration) {
		if elapsed == time.Second+600*time.Millisecond {
			f.SetImages(loadingSel)
			f.SetVisible(loadingSel, 0)
			f.SetImages(listSel, pagetest.ReadyImage("https://e.com/real.jpg"))
		}
	})

	p := scrollProfile()
	delete(p.Selectors, profile.LoadMoreControl)
	res := h.scraper.Run(context.Background(), f, p)

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, []string{"https://e.com/real.jpg"}, h.sink.URLs())
	assert.Contains(t, h.events.kinds(), EventWaiting)
}

func TestScrollStepCappedUntilBottom(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetViewport(page.Viewport{Height: 800, DocumentHeight: 2000})
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"))

	p := scrollProfile()
	delete(p.Selectors, profile.LoadMoreControl)
	res := h.scraper.Run(context.Background(), f, p)

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, []int{300, 300, 300, 300}, f.Scrolls())
}

func TestScrollNewImagesAtBottomContinue(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"))
	lazyLoaded := false
	h.clock.OnSleep(func(elapsed time.Duration) {
		// content arrives during the first bottom wait
		if !lazyLoaded && elapsed >= time.Second+200*time.Millisecond+2*time.Second {
			lazyLoaded = true
			f.AppendImages(listSel, pagetest.ReadyImage("https://e.com/2.jpg"))
		}
	})

	p := scrollProfile()
	delete(p.Selectors, profile.LoadMoreControl)
	res := h.scraper.Run(context.Background(), f, p)

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, []string{"https://e.com/1.jpg", "https://e.com/2.jpg"}, h.sink.URLs())
}

func TestScrollDataSrcPlaceholdersTerminate(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New("https://xx.knit.bid/article/9.html", "Set 9")
	placeholder := "https://xx.knit.bid/static/zde/timg.gif"
	f.SetImages(listSel,
		page.Image{Src: placeholder, DataSrc: "/uploads/a.jpg"},
		page.Image{Src: placeholder, DataSrc: "/uploads/b.jpg"},
		page.Image{Src: placeholder, DataSrc: "/uploads/a.jpg"},
	)

	p := scrollProfile()
	delete(p.Selectors, profile.LoadMoreControl)
	p.Options.Normalize = profile.DataSrc
	res := h.scraper.Run(context.Background(), f, p)

	assert.Equal(t, ReasonExhausted, res.Reason)
	assert.Equal(t, []string{"https://xx.knit.bid/uploads/a.jpg", "https://xx.knit.bid/uploads/b.jpg"}, h.sink.URLs())
	assert.Equal(t, "Set 9/a.jpg", h.sink.Requests()[0].Filename)
}

func TestScrollCancelledMidRun(t *testing.T) {
	h := newHarness(t)
	f := pagetest.New(galleryURL, galleryName)
	f.SetViewport(page.Viewport{Height: 800, DocumentHeight: 100000})
	f.SetImages(listSel, pagetest.ReadyImage("https://e.com/1.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	h.clock.OnSleep(func(elapsed time.Duration) {
		if elapsed > 5*time.Second {
			cancel()
		}
	})

	p := scrollProfile()
	delete(p.Selectors, profile.LoadMoreControl)
	res := h.scraper.Run(ctx, f, p)

	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Equal(t, 1, res.Emitted)
}

func TestReasonClassification(t *testing.T) {
	assert.True(t, ReasonDuplicate.Success())
	assert.True(t, ReasonExhausted.Success())
	for _, r := range []Reason{ReasonLoadTimeout, ReasonPageChangeTimeout, ReasonLoadMoreTimeout, ReasonNoNextControl, ReasonCancelled, ReasonPageError} {
		assert.False(t, r.Success(), string(r))
		assert.NotEmpty(t, r.Kind(), string(r))
	}
}

func TestLogReporter(t *testing.T) {
	tl := logger.NewTestLogger()
	rep := Reporters(LogReporter{Logger: tl}, nil)

	rep.Report(Event{Kind: EventImage, Message: "Downloaded 1 images", URL: "u", Count: 1})
	rep.Report(Event{Kind: EventDone, Message: "Image load timed out", Reason: ReasonLoadTimeout})

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "load-timeout", warns[0].Fields["reason"])
}
