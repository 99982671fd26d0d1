package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"imgscraper/pkg/dedup"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/naming"
	"imgscraper/pkg/page"
	"imgscraper/pkg/poll"
	"imgscraper/pkg/profile"
	"imgscraper/pkg/sink"
)

// DiscoveredImage is an image ready to hand to the sink.
type DiscoveredImage struct {
	SourceURL string
	Filename  string
}

// Config wires a Scraper. Only Sink is required.
type Config struct {
	Sink     sink.Sink
	Reporter Reporter
	Logger   logger.Logger
	// Clock defaults to poll.RealClock.
	Clock poll.Sleeper
}

// Scraper runs traversal strategies against live pages.
type Scraper struct {
	sink     sink.Sink
	reporter Reporter
	logger   logger.Logger
	clock    poll.Sleeper
}

// New creates a Scraper.
func New(cfg Config) (*Scraper, error) {
	if cfg.Sink == nil {
		return nil, errors.New("scraper: sink is required")
	}
	s := &Scraper{
		sink:     cfg.Sink,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
	}
	if s.reporter == nil {
		s.reporter = nopReporter{}
	}
	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	if s.clock == nil {
		s.clock = poll.RealClock
	}
	return s, nil
}

// run is the state of one traversal.
type run struct {
	*Scraper
	id         string
	profile    profile.SiteProfile
	page       page.Page
	seen       *dedup.Set
	emitted    int
	sinkErrors int
	log        logger.Logger
}

// Run traverses p with prof until a terminal state. It never panics on
// page failures; those end the run with ReasonPageError.
func (s *Scraper) Run(ctx context.Context, p page.Page, prof profile.SiteProfile) Result {
	start := time.Now()
	r := &run{
		Scraper: s,
		id:      uuid.NewString(),
		profile: prof,
		page:    p,
		seen:    dedup.New(),
	}
	r.log = s.logger.WithFields(map[string]interface{}{
		"run_id":   r.id,
		"profile":  prof.MatchKey,
		"strategy": string(prof.Strategy),
	})
	r.log.Info("Traversal started")

	var (
		reason Reason
		err    error
	)
	if verr := prof.Validate(); verr != nil {
		reason, err = ReasonPageError, verr
	} else {
		switch prof.Strategy {
		case profile.SequentialPagination:
			reason, err = r.sequential(ctx)
		case profile.IncrementalScroll:
			reason, err = r.scroll(ctx)
		}
	}

	res := Result{
		RunID:      r.id,
		Reason:     reason,
		Emitted:    r.emitted,
		SinkErrors: r.sinkErrors,
		Duration:   time.Since(start),
		Err:        err,
	}

	msg := reason.Describe()
	if reason == ReasonExhausted || reason == ReasonDuplicate {
		msg = fmt.Sprintf("%s, %d images downloaded", msg, r.emitted)
	} else if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	r.report(Event{Kind: EventDone, Message: msg, Reason: reason})
	logger.LogRunSummary(r.log.WithField("sink_errors", r.sinkErrors), string(reason), res.Success(), r.emitted, res.Duration)
	return res
}

func (r *run) report(e Event) {
	e.Count = r.emitted
	e.RunID = r.id
	r.reporter.Report(e)
}

func (r *run) sleep(ctx context.Context, d time.Duration) error {
	return r.clock.Sleep(ctx, d)
}

// fail maps an error from the page or a wait onto a terminal reason.
func (r *run) fail(ctx context.Context, err error) (Reason, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return ReasonCancelled, err
	}
	r.log.WithError(err).Error("Page operation failed")
	return ReasonPageError, err
}

// emit marks url seen and hands it to the sink. Sink failures are
// counted, not fatal.
func (r *run) emit(ctx context.Context, url, pageURL string) error {
	r.seen.MarkSeen(url)

	title, err := r.page.Title(ctx)
	if err != nil {
		return fmt.Errorf("failed to read title: %w", err)
	}
	img := DiscoveredImage{SourceURL: url, Filename: naming.Target(title, url)}

	err = r.sink.Emit(ctx, sink.Request{URL: img.SourceURL, Filename: img.Filename, Referer: pageURL})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.sinkErrors++
		r.log.WithError(err).WithField("url", url).Warn("Sink rejected image")
		return nil
	}

	r.emitted++
	r.report(Event{
		Kind:     EventImage,
		Message:  fmt.Sprintf("Downloaded %d images", r.emitted),
		URL:      img.SourceURL,
		Filename: img.Filename,
	})
	return nil
}
