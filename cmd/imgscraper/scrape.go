package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imgscraper/internal/browser"
	"imgscraper/internal/downloader"
	"imgscraper/internal/static"
	"imgscraper/pkg/auth"
	"imgscraper/pkg/checkpoint"
	"imgscraper/pkg/config"
	"imgscraper/pkg/fetch"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/page"
	"imgscraper/pkg/ratelimit"
	"imgscraper/pkg/retry"
	"imgscraper/pkg/scraper"
	"imgscraper/pkg/sink"
	"imgscraper/pkg/storage"
	"imgscraper/pkg/ui"
	"imgscraper/pkg/ui/tui"
)

var (
	useTUI      bool
	dryRun      bool
	listFormat  string
	profileName string
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Download every image of a gallery page",
	Long: `Open a gallery page, walk it with the site's profile and download each
distinct image into <output>/<page title>/.

The run stops when the gallery is exhausted or an image repeats (success,
exit code 0), or when a wait times out or a control is missing (exit code 1).`,
	Example: `  # Download a slideshow gallery
  imgscraper scrape https://www.imagefap.com/photo/123456/

  # List image URLs without downloading
  imgscraper scrape https://xx.knit.bid/article/42/ --dry-run --format json

  # Use the plain HTTP engine with a forced profile
  imgscraper scrape https://example.com/g/1 --engine static --profile default

  # Full-screen progress
  imgscraper scrape https://xx.knit.bid/article/42/ --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	f := scrapeCmd.Flags()
	f.StringP("output", "o", "", "output directory for downloads")
	f.String("engine", "", "page engine: rod (headless Chrome) or static (HTTP only)")
	f.String("remote-url", "", "DevTools WebSocket URL of a running Chrome")
	f.Bool("headless", true, "run Chrome without a window")
	f.Bool("respect-robots", false, "honor robots.txt (static engine)")
	f.String("user-agent", "", "user agent for page and image requests")
	f.Int("concurrent", 3, "number of concurrent downloads")
	f.Int("rate-limit", 60, "image requests per minute")
	f.Int("max-retries", 3, "download attempts per image")
	f.Duration("download-timeout", 30*time.Second, "timeout for one image download")
	f.Bool("overwrite", false, "replace files that already exist")
	f.Bool("notifications", true, "send a desktop notification when the run ends")
	f.BoolVar(&dryRun, "dry-run", false, "print image URLs and filenames instead of downloading")
	f.StringVar(&listFormat, "format", "tsv", "dry-run output format: tsv or json")
	f.StringVar(&profileName, "profile", "", "use this profile key instead of the page host")
	f.BoolVar(&useTUI, "tui", false, "use the interactive terminal UI")
}

func runScrape(cmd *cobra.Command, args []string) error {
	target, err := normalizeTarget(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if useTUI && cfg.Download.DryRun {
		useTUI = false
	}

	log, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	log = log.WithField("url", target)
	log.WithField("version", version).Info("imgscraper starting")

	resolver, err := loadResolver(cfg)
	if err != nil {
		return err
	}
	prof := resolver.Resolve(hostOf(target))
	if profileName != "" {
		if !resolver.Has(profileName) {
			return fmt.Errorf("unknown profile %q", profileName)
		}
		prof = resolver.Resolve(profileName)
	}

	site := lookupCookies(target, log)
	userAgent := cfg.Browser.UserAgent
	var cookies []*http.Cookie
	if site != nil {
		cookies = site.HTTPCookies()
		if site.UserAgent != "" {
			userAgent = site.UserAgent
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	display, waitDisplay := startDisplay(cfg, target, cancel)

	dl, err := newDownloads(cfg, target, userAgent, cookies, log)
	if err != nil {
		display.Close()
		waitDisplay()
		return err
	}
	drained := dl.drain(display)

	p, closePage, err := openPage(ctx, cfg, target, userAgent, cookies, log)
	if err != nil {
		dl.finish()
		<-drained
		display.Close()
		waitDisplay()
		return fmt.Errorf("failed to open page: %w", err)
	}

	record := openCheckpoint(cfg, target, prof.MatchKey, log)

	s, err := scraper.New(scraper.Config{
		Sink:     record.wrap(dl.sink),
		Reporter: scraper.Reporters(display, scraper.LogReporter{Logger: log}),
		Logger:   log,
	})
	if err != nil {
		closePage()
		dl.finish()
		<-drained
		display.Close()
		waitDisplay()
		return err
	}

	res := s.Run(ctx, p, prof)
	closePage()

	if res.Reason == scraper.ReasonCancelled {
		dl.abort()
	}
	dl.finish()
	<-drained
	display.Close()
	waitDisplay()

	dl.logStats(log)
	record.finish(res, log)
	ui.NewNotifierFromConfig(cfg.Notifications, os.Stderr).RunFinished(target, res)

	if !res.Success() {
		return exitError{code: 1}
	}
	return nil
}

// normalizeTarget adds https:// to bare hosts and rejects anything that is
// not an http(s) URL.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: want an http(s) page URL", raw)
	}
	return u.String(), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// setupLogging installs the global logger. The TUI owns the terminal, so
// in TUI mode logs only go to the configured file.
func setupLogging(cfg *config.Config) (logger.Logger, error) {
	if useTUI {
		if cfg.Logging.File == "" {
			l := logger.NewNopLogger()
			logger.SetLogger(l)
			return l, nil
		}
		l, err := logger.NewWithWriter(&cfg.Logging, io.Discard)
		if err != nil {
			return nil, err
		}
		logger.SetLogger(l)
		return l, nil
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return logger.GetLogger(), nil
}

func lookupCookies(target string, log logger.Logger) *auth.Site {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential manager unavailable")
		return nil
	}
	site, err := manager.Retrieve(hostOf(target))
	if err != nil {
		if !errors.Is(err, auth.ErrCredentialsNotFound) {
			log.WithError(err).Warn("Failed to read stored cookies")
		}
		return nil
	}
	log.WithField("cookies", len(site.Cookies)).Info("Using stored cookies")
	return site
}

// startDisplay returns the run's progress display and a function that
// waits for it to shut down. Quitting the TUI cancels the run.
func startDisplay(cfg *config.Config, target string, cancel context.CancelFunc) (ui.Display, func()) {
	if useTUI {
		t := tui.NewTUI(target)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := t.Start(); err != nil {
				logger.WithError(err).Error("TUI failed")
			}
			cancel()
		}()
		return t, func() { <-done }
	}

	out := io.Writer(os.Stdout)
	if cfg.Download.DryRun {
		out = os.Stderr
	}
	if quiet {
		out = io.Discard
	}
	return ui.NewConsoleReporter(out, target, verbose), func() {}
}

// downloads is the sink side of a run: a worker pool, or a URL listing
// in dry-run mode.
type downloads struct {
	sink sink.Sink
	pool *downloader.WorkerPool
	once sync.Once
}

func newDownloads(cfg *config.Config, target, userAgent string, cookies []*http.Cookie, log logger.Logger) (*downloads, error) {
	if cfg.Download.DryRun {
		return &downloads{sink: sink.NewListSink(os.Stdout, sink.Format(listFormat))}, nil
	}

	client := fetch.NewClient(cfg.Download.DownloadTimeout, retry.FromConfig(cfg.Retry, log), log)
	client.SetHeaders(cfg.Download.Headers)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	if len(cookies) > 0 {
		u, _ := url.Parse(target)
		client.SetCookies(u, cookies)
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.OverwriteExisting)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	pool := downloader.NewWorkerPool(
		cfg.Download.ConcurrentDownloads,
		client,
		store,
		ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		log,
	)
	pool.Start()
	return &downloads{sink: sink.NewPoolSink(pool), pool: pool}, nil
}

// drain forwards finished downloads to the display until the pool stops.
func (d *downloads) drain(display ui.Display) <-chan struct{} {
	done := make(chan struct{})
	if d.pool == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		for r := range d.pool.Results() {
			display.DownloadFinished(ui.Download{
				URL:      r.Request.URL,
				Filename: r.Request.Filename,
				Size:     int64(r.Size),
				Skipped:  r.Skipped,
				Err:      r.Error,
			})
		}
	}()
	return done
}

// finish waits for queued downloads and stops the pool.
func (d *downloads) finish() {
	if d.pool != nil {
		d.once.Do(d.pool.Stop)
	}
}

func (d *downloads) logStats(log logger.Logger) {
	if d.pool == nil {
		return
	}
	st := d.pool.Stats()
	log.InfoWithFields("Downloads finished", map[string]interface{}{
		"downloaded": st.Downloaded,
		"skipped":    st.Skipped,
		"failed":     st.Failed,
		"bytes":      st.Bytes,
		"workers":    st.Workers,
	})
}

func (d *downloads) abort() {
	if d.pool != nil {
		d.pool.Abort()
	}
}

// runRecord updates the gallery checkpoint as images are emitted. A nil
// record is inert.
type runRecord struct {
	mgr   *checkpoint.Manager
	cp    *checkpoint.Checkpoint
	fresh atomic.Int64
}

func openCheckpoint(cfg *config.Config, target, profileKey string, log logger.Logger) *runRecord {
	if cfg.Download.DryRun {
		return nil
	}
	mgr, err := checkpoint.NewManager(target)
	if err != nil {
		log.WithError(err).Warn("Checkpoints disabled")
		return nil
	}
	cp, err := mgr.LoadOrCreate(target, profileKey)
	if err != nil {
		log.WithError(err).Warn("Ignoring unreadable checkpoint")
		cp = checkpoint.New(target, profileKey)
	}
	if cp.Runs > 0 {
		log.WithFields(map[string]interface{}{
			"previous_runs":   cp.Runs,
			"previous_reason": cp.LastReason,
			"known_images":    len(cp.Images),
		}).Info("Gallery visited before")
	}
	return &runRecord{mgr: mgr, cp: cp}
}

func (r *runRecord) wrap(s sink.Sink) sink.Sink {
	if r == nil {
		return s
	}
	return sink.Tee(s, sink.Func(func(_ context.Context, req sink.Request) error {
		if r.cp.RecordImage(req.URL, req.Filename) {
			r.fresh.Add(1)
		}
		return nil
	}))
}

func (r *runRecord) finish(res scraper.Result, log logger.Logger) {
	if r == nil {
		return
	}
	r.cp.FinishRun(res.RunID, string(res.Reason))
	if err := r.mgr.Save(r.cp); err != nil {
		log.WithError(err).Warn("Failed to save checkpoint")
		return
	}
	log.WithFields(map[string]interface{}{
		"new_images": r.fresh.Load(),
		"checkpoint": r.mgr.Path(),
	}).Info("Checkpoint updated")
}

// openPage loads target with the configured engine.
func openPage(ctx context.Context, cfg *config.Config, target, userAgent string, cookies []*http.Cookie, log logger.Logger) (page.Page, func(), error) {
	switch cfg.Browser.Engine {
	case config.EngineStatic:
		loader := static.NewLoader(static.Config{
			UserAgent:     userAgent,
			RespectRobots: cfg.Browser.RespectRobots,
			Timeout:       cfg.Browser.NavigationTimeout,
			Logger:        log,
		})
		p, err := loader.Open(ctx, target, cookies)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil

	default:
		mgr := browser.NewManager(browser.FromConfig(cfg.Browser, log))
		p, err := mgr.Open(ctx, target, browser.OpenOptions{Cookies: cookies, UserAgent: userAgent})
		if err != nil {
			mgr.Close()
			return nil, nil, err
		}
		return p, func() {
			p.Close()
			mgr.Close()
		}, nil
	}
}
