package ui

import "imgscraper/pkg/scraper"

// Display shows a run to the user. It receives traversal events from the
// scraper and download outcomes from the worker pool.
type Display interface {
	scraper.Reporter
	DownloadFinished(d Download)
	// Close flushes the display once the run and its downloads are over.
	Close()
}

// Download is one finished download as shown to the user.
type Download struct {
	URL      string
	Filename string
	Size     int64
	Skipped  bool
	Err      error
}
