package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"imgscraper/pkg/scraper"
)

// ConsoleReporter prints a compact, self-overwriting progress line. In
// debug mode it prints one line per event instead.
type ConsoleReporter struct {
	mu     sync.Mutex
	out    io.Writer
	target string
	debug  bool
	tally  *Tally
	status string
	final  *scraper.Event
}

// NewConsoleReporter creates a reporter for a run against target.
func NewConsoleReporter(out io.Writer, target string, debug bool) *ConsoleReporter {
	return &ConsoleReporter{
		out:    out,
		target: target,
		debug:  debug,
		tally:  NewTally(),
	}
}

// Report implements scraper.Reporter.
func (c *ConsoleReporter) Report(e scraper.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case scraper.EventImage:
		c.tally.Found = e.Count
		if c.debug {
			fmt.Fprintf(c.out, "%s %s\n", Cyan("→"), e.Filename)
			return
		}
	case scraper.EventDone:
		ev := e
		c.final = &ev
		return
	default:
		c.status = e.Message
		if c.debug {
			fmt.Fprintf(c.out, "%s %s\n", Magenta("•"), e.Message)
			return
		}
	}
	c.printProgress()
}

// DownloadFinished implements Display.
func (c *ConsoleReporter) DownloadFinished(d Download) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tally.Add(d)
	if c.debug {
		switch {
		case d.Err != nil:
			fmt.Fprintf(c.out, "%s %s - %v\n", Red("✗"), d.Filename, d.Err)
		case d.Skipped:
			fmt.Fprintf(c.out, "%s %s (exists)\n", Dim("="), d.Filename)
		default:
			fmt.Fprintf(c.out, "%s %s • %s\n", Green("✓"), d.Filename, FormatBytes(d.Size))
		}
		return
	}
	c.printProgress()
}

// Close prints the final status and download summary.
func (c *ConsoleReporter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out)
	if c.final != nil {
		if c.final.Reason.Success() {
			fmt.Fprintf(c.out, "\n%s %s\n", Green("✓"), c.final.Message)
		} else {
			fmt.Fprintf(c.out, "\n%s %s\n", Red("✗"), c.final.Message)
		}
	}

	elapsed := time.Since(c.tally.StartTime)
	fmt.Fprintf(c.out, "  %s %d saved, %d skipped • %s in %s\n",
		Dim("•"),
		c.tally.Downloaded,
		c.tally.Skipped,
		FormatBytes(c.tally.Bytes),
		FormatDuration(elapsed),
	)
	if c.tally.Failed > 0 {
		fmt.Fprintf(c.out, "  %s %d downloads failed\n", Dim("•"), c.tally.Failed)
	}
}

// Tally returns a copy of the current counts.
func (c *ConsoleReporter) Tally() Tally {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.tally
}

// printProgress overwrites the current line. Callers hold c.mu.
func (c *ConsoleReporter) printProgress() {
	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min • %s",
		Cyan(c.target),
		c.tally.Bar(20),
		c.tally.Finished(),
		c.tally.Found,
		c.tally.Rate(),
		FormatBytes(c.tally.Bytes),
	)
	if c.status != "" {
		line += " • " + Dim(c.status)
	}
	if c.tally.Failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", c.tally.Failed))
	}
	fmt.Fprintf(c.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

var _ Display = (*ConsoleReporter)(nil)
