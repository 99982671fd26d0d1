package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// Tally counts what a run has found and what the pool has saved.
type Tally struct {
	Found      int
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
	StartTime  time.Time
}

// NewTally starts a tally now.
func NewTally() *Tally {
	return &Tally{StartTime: time.Now()}
}

// Add records a finished download.
func (t *Tally) Add(d Download) {
	switch {
	case d.Err != nil:
		t.Failed++
	case d.Skipped:
		t.Skipped++
	default:
		t.Downloaded++
		t.Bytes += d.Size
	}
}

// Finished is the number of found images the pool is done with.
func (t *Tally) Finished() int {
	return t.Downloaded + t.Skipped + t.Failed
}

// Bar renders finished/found as a fixed-width bar.
func (t *Tally) Bar(width int) string {
	filled := 0
	if t.Found > 0 {
		filled = t.Finished() * width / t.Found
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// Rate returns saved images per minute.
func (t *Tally) Rate() float64 {
	elapsed := time.Since(t.StartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(t.Downloaded) / elapsed
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
