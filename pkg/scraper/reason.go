package scraper

import (
	"time"

	errs "imgscraper/pkg/errors"
)

// Reason names the terminal state of a traversal.
type Reason string

const (
	ReasonLoadTimeout       Reason = "load-timeout"
	ReasonPageChangeTimeout Reason = "page-change-timeout"
	ReasonLoadMoreTimeout   Reason = "load-more-timeout"
	ReasonNoNextControl     Reason = "no-next-control"
	ReasonDuplicate         Reason = "duplicate-detected"
	ReasonExhausted         Reason = "exhausted"
	ReasonCancelled         Reason = "cancelled"
	ReasonPageError         Reason = "page-error"
)

// Success reports whether the run reached a normal end of gallery.
func (r Reason) Success() bool {
	return r == ReasonDuplicate || r == ReasonExhausted
}

// Kind classifies failure reasons. It is empty for successful ones.
func (r Reason) Kind() errs.ErrorType {
	switch r {
	case ReasonLoadTimeout, ReasonPageChangeTimeout, ReasonLoadMoreTimeout:
		return errs.ErrorTypeTimeout
	case ReasonNoNextControl:
		return errs.ErrorTypeMissingControl
	case ReasonDuplicate, ReasonExhausted:
		return ""
	default:
		return errs.ErrorTypeUnknown
	}
}

// Describe returns the human readable status line for r.
func (r Reason) Describe() string {
	switch r {
	case ReasonLoadTimeout:
		return "Image load timed out"
	case ReasonPageChangeTimeout:
		return "Page change timed out"
	case ReasonLoadMoreTimeout:
		return "Loading more content timed out"
	case ReasonNoNextControl:
		return "No next button found"
	case ReasonDuplicate:
		return "Duplicate image detected, gallery complete"
	case ReasonExhausted:
		return "No more images to load"
	case ReasonCancelled:
		return "Cancelled"
	default:
		return "Page error"
	}
}

// Result is what a run hands back to its caller.
type Result struct {
	RunID  string
	Reason Reason
	// Emitted counts images accepted by the sink.
	Emitted int
	// SinkErrors counts images the sink refused.
	SinkErrors int
	Duration   time.Duration
	// Err carries the underlying failure for page-error and cancelled.
	Err error
}

// Success reports whether the run ended normally.
func (r Result) Success() bool {
	return r.Err == nil && r.Reason.Success()
}
