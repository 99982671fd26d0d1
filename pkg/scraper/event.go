package scraper

import (
	"imgscraper/pkg/logger"
)

// EventKind classifies progress events.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventWaiting  EventKind = "waiting"
	EventImage    EventKind = "image"
	EventLoadMore EventKind = "load-more"
	EventDone     EventKind = "done"
)

// Event is one progress milestone.
type Event struct {
	Kind    EventKind
	Message string
	// Count is the number of images emitted so far.
	Count    int
	URL      string
	Filename string
	// Reason is set on EventDone.
	Reason Reason
	RunID  string
}

// Reporter receives progress events. Report is called from the traversal
// goroutine and should not block.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Reporters fans events out to several reporters.
func Reporters(rs ...Reporter) Reporter {
	return ReporterFunc(func(e Event) {
		for _, r := range rs {
			if r != nil {
				r.Report(e)
			}
		}
	})
}

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// LogReporter writes events to a structured logger.
type LogReporter struct {
	Logger logger.Logger
}

func (l LogReporter) Report(e Event) {
	fields := map[string]interface{}{
		"event":  string(e.Kind),
		"count":  e.Count,
		"run_id": e.RunID,
	}
	if e.URL != "" {
		fields["url"] = e.URL
	}
	if e.Filename != "" {
		fields["filename"] = e.Filename
	}
	if e.Reason != "" {
		fields["reason"] = string(e.Reason)
	}

	switch {
	case e.Kind == EventDone && !e.Reason.Success():
		l.Logger.WarnWithFields(e.Message, fields)
	case e.Kind == EventImage:
		l.Logger.DebugWithFields(e.Message, fields)
	default:
		l.Logger.InfoWithFields(e.Message, fields)
	}
}
