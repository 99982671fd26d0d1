package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imgscraper/pkg/scraper"
	"imgscraper/pkg/ui"
)

// ItemState is where a discovered image is in the download pipeline.
type ItemState int

const (
	ItemQueued ItemState = iota
	ItemSaved
	ItemSkipped
	ItemFailed
)

// Item is one discovered image.
type Item struct {
	URL      string
	Filename string
	Size     int64
	State    ItemState
	Err      error
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model for one scrape run.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	target   string
	status   string
	finished bool
	reason   scraper.Reason

	items  []*Item
	byURL  map[string]*Item
	tally  *ui.Tally
	maxRow int

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a model for a run against target.
func NewModel(target string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return Model{
		spinner:        s,
		bar:            bar,
		target:         target,
		status:         "Opening page...",
		byURL:          make(map[string]*Item),
		tally:          ui.NewTally(),
		maxRow:         8,
		maxLogMessages: 50,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// ApplyEvent folds a traversal event into the model.
func (m *Model) ApplyEvent(e scraper.Event) {
	switch e.Kind {
	case scraper.EventImage:
		m.tally.Found = e.Count
		if _, ok := m.byURL[e.URL]; ok {
			return
		}
		item := &Item{URL: e.URL, Filename: e.Filename}
		m.items = append(m.items, item)
		m.byURL[e.URL] = item
		m.status = e.Message
	case scraper.EventDone:
		m.finished = true
		m.reason = e.Reason
		m.status = e.Message
		if e.Reason.Success() {
			m.AddLogMessage("SUCCESS", e.Message)
		} else {
			m.AddLogMessage("ERROR", e.Message)
		}
	default:
		m.status = e.Message
		m.AddLogMessage("INFO", e.Message)
	}
}

// ApplyDownload records a finished download.
func (m *Model) ApplyDownload(d ui.Download) {
	m.tally.Add(d)

	item, ok := m.byURL[d.URL]
	if !ok {
		item = &Item{URL: d.URL, Filename: d.Filename}
		m.items = append(m.items, item)
		m.byURL[d.URL] = item
	}
	item.Size = d.Size
	item.Err = d.Err
	switch {
	case d.Err != nil:
		item.State = ItemFailed
		m.AddLogMessage("ERROR", "Failed: "+d.Filename+" - "+d.Err.Error())
	case d.Skipped:
		item.State = ItemSkipped
	default:
		item.State = ItemSaved
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Ratio is the share of found images the pool is done with.
func (m *Model) Ratio() float64 {
	if m.tally.Found == 0 {
		return 0
	}
	r := float64(m.tally.Finished()) / float64(m.tally.Found)
	if r > 1 {
		r = 1
	}
	return r
}

// RecentItems returns up to n of the most recently discovered images.
func (m *Model) RecentItems(n int) []*Item {
	start := len(m.items) - n
	if start < 0 {
		start = 0
	}
	return m.items[start:]
}

// Pending counts discovered images not yet finished.
func (m *Model) Pending() int {
	n := 0
	for _, it := range m.items {
		if it.State == ItemQueued {
			n++
		}
	}
	return n
}
