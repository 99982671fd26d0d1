package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"imgscraper/pkg/scraper"
	"imgscraper/pkg/ui"
)

// TUI is a full-screen display for one run. It implements ui.Display.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a new TUI for a run against target
func NewTUI(target string) *TUI {
	model := NewModel(target)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the TUI until it is closed or the user quits. It blocks.
func (t *TUI) Start() error {
	go t.program.Send(TickMsg(time.Now()))
	_, err := t.program.Run()
	return err
}

// Close stops the TUI
func (t *TUI) Close() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Report implements scraper.Reporter.
func (t *TUI) Report(e scraper.Event) {
	t.Send(EventMsg(e))
}

// DownloadFinished implements ui.Display.
func (t *TUI) DownloadFinished(d ui.Download) {
	t.Send(DownloadMsg(d))
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

var _ ui.Display = (*TUI)(nil)
