package ui

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgscraper/pkg/config"
	"imgscraper/pkg/scraper"
)

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func TestTally(t *testing.T) {
	tally := NewTally()
	tally.Found = 4
	tally.Add(Download{Size: 2048})
	tally.Add(Download{Skipped: true})
	tally.Add(Download{Err: errors.New("404")})

	assert.Equal(t, 1, tally.Downloaded)
	assert.Equal(t, 1, tally.Skipped)
	assert.Equal(t, 1, tally.Failed)
	assert.Equal(t, int64(2048), tally.Bytes)
	assert.Equal(t, 3, tally.Finished())
	assert.Equal(t, strings.Repeat("━", 15)+strings.Repeat("─", 5), tally.Bar(20))
	assert.Equal(t, "───", (&Tally{}).Bar(3))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "500 B", FormatBytes(500))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "5.0 GB", FormatBytes(5*1024*1024*1024))
}

func TestConsoleReporterDebug(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporter(&buf, "www.imagefap.com", true)

	c.Report(scraper.Event{Kind: scraper.EventStarted, Message: "Starting to load images..."})
	c.Report(scraper.Event{Kind: scraper.EventImage, Count: 1, Filename: "Title/a.jpg"})
	c.DownloadFinished(Download{Filename: "Title/a.jpg", Size: 10})
	c.DownloadFinished(Download{Filename: "Title/b.jpg", Err: errors.New("server said no")})
	c.Report(scraper.Event{Kind: scraper.EventDone, Reason: scraper.ReasonExhausted, Message: "No more images to load, 1 images downloaded"})
	c.Close()

	out := buf.String()
	assert.Contains(t, out, "Starting to load images...")
	assert.Contains(t, out, "Title/a.jpg")
	assert.Contains(t, out, "server said no")
	assert.Contains(t, out, "No more images to load, 1 images downloaded")
	assert.Contains(t, out, "1 downloads failed")

	tally := c.Tally()
	assert.Equal(t, 1, tally.Found)
	assert.Equal(t, 1, tally.Downloaded)
}

func TestConsoleReporterProgressLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleReporter(&buf, "xx.knit.bid", false)

	c.Report(scraper.Event{Kind: scraper.EventImage, Count: 2})
	c.DownloadFinished(Download{Size: 1024})

	assert.Contains(t, buf.String(), "1/2")
	assert.Contains(t, buf.String(), "1.0 KB")
}

func TestNotifierFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.NotificationConfig{Enabled: true, OnComplete: true, OnError: false, NotificationType: "terminal"}
	sender := &recordingSender{}
	n := NewNotifierFromConfig(cfg, &buf).WithSender(sender)

	n.RunFinished("www.imagefap.com", scraper.Result{Reason: scraper.ReasonDuplicate, Emitted: 7})
	assert.Contains(t, buf.String(), "7 images from www.imagefap.com")
	require.Len(t, sender.messages, 1)

	buf.Reset()
	n.RunFinished("www.imagefap.com", scraper.Result{Reason: scraper.ReasonLoadTimeout})
	assert.Empty(t, buf.String(), "errors are muted when on_error is false")
}

func TestNotifierDisabled(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifierFromConfig(config.NotificationConfig{Enabled: false, OnComplete: true, OnError: true}, &buf)
	n.RunFinished("x", scraper.Result{Reason: scraper.ReasonExhausted})
	n.RunFinished("x", scraper.Result{Reason: scraper.ReasonPageError, Err: errors.New("boom")})
	assert.Empty(t, buf.String())
}

func TestNotifierError(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifierFromConfig(config.NotificationConfig{Enabled: true, OnError: true, NotificationType: "terminal"}, &buf)
	n.RunFinished("x", scraper.Result{Reason: scraper.ReasonPageError, Err: errors.New("target closed"), Emitted: 2})
	assert.Contains(t, buf.String(), "Page error: target closed (2 images from x)")
}

func TestAppleEscape(t *testing.T) {
	assert.Equal(t, `say \"hi\" \\ bye`, appleEscape(`say "hi" \ bye`))
}

func TestLogoStaysOffStdout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	PrintLogo()
	PrintError("listing failed")

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, out, "stdout carries dry-run listings only")

	var buf bytes.Buffer
	FprintLogo(&buf)
	assert.Contains(t, buf.String(), "GALLERY IMAGE EXTRACTION UTILITY")
}
