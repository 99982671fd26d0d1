package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"imgscraper/pkg/config"
	"imgscraper/pkg/scraper"
)

const appName = "Image Scraper"

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, appleEscape(message), appleEscape(title))
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func appleEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("%s").Show($toast)
	`, title, message, appName)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// platformSender returns the desktop sender for this OS, or nil.
func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier handles cross-platform notifications
type Notifier struct {
	out        io.Writer
	sender     NotificationSender
	onComplete bool
	onError    bool
}

// NewNotifier creates a Notifier that prints to stdout and, when the
// platform supports it, raises a desktop notification.
func NewNotifier() *Notifier {
	return &Notifier{out: os.Stdout, sender: platformSender(), onComplete: true, onError: true}
}

// NewNotifierFromConfig honours the notifications section: "terminal"
// prints only, "desktop" also raises a desktop notification and "none"
// (or Enabled=false) stays silent.
func NewNotifierFromConfig(cfg config.NotificationConfig, out io.Writer) *Notifier {
	n := &Notifier{out: out, onComplete: cfg.OnComplete, onError: cfg.OnError}
	kind := strings.ToLower(cfg.NotificationType)
	if !cfg.Enabled || kind == "none" {
		n.out = io.Discard
		n.onComplete, n.onError = false, false
		return n
	}
	if kind == "desktop" {
		n.sender = platformSender()
	}
	return n
}

// WithSender replaces the desktop sender.
func (n *Notifier) WithSender(s NotificationSender) *Notifier {
	n.sender = s
	return n
}

// SendNotification sends a desktop notification and prints to console
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// Notifications are best effort.
		_ = n.sender.Send(title, message)
	}
}

// RunFinished announces the end of a run.
func (n *Notifier) RunFinished(target string, res scraper.Result) {
	if res.Success() {
		if n.onComplete {
			n.SendSuccess(appName, fmt.Sprintf("%s: %d images from %s", res.Reason.Describe(), res.Emitted, target))
		}
		return
	}
	if n.onError {
		msg := res.Reason.Describe()
		if res.Err != nil {
			msg += ": " + res.Err.Error()
		}
		n.SendError(appName, fmt.Sprintf("%s (%d images from %s)", msg, res.Emitted, target))
	}
}
