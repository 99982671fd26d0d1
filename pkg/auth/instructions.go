package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowCookieExtractionGuide prints step-by-step instructions for copying a
// site's cookies out of a browser.
func ShowCookieExtractionGuide(w io.Writer, host string) {
	if host == "" {
		host = "the gallery site"
	}
	rule := strings.Repeat("=", 80)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "🍪 COOKIE EXTRACTION GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Some galleries only show full-size images to logged-in visitors.\n")
	fmt.Fprintf(w, "Copy your session cookies for %s so the scraper can reuse them.\n", host)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🌐 STEP 1: Open the site in your browser and log in")
	fmt.Fprintln(w, "   - Make sure a gallery page shows full-size images")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔧 STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "   • Safari: enable the Develop menu in Preferences, then Cmd+Option+I")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📡 STEP 3: Network tab → refresh → click the page request")
	fmt.Fprintln(w, "   - Under 'Request Headers', copy the whole 'Cookie:' value")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "📋 STEP 4: Paste it when prompted")
	fmt.Fprintln(w, "   - Format: name1=value1; name2=value2")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "⚠️  SECURITY WARNING:")
	fmt.Fprintln(w, "   • Session cookies grant access to your account. Never share them")
	fmt.Fprintln(w, "   • They are stored in the system keychain or an encrypted file")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide(w io.Writer) {
	fmt.Fprintln(w, "\n🍪 Quick Guide: F12 → Network → refresh → page request → Headers → Cookie")
	fmt.Fprintln(w, "   Paste it as: name1=value1; name2=value2")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
