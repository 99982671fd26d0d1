package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgscraper/pkg/auth"
	"imgscraper/pkg/ui"
)

var (
	authCookie    string
	authUserAgent string
	authExpires   time.Duration
	authRemoveAll bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage per-site session cookies",
	Long: `Manage session cookies for galleries that require a login.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - IMGSCRAPER_COOKIES environment variable (read only)

They are sent with both page loads and image downloads for the matching
host. Never share your cookies or config files!`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <host>",
	Short: "Store cookies for a site",
	Long: `Store cookies for a site. Paste the Cookie header copied from your
browser's developer tools ("name1=value1; name2=value2"). Input is hidden
when reading from a terminal.`,
	Example: `  # Interactive
  imgscraper auth set www.imagefap.com

  # Non-interactive
  imgscraper auth set xx.knit.bid --cookie "sid=abc; pref=1"

  # Cookies that the site expires after a month
  imgscraper auth set www.imagefap.com --expires 720h`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites with stored cookies",
	RunE:  runAuthList,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove [host]",
	Short: "Remove stored cookies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthRemove,
}

var authGuideCmd = &cobra.Command{
	Use:   "guide [host]",
	Short: "Explain how to copy cookies from a browser",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		host := "the gallery site"
		if len(args) > 0 {
			host = args[0]
		}
		auth.ShowCookieExtractionGuide(os.Stdout, host)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authGuideCmd)

	authSetCmd.Flags().StringVar(&authCookie, "cookie", "", "cookie header value (prompted when empty)")
	authSetCmd.Flags().StringVar(&authUserAgent, "user-agent", "", "user agent to use with these cookies")
	authSetCmd.Flags().DurationVar(&authExpires, "expires", 0, "how long the cookies stay valid (0 for session cookies)")
	authRemoveCmd.Flags().BoolVar(&authRemoveAll, "all", false, "remove cookies for every site")
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	host := auth.NormalizeHost(args[0])
	header := authCookie
	if header == "" {
		auth.ShowQuickExtractGuide(os.Stdout)
		fmt.Printf("Cookie header for %s: ", host)
		header, err = readPassword()
		if err != nil {
			return fmt.Errorf("failed to read cookies: %w", err)
		}
	}

	cookies, err := auth.ParseCookieHeader(header)
	if err != nil {
		return err
	}
	if authExpires > 0 {
		expires := time.Now().Add(authExpires)
		for i := range cookies {
			cookies[i].Expires = expires
		}
	}

	site := &auth.Site{Host: host, Cookies: cookies, UserAgent: authUserAgent}
	if err := manager.Store(site); err != nil {
		return fmt.Errorf("failed to store cookies: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Stored %d cookies for %s", len(cookies), host))
	for _, c := range auth.SanitizeSite(site).Cookies {
		fmt.Printf("  %s = %s\n", c.Name, ui.Dim(c.Value))
	}
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	sites, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}
	if len(sites) == 0 {
		ui.PrintWarning("No stored cookies")
		fmt.Println("\nTo store cookies for a site, run:")
		fmt.Println("  imgscraper auth set <host>")
		return nil
	}

	for _, s := range sites {
		s = auth.SanitizeSite(s)
		fmt.Printf("%s  %s\n", ui.Cyan(s.Host), ui.Dim(s.LastModified.Format("2006-01-02 15:04")))
		for _, c := range s.Cookies {
			fmt.Printf("  %s = %s\n", c.Name, c.Value)
		}
		if s.UserAgent != "" {
			fmt.Printf("  user agent: %s\n", s.UserAgent)
		}
		fmt.Printf("  %s\n", expiryNote(s, time.Now()))
	}
	return nil
}

// expiryNote describes when the site's cookies stop working.
func expiryNote(s *auth.Site, now time.Time) string {
	exp := s.Expiry()
	switch {
	case exp.IsZero():
		return ui.Dim("session cookies")
	case !exp.After(now):
		return ui.Yellow("expired " + exp.Format("2006-01-02 15:04"))
	default:
		return ui.Dim("expires " + exp.Format("2006-01-02 15:04"))
	}
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if authRemoveAll {
		if !confirm("Remove cookies for ALL sites? (yes/N): ", "yes") {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove cookies: %w", err)
		}
		ui.PrintSuccess("All stored cookies removed")
		return nil
	}

	if len(args) == 0 {
		return errors.New("a host is required unless --all is set")
	}

	host := auth.NormalizeHost(args[0])
	if err := manager.Delete(host); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning("No stored cookies", host)
			return nil
		}
		return fmt.Errorf("failed to remove cookies: %w", err)
	}
	ui.PrintSuccess("Cookies removed: " + host)
	return nil
}

func confirm(prompt, want string) bool {
	fmt.Print(prompt)
	input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(input), want)
}

func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
